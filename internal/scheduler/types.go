package scheduler

// Lecturer is one member of the examiner/moderator pool for a run.
type Lecturer struct {
	ID   string
	Name string
}

// Candidate is one resolved roster row: a student with a thesis title
// and two advisors. Advisor names must resolve against the lecturer
// pool before the run starts.
type Candidate struct {
	NRP      string
	Name     string
	Title    string
	Advisor1 string
	Advisor2 string
}

// Params carries the explicit configuration of one scheduling run.
// SessionsPerClass is always supplied, never derived from the window.
type Params struct {
	ExamDate         string
	WindowStart      string
	WindowEnd        string
	DurationMinutes  int
	SessionsPerClass int
}

// Session is one produced timetable row. Times are nil when the
// session's room could not be placed inside the window.
type Session struct {
	SequenceNo  int
	ExamDate    string
	StartTime   *string
	EndTime     *string
	RoomNo      int
	ClassNo     int
	NRP         string
	StudentName string
	Title       string
	Moderator   string
	Advisor1    string
	Advisor2    string
	Examiner1   *string
	Examiner2   *string
}

// Result bundles the produced sessions with run-level warnings for
// soft shortfalls (missing examiners, window overflow).
type Result struct {
	Sessions []Session
	Warnings []string
}

// taggedStudent is a candidate with its assigned moderator.
type taggedStudent struct {
	Candidate
	Moderator string
}

// roomAssignment is a student inside a room with examiners resolved.
type roomAssignment struct {
	student   taggedStudent
	examiner1 *string
	examiner2 *string
}

// runState owns every mutable tracker of a single run. A fresh value
// is allocated per invocation so concurrent runs never share tallies.
type runState struct {
	moderatorSessions map[string]int
	hasModerated      map[string]bool
	hasExamined       map[string]bool
}

func newRunState() *runState {
	return &runState{
		moderatorSessions: make(map[string]int),
		hasModerated:      make(map[string]bool),
		hasExamined:       make(map[string]bool),
	}
}
