package scheduler

// assignModerators picks a moderator for every student in roster order.
// Advisor-1 wins at every tier; the cap on moderated sessions equals
// sessions-per-class so one lecturer's students fill at most one room
// under normal load. The selection always succeeds: when neither
// advisor satisfies the preferred constraints the assignment degrades
// tier by tier down to advisor-1 unconditionally.
func (st *runState) assignModerators(roster []Candidate, cap int) []taggedStudent {
	tagged := make([]taggedStudent, 0, len(roster))
	for _, student := range roster {
		moderator := st.pickModerator(student.Advisor1, student.Advisor2, cap)
		st.moderatorSessions[moderator]++
		st.hasModerated[moderator] = true
		tagged = append(tagged, taggedStudent{Candidate: student, Moderator: moderator})
	}
	return tagged
}

func (st *runState) pickModerator(advisor1, advisor2 string, cap int) string {
	switch {
	case st.moderatorSessions[advisor1] < cap && !st.hasExamined[advisor1]:
		return advisor1
	case st.moderatorSessions[advisor2] < cap && !st.hasExamined[advisor2]:
		return advisor2
	case !st.hasExamined[advisor1]:
		return advisor1
	case !st.hasExamined[advisor2]:
		return advisor2
	default:
		return advisor1
	}
}
