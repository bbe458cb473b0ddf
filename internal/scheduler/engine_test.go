package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

func poolOf(names ...string) []Lecturer {
	pool := make([]Lecturer, 0, len(names))
	for i, name := range names {
		pool = append(pool, Lecturer{ID: string(rune('a' + i)), Name: name})
	}
	return pool
}

func candidate(nrp, advisor1, advisor2 string) Candidate {
	return Candidate{
		NRP:      nrp,
		Name:     "Student " + nrp,
		Title:    "Thesis " + nrp,
		Advisor1: advisor1,
		Advisor2: advisor2,
	}
}

func defaultParams() Params {
	return Params{
		ExamDate:         "2026-09-14",
		WindowStart:      "09:00",
		WindowEnd:        "12:00",
		DurationMinutes:  30,
		SessionsPerClass: 3,
	}
}

func TestRunMergesSmallGroupsIntoOneClass(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "Dr. Adi", "Dr. Bima"),
		candidate("s2", "Dr. Cita", "Dr. Dewi"),
		candidate("s3", "Dr. Eko", "Dr. Fajar"),
	}
	pool := poolOf("Dr. Adi", "Dr. Bima", "Dr. Cita", "Dr. Dewi", "Dr. Eko", "Dr. Fajar")

	result, err := engine.Run(defaultParams(), roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 3)
	assert.Empty(t, result.Warnings)

	// Three one-student moderator groups under sessions-per-class 3
	// collapse into a single merged class in roster order.
	moderators := map[string]bool{"Dr. Adi": true, "Dr. Cita": true, "Dr. Eko": true}
	for i, session := range result.Sessions {
		assert.Equal(t, 1, session.ClassNo)
		assert.Equal(t, 1, session.RoomNo)
		assert.Equal(t, i+1, session.SequenceNo)
		assert.Equal(t, roster[i].NRP, session.NRP)
		assert.Equal(t, roster[i].Advisor1, session.Moderator)

		// In a merged class the other moderators serve as examiners.
		require.NotNil(t, session.Examiner1)
		require.NotNil(t, session.Examiner2)
		assert.True(t, moderators[*session.Examiner1])
		assert.True(t, moderators[*session.Examiner2])
		assert.NotEqual(t, *session.Examiner1, *session.Examiner2)
		for _, examiner := range []string{*session.Examiner1, *session.Examiner2} {
			assert.NotEqual(t, session.Moderator, examiner)
			assert.NotEqual(t, session.Advisor1, examiner)
			assert.NotEqual(t, session.Advisor2, examiner)
		}
	}

	assert.Equal(t, "09:00", *result.Sessions[0].StartTime)
	assert.Equal(t, "09:30", *result.Sessions[0].EndTime)
	assert.Equal(t, "09:30", *result.Sessions[1].StartTime)
	assert.Equal(t, "10:00", *result.Sessions[1].EndTime)
	assert.Equal(t, "10:00", *result.Sessions[2].StartTime)
	assert.Equal(t, "10:30", *result.Sessions[2].EndTime)
}

func TestRunFallsBackToSecondAdvisorWhenFirstIsAtCapacity(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "Dr. Xena", "Dr. Yani"),
		candidate("s2", "Dr. Xena", "Dr. Zaki"),
	}
	pool := poolOf("Dr. Xena", "Dr. Yani", "Dr. Zaki", "Dr. Putra", "Dr. Qori", "Dr. Ratna", "Dr. Sari")

	params := defaultParams()
	params.SessionsPerClass = 1

	result, err := engine.Run(params, roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)
	assert.Empty(t, result.Warnings)

	// The shared first advisor moderates only one session at capacity
	// 1, so the second student falls through to their second advisor.
	assert.Equal(t, "Dr. Xena", result.Sessions[0].Moderator)
	assert.Equal(t, "Dr. Zaki", result.Sessions[1].Moderator)
	assert.Equal(t, 1, result.Sessions[0].ClassNo)
	assert.Equal(t, 2, result.Sessions[1].ClassNo)
}

func TestRunPacksFullClassesBackToBackInOneRoom(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "L1", "L2"), candidate("s2", "L1", "L2"),
		candidate("s3", "L3", "L4"), candidate("s4", "L3", "L4"),
		candidate("s5", "L5", "L6"), candidate("s6", "L5", "L6"),
	}
	pool := poolOf("L1", "L2", "L3", "L4", "L5", "L6", "L7", "L8", "L9", "L10", "L11", "L12")

	params := Params{
		ExamDate:         "2026-09-14",
		WindowStart:      "08:00",
		WindowEnd:        "11:00",
		DurationMinutes:  30,
		SessionsPerClass: 2,
	}

	result, err := engine.Run(params, roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 6)
	assert.Empty(t, result.Warnings)

	starts := []string{"08:00", "08:30", "09:00", "09:30", "10:00", "10:30"}
	seen := make(map[string]bool)
	for i, session := range result.Sessions {
		seen[session.NRP] = true
		assert.Equal(t, 1, session.RoomNo)
		assert.Equal(t, i/2+1, session.ClassNo)
		assert.Equal(t, i+1, session.SequenceNo)
		require.NotNil(t, session.StartTime)
		assert.Equal(t, starts[i], *session.StartTime)

		require.NotNil(t, session.Examiner1)
		require.NotNil(t, session.Examiner2)
		assert.NotEqual(t, *session.Examiner1, *session.Examiner2)
		for _, examiner := range []string{*session.Examiner1, *session.Examiner2} {
			assert.NotEqual(t, session.Moderator, examiner)
			assert.NotEqual(t, session.Advisor1, examiner)
			assert.NotEqual(t, session.Advisor2, examiner)
		}
	}
	assert.Len(t, seen, 6)

	// A single-moderator class shares one examiner pair, with the
	// listed order rotated for the second student.
	first := result.Sessions[0]
	second := result.Sessions[1]
	assert.Equal(t, *first.Examiner1, *second.Examiner2)
	assert.Equal(t, *first.Examiner2, *second.Examiner1)
}

func TestRunWrapsToSecondRoomWhenWindowIsFull(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "L1", "L2"), candidate("s2", "L1", "L2"),
		candidate("s3", "L3", "L4"), candidate("s4", "L3", "L4"),
	}
	pool := poolOf("L1", "L2", "L3", "L4", "L5", "L6", "L7", "L8")

	params := Params{
		ExamDate:         "2026-09-14",
		WindowStart:      "09:00",
		WindowEnd:        "10:00",
		DurationMinutes:  30,
		SessionsPerClass: 2,
	}

	result, err := engine.Run(params, roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 4)
	assert.Empty(t, result.Warnings)

	// The second class restarts at the window start in a new room.
	for i, want := range []struct {
		room, class int
		start       string
	}{
		{1, 1, "09:00"}, {1, 1, "09:30"},
		{2, 2, "09:00"}, {2, 2, "09:30"},
	} {
		session := result.Sessions[i]
		assert.Equal(t, want.room, session.RoomNo, "session %d", i)
		assert.Equal(t, want.class, session.ClassNo, "session %d", i)
		require.NotNil(t, session.StartTime)
		assert.Equal(t, want.start, *session.StartTime, "session %d", i)
	}
}

func TestRunLeavesOversizedClassUnscheduledWithWarning(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "L1", "L2"),
		candidate("s2", "L1", "L2"),
	}
	pool := poolOf("L1", "L2", "L3", "L4")

	params := Params{
		ExamDate:         "2026-09-14",
		WindowStart:      "09:00",
		WindowEnd:        "09:30",
		DurationMinutes:  30,
		SessionsPerClass: 2,
	}

	result, err := engine.Run(params, roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not fit")
	for _, session := range result.Sessions {
		assert.Nil(t, session.StartTime)
		assert.Nil(t, session.EndTime)
		assert.Equal(t, 1, session.ClassNo)
	}
}

func TestRunWarnsOnExaminerShortfallInsteadOfFailing(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "Dr. Adi", "Dr. Bima"),
		candidate("s2", "Dr. Bima", "Dr. Adi"),
	}
	pool := poolOf("Dr. Adi", "Dr. Bima", "Dr. Cita")

	params := defaultParams()
	params.SessionsPerClass = 2

	result, err := engine.Run(params, roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)

	// The only eligible outsider covers one slot; the rest stay open
	// rather than seating a student's own moderator or advisors.
	first := result.Sessions[0]
	require.NotNil(t, first.Examiner1)
	assert.Equal(t, "Dr. Cita", *first.Examiner1)
	assert.Nil(t, first.Examiner2)

	second := result.Sessions[1]
	assert.Nil(t, second.Examiner1)
	assert.Nil(t, second.Examiner2)

	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "class 1")
}

func TestRunFailsWhenExaminerReuseCrossesClasses(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "L1", "L2"),
		candidate("s2", "L3", "L4"),
	}
	// With only four lecturers every examiner pick is also a moderator
	// elsewhere, so the relaxed tiers force cross-class roles.
	pool := poolOf("L1", "L2", "L3", "L4")

	params := defaultParams()
	params.SessionsPerClass = 1

	result, err := engine.Run(params, roster, pool)
	require.Error(t, err)
	assert.Nil(t, result)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRoleConflict.Code, appErr.Code)
	assert.Contains(t, err.Error(), "L1")
	assert.Contains(t, err.Error(), "classes 1, 2")
}

func TestRunRejectsRosterRowWithMissingFields(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "L1", "L2"),
		{NRP: "s2", Name: "Student s2", Title: "Thesis s2", Advisor1: "L3"},
	}
	pool := poolOf("L1", "L2", "L3", "L4")

	result, err := engine.Run(defaultParams(), roster, pool)
	require.Error(t, err)
	assert.Nil(t, result)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRosterInvalid.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "row 2")
	assert.Contains(t, appErr.Message, "s2")
}

func TestRunRejectsUnknownAdvisor(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{candidate("s1", "L1", "Dr. Nobody")}
	pool := poolOf("L1", "L2", "L3")

	result, err := engine.Run(defaultParams(), roster, pool)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, appErrors.FromError(err).Message, "not found in lecturer pool")
}

func TestRunRejectsDuplicateNRP(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{
		candidate("s1", "L1", "L2"),
		candidate("s1", "L1", "L2"),
	}
	pool := poolOf("L1", "L2", "L3", "L4")

	result, err := engine.Run(defaultParams(), roster, pool)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, appErrors.FromError(err).Message, "already appears in row 1")
}

func TestRunMatchesAdvisorNamesCaseInsensitively(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{candidate("s1", "dr. adi", " DR. BIMA ")}
	pool := poolOf("Dr. Adi", "Dr. Bima", "Dr. Cita", "Dr. Dewi")

	result, err := engine.Run(defaultParams(), roster, pool)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 1)

	// Output carries the pool's canonical spelling.
	assert.Equal(t, "Dr. Adi", result.Sessions[0].Advisor1)
	assert.Equal(t, "Dr. Bima", result.Sessions[0].Advisor2)
	assert.Equal(t, "Dr. Adi", result.Sessions[0].Moderator)
}

func TestRunDoesNotMutateCallerRoster(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{candidate("s1", "dr. adi", "dr. bima")}
	pool := poolOf("Dr. Adi", "Dr. Bima", "Dr. Cita", "Dr. Dewi")

	_, err := engine.Run(defaultParams(), roster, pool)
	require.NoError(t, err)
	assert.Equal(t, "dr. adi", roster[0].Advisor1)
	assert.Equal(t, "dr. bima", roster[0].Advisor2)
}

func TestRunValidatesParams(t *testing.T) {
	engine := New(nil)
	roster := []Candidate{candidate("s1", "L1", "L2")}
	pool := poolOf("L1", "L2", "L3")

	cases := []struct {
		name   string
		mutate func(*Params)
		code   string
	}{
		{"missing exam date", func(p *Params) { p.ExamDate = " " }, appErrors.ErrValidation.Code},
		{"zero duration", func(p *Params) { p.DurationMinutes = 0 }, appErrors.ErrValidation.Code},
		{"zero sessions per class", func(p *Params) { p.SessionsPerClass = 0 }, appErrors.ErrValidation.Code},
		{"malformed window start", func(p *Params) { p.WindowStart = "9am" }, appErrors.ErrInvalidTime.Code},
		{"window end before start", func(p *Params) { p.WindowEnd = "08:00" }, appErrors.ErrValidation.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := defaultParams()
			tc.mutate(&params)
			result, err := engine.Run(params, roster, pool)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestRunRejectsEmptyRosterAndPool(t *testing.T) {
	engine := New(nil)

	_, err := engine.Run(defaultParams(), nil, poolOf("L1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = engine.Run(defaultParams(), []Candidate{candidate("s1", "L1", "L2")}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
