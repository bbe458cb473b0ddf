package scheduler

import "fmt"

// buildTimetable assigns concrete start/end times to every room.
// Rooms pack back-to-back from the window start; a room that does not
// fit the remaining window wraps once to a fresh window in the next
// physical room. A room too large for even an empty window keeps the
// class number but gets null times for all its sessions, leaving the
// cursor untouched. Sequence numbers are reassigned 1..total at the end.
func buildTimetable(rooms [][]roomAssignment, params Params, windowStart, windowEnd int, warnings *[]string) []Session {
	var sessions []Session
	cursor := windowStart
	roomNo := 1

	for i, room := range rooms {
		classNo := i + 1
		needed := len(room) * params.DurationMinutes

		end := cursor + needed
		if end > windowEnd {
			if windowStart+needed > windowEnd {
				*warnings = append(*warnings, fmt.Sprintf("class %d does not fit the %s-%s window, its sessions are unscheduled", classNo, params.WindowStart, params.WindowEnd))
				for _, assignment := range room {
					sessions = append(sessions, newSession(assignment, params, classNo, roomNo, nil, nil))
				}
				continue
			}
			cursor = windowStart
			roomNo++
			end = cursor + needed
		}

		for j, assignment := range room {
			start := FormatClock(cursor + j*params.DurationMinutes)
			finish := FormatClock(cursor + (j+1)*params.DurationMinutes)
			sessions = append(sessions, newSession(assignment, params, classNo, roomNo, &start, &finish))
		}
		cursor = end
	}

	for i := range sessions {
		sessions[i].SequenceNo = i + 1
	}
	return sessions
}

func newSession(assignment roomAssignment, params Params, classNo, roomNo int, start, end *string) Session {
	return Session{
		ExamDate:    params.ExamDate,
		StartTime:   start,
		EndTime:     end,
		RoomNo:      roomNo,
		ClassNo:     classNo,
		NRP:         assignment.student.NRP,
		StudentName: assignment.student.Name,
		Title:       assignment.student.Title,
		Moderator:   assignment.student.Moderator,
		Advisor1:    assignment.student.Advisor1,
		Advisor2:    assignment.student.Advisor2,
		Examiner1:   assignment.examiner1,
		Examiner2:   assignment.examiner2,
	}
}
