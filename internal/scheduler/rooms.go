package scheduler

// packRooms groups moderator-tagged students into rooms of exactly
// size students. Students sharing a moderator are packed consecutively
// first; any provisional room that came out undersized is dissolved
// and its students repacked, in their original order, into fresh rooms
// appended after the full ones. Only the final repacked room may hold
// fewer than size students.
func packRooms(students []taggedStudent, size int) [][]taggedStudent {
	grouped := groupByModerator(students)

	var provisional [][]taggedStudent
	for _, group := range grouped {
		provisional = append(provisional, chunk(group, size)...)
	}

	var full [][]taggedStudent
	var leftovers []taggedStudent
	for _, room := range provisional {
		if len(room) == size {
			full = append(full, room)
			continue
		}
		leftovers = append(leftovers, room...)
	}

	return append(full, chunk(leftovers, size)...)
}

// groupByModerator partitions students by moderator name, keeping the
// moderators in first-encounter order and each group's internal order.
func groupByModerator(students []taggedStudent) [][]taggedStudent {
	index := make(map[string]int)
	var groups [][]taggedStudent
	for _, student := range students {
		pos, ok := index[student.Moderator]
		if !ok {
			pos = len(groups)
			index[student.Moderator] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], student)
	}
	return groups
}

func chunk(students []taggedStudent, size int) [][]taggedStudent {
	var rooms [][]taggedStudent
	for start := 0; start < len(students); start += size {
		end := start + size
		if end > len(students) {
			end = len(students)
		}
		rooms = append(rooms, students[start:end])
	}
	return rooms
}
