package scheduler

import "fmt"

// assignExaminers resolves two examiners for every student in one
// room. Rooms merged from several moderator groups prefer the room's
// other moderators as examiners; single-moderator rooms share one
// examiner pair, rotating the listed order per student. Every assigned
// examiner immediately enters the global has-examined set and the
// room's used set; choices are greedy and never revisited.
func (st *runState) assignExaminers(room []taggedStudent, pool []string, classNo int, warnings *[]string) []roomAssignment {
	moderators := distinctModerators(room)
	moderatorSet := make(map[string]bool, len(moderators))
	for _, name := range moderators {
		moderatorSet[name] = true
	}
	advisorSet := make(map[string]bool, len(room)*2)
	for _, student := range room {
		advisorSet[student.Advisor1] = true
		advisorSet[student.Advisor2] = true
	}
	used := make(map[string]bool)

	if len(moderators) > 1 {
		return st.assignFromPeers(room, moderators, moderatorSet, advisorSet, used, pool, classNo, warnings)
	}
	return st.assignSharedPair(room, moderatorSet, advisorSet, used, pool, classNo, warnings)
}

// assignFromPeers handles rooms holding students of several
// moderators: each student's examiners come first from the other
// moderators present, then from the pool search.
func (st *runState) assignFromPeers(room []taggedStudent, moderators []string, moderatorSet, advisorSet, used map[string]bool, pool []string, classNo int, warnings *[]string) []roomAssignment {
	assignments := make([]roomAssignment, 0, len(room))
	short := false

	for _, student := range room {
		var chosen []string
		for _, name := range moderators {
			if len(chosen) == 2 {
				break
			}
			if name == student.Moderator || name == student.Advisor1 || name == student.Advisor2 {
				continue
			}
			chosen = append(chosen, name)
		}
		if len(chosen) < 2 {
			for _, name := range st.findExaminerCandidates(pool, moderatorSet, advisorSet, used) {
				if len(chosen) == 2 {
					break
				}
				if name == student.Moderator || name == student.Advisor1 || name == student.Advisor2 {
					continue
				}
				if len(chosen) == 1 && name == chosen[0] {
					continue
				}
				chosen = append(chosen, name)
			}
		}

		var examiner1, examiner2 *string
		if len(chosen) >= 1 {
			examiner1 = &chosen[0]
			st.hasExamined[chosen[0]] = true
			used[chosen[0]] = true
		}
		if len(chosen) >= 2 {
			examiner2 = &chosen[1]
			st.hasExamined[chosen[1]] = true
			used[chosen[1]] = true
		}
		if len(chosen) < 2 {
			short = true
		}
		assignments = append(assignments, roomAssignment{student: student, examiner1: examiner1, examiner2: examiner2})
	}

	if short {
		*warnings = append(*warnings, fmt.Sprintf("class %d: not enough examiner candidates, some sessions have open examiner slots", classNo))
	}
	return assignments
}

// assignSharedPair handles rooms with a single moderator: one examiner
// pair serves the whole room, with the listed order swapped on odd
// student positions so neither examiner is always first.
func (st *runState) assignSharedPair(room []taggedStudent, moderatorSet, advisorSet, used map[string]bool, pool []string, classNo int, warnings *[]string) []roomAssignment {
	// The last-resort tier may surface the room's own moderator or
	// advisors; a student never examines their own defense, so those
	// stay filtered here and the slot goes empty instead.
	var pair []string
	for _, name := range st.findExaminerCandidates(pool, moderatorSet, advisorSet, used) {
		if moderatorSet[name] || advisorSet[name] {
			continue
		}
		pair = append(pair, name)
		if len(pair) == 2 {
			break
		}
	}

	var first, second *string
	if len(pair) >= 1 {
		first = &pair[0]
		st.hasExamined[pair[0]] = true
		used[pair[0]] = true
	}
	if len(pair) >= 2 {
		second = &pair[1]
		st.hasExamined[pair[1]] = true
		used[pair[1]] = true
	}
	if second == nil {
		*warnings = append(*warnings, fmt.Sprintf("class %d: only %d examiner candidate(s) available", classNo, len(pair)))
	}

	assignments := make([]roomAssignment, 0, len(room))
	for i, student := range room {
		examiner1, examiner2 := first, second
		if i%2 == 1 && first != nil && second != nil {
			examiner1, examiner2 = second, first
		}
		assignments = append(assignments, roomAssignment{student: student, examiner1: examiner1, examiner2: examiner2})
	}
	return assignments
}

// findExaminerCandidates walks five progressively relaxed filters over
// the lecturer pool and returns the first tier yielding at least two
// names. The last tier's result is returned even when it falls short;
// the caller records the shortfall as a warning.
func (st *runState) findExaminerCandidates(pool []string, moderatorSet, advisorSet, used map[string]bool) []string {
	tiers := []func(string) bool{
		func(n string) bool {
			return !moderatorSet[n] && !advisorSet[n] && !st.hasModerated[n] && !st.hasExamined[n] && !used[n]
		},
		func(n string) bool {
			return !moderatorSet[n] && !advisorSet[n] && !st.hasExamined[n] && !used[n]
		},
		func(n string) bool {
			return !moderatorSet[n] && !advisorSet[n] && !st.hasModerated[n] && !used[n]
		},
		func(n string) bool {
			return !advisorSet[n] && !used[n]
		},
		func(n string) bool {
			return !used[n]
		},
	}

	var last []string
	for _, keep := range tiers {
		var names []string
		for _, name := range pool {
			if keep(name) {
				names = append(names, name)
			}
		}
		if len(names) >= 2 {
			return names
		}
		last = names
	}
	return last
}

func distinctModerators(room []taggedStudent) []string {
	seen := make(map[string]bool, len(room))
	var names []string
	for _, student := range room {
		if !seen[student.Moderator] {
			seen[student.Moderator] = true
			names = append(names, student.Moderator)
		}
	}
	return names
}
