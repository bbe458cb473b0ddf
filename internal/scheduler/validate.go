package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// RoleConflict names a lecturer holding roles in more than one class.
type RoleConflict struct {
	Lecturer string `json:"lecturer"`
	Classes  []int  `json:"classes"`
}

// RoleConflictError is raised when any lecturer is double-booked
// across classes. It enumerates every offender.
type RoleConflictError struct {
	Conflicts []RoleConflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *RoleConflictError) Error() string {
	if e == nil || len(e.Conflicts) == 0 {
		return "role conflict"
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		classes := make([]string, 0, len(c.Classes))
		for _, n := range c.Classes {
			classes = append(classes, fmt.Sprintf("%d", n))
		}
		parts = append(parts, fmt.Sprintf("%s holds roles in classes %s", c.Lecturer, strings.Join(classes, ", ")))
	}
	return "role conflict: " + strings.Join(parts, "; ")
}

// validateRoles is the final pass before persistence: every lecturer
// acting as moderator or examiner must touch exactly one class. Both
// roles inside the same class count once.
func validateRoles(sessions []Session) error {
	classesByLecturer := make(map[string]map[int]bool)
	touch := func(name string, classNo int) {
		if name == "" {
			return
		}
		if classesByLecturer[name] == nil {
			classesByLecturer[name] = make(map[int]bool)
		}
		classesByLecturer[name][classNo] = true
	}

	for _, session := range sessions {
		touch(session.Moderator, session.ClassNo)
		if session.Examiner1 != nil {
			touch(*session.Examiner1, session.ClassNo)
		}
		if session.Examiner2 != nil {
			touch(*session.Examiner2, session.ClassNo)
		}
	}

	var conflicts []RoleConflict
	for name, classes := range classesByLecturer {
		if len(classes) <= 1 {
			continue
		}
		nums := make([]int, 0, len(classes))
		for classNo := range classes {
			nums = append(nums, classNo)
		}
		sort.Ints(nums)
		conflicts = append(conflicts, RoleConflict{Lecturer: name, Classes: nums})
	}
	if len(conflicts) == 0 {
		return nil
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Lecturer < conflicts[j].Lecturer })
	return &RoleConflictError{Conflicts: conflicts}
}
