package scheduler

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

// Engine runs the defense-assignment pipeline:
// moderators → room packing → examiners → timetable → conflict check.
// It holds no mutable state; every invocation allocates its own run
// trackers, so concurrent runs cannot see each other's tallies.
type Engine struct {
	logger *zap.Logger
}

// New constructs an Engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Run produces a conflict-free timetable for the roster, or fails with
// a validation or role-conflict error. Soft shortfalls (missing
// examiners, window overflow) are reported as warnings on the result,
// never as errors.
func (e *Engine) Run(params Params, roster []Candidate, pool []Lecturer) (*Result, error) {
	windowStart, windowEnd, err := validateParams(params, roster, pool)
	if err != nil {
		return nil, err
	}

	// Work on a copy: advisor names get canonicalised in place.
	roster = append([]Candidate(nil), roster...)
	names, err := resolveAdvisors(roster, pool)
	if err != nil {
		return nil, err
	}

	state := newRunState()
	warnings := make([]string, 0)

	tagged := state.assignModerators(roster, params.SessionsPerClass)
	rooms := packRooms(tagged, params.SessionsPerClass)

	assigned := make([][]roomAssignment, 0, len(rooms))
	for i, room := range rooms {
		assigned = append(assigned, state.assignExaminers(room, names, i+1, &warnings))
	}

	sessions := buildTimetable(assigned, params, windowStart, windowEnd, &warnings)

	if err := validateRoles(sessions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRoleConflict.Code, appErrors.ErrRoleConflict.Status, err.Error())
	}

	e.logger.Debug("scheduling run complete",
		zap.Int("students", len(roster)),
		zap.Int("classes", len(rooms)),
		zap.Int("warnings", len(warnings)),
	)
	return &Result{Sessions: sessions, Warnings: warnings}, nil
}

func validateParams(params Params, roster []Candidate, pool []Lecturer) (int, int, error) {
	if strings.TrimSpace(params.ExamDate) == "" {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "exam date is required")
	}
	if params.DurationMinutes <= 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "session duration must be a positive number of minutes")
	}
	if params.SessionsPerClass <= 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "sessions per class must be positive")
	}
	windowStart, err := ParseClock(params.WindowStart)
	if err != nil {
		return 0, 0, err
	}
	windowEnd, err := ParseClock(params.WindowEnd)
	if err != nil {
		return 0, 0, err
	}
	if windowEnd <= windowStart {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "window end must be after window start")
	}
	if len(roster) == 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "roster is empty")
	}
	if len(pool) == 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "lecturer pool is empty")
	}
	return windowStart, windowEnd, nil
}

// resolveAdvisors validates every roster row, canonicalises advisor
// names against the pool (case-insensitive) and returns the pool's
// display names. Any malformed row or unknown advisor fails the whole
// run with the offending row identified.
func resolveAdvisors(roster []Candidate, pool []Lecturer) ([]string, error) {
	byLower := make(map[string]string, len(pool))
	names := make([]string, 0, len(pool))
	for _, lecturer := range pool {
		byLower[strings.ToLower(strings.TrimSpace(lecturer.Name))] = lecturer.Name
		names = append(names, lecturer.Name)
	}

	seen := make(map[string]int, len(roster))
	for i := range roster {
		row := &roster[i]
		rowNo := i + 1
		if strings.TrimSpace(row.NRP) == "" {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("row %d: nrp is required", rowNo))
		}
		if prev, dup := seen[row.NRP]; dup {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("row %d: nrp %s already appears in row %d", rowNo, row.NRP, prev))
		}
		seen[row.NRP] = rowNo
		for field, value := range map[string]string{
			"name":          row.Name,
			"thesis title":  row.Title,
			"advisor1 name": row.Advisor1,
			"advisor2 name": row.Advisor2,
		} {
			if strings.TrimSpace(value) == "" {
				return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("row %d (nrp %s): %s is required", rowNo, row.NRP, field))
			}
		}

		advisor1, ok := byLower[strings.ToLower(strings.TrimSpace(row.Advisor1))]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("row %d (nrp %s): advisor %q not found in lecturer pool", rowNo, row.NRP, row.Advisor1))
		}
		advisor2, ok := byLower[strings.ToLower(strings.TrimSpace(row.Advisor2))]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid, fmt.Sprintf("row %d (nrp %s): advisor %q not found in lecturer pool", rowNo, row.NRP, row.Advisor2))
		}
		row.Advisor1 = advisor1
		row.Advisor2 = advisor2
	}
	return names, nil
}
