package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

// ParseClock converts an "HH:MM" string into minutes of day.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("invalid time %q: expected HH:MM", raw))
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("invalid hour in %q", raw))
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("invalid minute in %q", raw))
	}
	if hour < 0 || minute < 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("negative time component in %q", raw))
	}
	return hour*60 + minute, nil
}

// FormatClock converts minutes of day back into a zero-padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
