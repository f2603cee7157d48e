package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimecode converts a strict "HH:MM:SS" timecode to whole seconds.
func ParseTimecode(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timecode %q is not in HH:MM:SS form", s)
	}

	var total int
	for i, multiplier := range []int{3600, 60, 1} {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("timecode %q has a non-numeric field: %w", s, err)
		}
		if v < 0 {
			return 0, fmt.Errorf("timecode %q has a negative field", s)
		}
		total += v * multiplier
	}
	return total, nil
}

// ParseRange splits a "HH:MM:SS - HH:MM:SS" range into start and end seconds.
func ParseRange(s string) (int, int, error) {
	startStr, endStr, ok := strings.Cut(s, " - ")
	if !ok {
		return 0, 0, fmt.Errorf("time range %q is not in \"HH:MM:SS - HH:MM:SS\" form", s)
	}

	start, err := ParseTimecode(startStr)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimecode(endStr)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// FormatTimecode renders whole seconds as "HH:MM:SS".
func FormatTimecode(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
