package executor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseISO8601Duration parses the restricted subset of ISO 8601 durations
// spec.md's Limit.Timeout and Delay/RetryPolicy intervals use
// ("PnDTnHnMnS"). Empty input means "no bound".
func parseISO8601Duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("workflow: invalid ISO 8601 duration %q", s)
	}
	s = s[1:]

	var datePart, timePart string
	if idx := strings.IndexByte(s, 'T'); idx >= 0 {
		datePart, timePart = s[:idx], s[idx+1:]
	} else {
		datePart = s
	}

	var total time.Duration

	days, rest, err := takeNumber(datePart, 'D')
	if err != nil {
		return 0, err
	}
	total += time.Duration(days) * 24 * time.Hour
	if rest != "" {
		return 0, fmt.Errorf("workflow: unsupported duration component in %q", s)
	}

	hours, rest, err := takeNumber(timePart, 'H')
	if err != nil {
		return 0, err
	}
	total += time.Duration(hours * float64(time.Hour))

	minutes, rest, err := takeNumber(rest, 'M')
	if err != nil {
		return 0, err
	}
	total += time.Duration(minutes * float64(time.Minute))

	seconds, rest, err := takeNumber(rest, 'S')
	if err != nil {
		return 0, err
	}
	total += time.Duration(seconds * float64(time.Second))
	if rest != "" {
		return 0, fmt.Errorf("workflow: unsupported duration component in %q", s)
	}

	return total, nil
}

// takeNumber extracts a leading "<float><unit>" prefix from s, returning
// the parsed value and the remainder. If s does not start with a digit
// (i.e. that unit is absent), it returns 0 and s unchanged.
func takeNumber(s string, unit byte) (float64, string, error) {
	if s == "" {
		return 0, "", nil
	}
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != unit {
		return 0, s, nil
	}
	val, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, s, fmt.Errorf("workflow: invalid duration number %q: %w", s[:i], err)
	}
	return val, s[i+1:], nil
}
