package preview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errBadTimestamp = errors.New("expected [hh:]mm:ss, seconds or a duration like 1m30s")

// parseJump accepts "90", "1:30", "1:02:03", "1:30.5" or "1m30s".
func parseJump(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errBadTimestamp
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, errBadTimestamp
		}
		return d, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, errBadTimestamp
	}

	var units int
	for i, p := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("%w: %q", errBadTimestamp, s)
		}
		units = units*60 + n
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 || (len(parts) > 1 && secs >= 60) {
		return 0, fmt.Errorf("%w: %q", errBadTimestamp, s)
	}
	total := time.Duration(units)*time.Minute + time.Duration(secs*float64(time.Second))
	return total, nil
}

func formatPosition(d time.Duration) string {
	d = max(d, 0)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%+.1fs", d.Seconds())
}
