package token

import (
	"fmt"
	"strconv"
	"time"
)

var unitDurations = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
	'M': 30 * 24 * time.Hour,
	'y': 365 * 24 * time.Hour,
}

// ParseDuration parses license duration strings of the form "<int><unit>"
// with a single trailing unit letter: s, m, h, d, w, M, y. Anything else
// is a malformed input, reported as ErrMalformed.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: duration %q", ErrMalformed, s)
	}
	unit, ok := unitDurations[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown duration unit in %q", ErrMalformed, s)
	}
	amount, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("%w: duration amount in %q", ErrMalformed, s)
	}
	return time.Duration(amount) * unit, nil
}
