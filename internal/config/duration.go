package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means 0; negative
// values are rejected. path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// TicksFor converts d to whole ticks of length tick, rounding down, with a
// floor of 1 and a ceiling of math.MaxInt32.
func TicksFor(d, tick time.Duration) uint32 {
	if tick <= 0 || d <= tick {
		return 1
	}
	n := d / tick
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return uint32(n)
}
