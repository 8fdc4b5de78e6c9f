package exchange

import "time"

// Clock supplies wall-clock timestamps for registrations and shuffles.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC at millisecond precision, which is
// what the persisted ISO-8601 timestamps carry.
type SystemClock struct{}

// Now returns the current UTC time truncated to milliseconds.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
