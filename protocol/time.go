package protocol

import "time"

// nowUTC is the single source of "current time" for default-filling decode
// paths in this package.
func nowUTC() time.Time {
	return time.Now().UTC()
}

// parseTimestamp accepts RFC3339 with or without fractional seconds,
// matching both Go's own MarshalJSON output and the "Z"-suffixed form
// emitted by other language runtimes on this wire.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
