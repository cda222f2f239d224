package threathunt

import (
	"fmt"
	"time"
)

// iso8601Layouts are the accepted timestamp layouts, tried in order.
// Layouts without a zone are interpreted as UTC.
var iso8601Layouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// ParseISO8601 parses an ISO-8601 timestamp and returns epoch
// milliseconds. A trailing Z or an explicit numeric offset is honored;
// a timestamp without any offset is assumed to be UTC.
func ParseISO8601(s string) (int64, error) {
	for _, l := range iso8601Layouts {
		loc := time.UTC
		t, err := time.ParseInLocation(l.layout, s, loc)
		if err != nil {
			continue
		}
		return t.UTC().UnixMilli(), nil
	}
	return 0, fmt.Errorf(
		"invalid ISO8601 timestamp %q: expected ISO8601 format (e.g. 2024-01-01T12:00:00Z, 2024-01-01T12:00:00+05:00, 2024-01-01T12:00:00)",
		s)
}

// FormatEpochMillis renders an epoch-milliseconds timestamp as an
// ISO-8601 UTC string.
func FormatEpochMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.999-07:00")
}
