package threathunt

import (
	"strconv"
)

// Activity is one network activity record as returned by the telemetry
// API. Records are opaque to the hunt core except for a handful of
// enrichment fields (timestamp, src/dst attributes).
type Activity map[string]any

// Nested returns the value at a dotted-path of map keys.
func (a Activity) Nested(path ...string) (any, bool) {
	var current any = map[string]any(a)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// NestedString returns the value at a path of map keys, stringified.
// Numbers are rendered without a trailing decimal point.
func (a Activity) NestedString(path ...string) string {
	v, ok := a.Nested(path...)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// EventRecordID returns the stable per-event identifier used for
// deduplication.
func (a Activity) EventRecordID() string {
	return a.NestedString("src", "eventRecordId")
}

// TimestampMillis returns the record's epoch-milliseconds timestamp, if
// it carries an integral numeric one.
func (a Activity) TimestampMillis() (int64, bool) {
	v, ok := a["timestamp"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// Clone returns a deep copy of the activity.
func (a Activity) Clone() Activity {
	return Activity(cloneValue(map[string]any(a)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Stringify renders a scalar JSON value as the string form used in
// filter values and lookup keys. JSON numbers decode as float64, so
// integral values are rendered without a fraction.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return ""
	}
}
