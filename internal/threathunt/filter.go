package threathunt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFilter is returned when a filter's include/exclude
// combination violates structural or server-declared capability
// constraints. It is never retried.
var ErrInvalidFilter = errors.New("invalid filter")

// ErrInvalidValue is returned when a caller-supplied domain, process
// path, IP, or port fails validation, before any network call is made.
var ErrInvalidValue = errors.New("invalid value")

// Filter narrows an activity query to a server-recognized field,
// matching any include value and none of the exclude values. This is
// the wire form sent in the _filters query parameter.
type Filter struct {
	ID            string   `json:"id"`
	IncludeValues []string `json:"includeValues"`
	ExcludeValues []string `json:"excludeValues"`
}

// FilterValues carries include/exclude value sets for an additional
// ad-hoc field filter.
type FilterValues struct {
	Include []string
	Exclude []string
}

// Include builds include-only FilterValues.
func Include(values ...string) FilterValues {
	return FilterValues{Include: values}
}

// BuildFilter validates include/exclude values against the field's
// capability metadata and returns the wire filter. Validation order:
// both sets empty, exclude on an exclude-unsupported field, multiple
// includes on a single-value field.
func (h *Hunter) BuildFilter(field string, include, exclude []string) (Filter, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return Filter{}, fmt.Errorf("%w: both include and exclude values for filter %s cannot be empty", ErrInvalidFilter, field)
	}

	meta, ok := h.fields[field]
	if !ok {
		return Filter{}, fmt.Errorf("%w: unknown filter field %s", ErrInvalidFilter, field)
	}
	if len(exclude) > 0 && meta.DisableExcludeSupport {
		return Filter{}, fmt.Errorf("%w: filter %s does not support exclude values", ErrInvalidFilter, field)
	}
	if len(include) > 1 && meta.IsSingleValue {
		return Filter{}, fmt.Errorf("%w: filter %s only supports a single value", ErrInvalidFilter, field)
	}

	f := Filter{ID: field, IncludeValues: include, ExcludeValues: exclude}
	if f.IncludeValues == nil {
		f.IncludeValues = []string{}
	}
	if f.ExcludeValues == nil {
		f.ExcludeValues = []string{}
	}
	return f, nil
}

// encodeFilters serializes filters as the compact JSON array the API
// expects in the _filters query parameter.
func encodeFilters(filters []Filter) (string, error) {
	b, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("encoding filters: %w", err)
	}
	return string(b), nil
}
