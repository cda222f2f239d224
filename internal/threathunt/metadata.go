package threathunt

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"rmmhunt/internal/logging"
	"rmmhunt/internal/zeronetworks"
)

const filtersEndpoint = "/activities/network/filters"

// Selection is one enumerated value of a network filter field.
type Selection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldMeta is the server-declared capability metadata for one
// queryable network activity field.
type FieldMeta struct {
	ID                    string      `json:"id"`
	Selections            []Selection `json:"selections"`
	IsSingleValue         bool        `json:"isSingleValue"`
	DisableExcludeSupport bool        `json:"disableExcludeSupport"`

	// SelectionsByName and SelectionsByID are derived lookup maps for
	// fields with enumerated selections.
	SelectionsByName map[string]string `json:"-"`
	SelectionsByID   map[string]string `json:"-"`
}

// additionalFieldSelections holds static selection mappings for fields
// the filters endpoint omits but which still appear, as raw IDs, in
// activity records.
var additionalFieldSelections = map[string][]Selection{
	"trafficType": {
		{ID: "1", Name: "North - south"},
		{ID: "2", Name: "East - west"},
	},
	"state": {
		{ID: "1", Name: "Allowed"},
		{ID: "2", Name: "Blocked"},
	},
}

func newFieldMeta(id string, selections []Selection, singleValue, noExclude bool) FieldMeta {
	meta := FieldMeta{
		ID:                    id,
		Selections:            selections,
		IsSingleValue:         singleValue,
		DisableExcludeSupport: noExclude,
	}
	if len(selections) > 0 {
		meta.SelectionsByName = make(map[string]string, len(selections))
		meta.SelectionsByID = make(map[string]string, len(selections))
		for _, sel := range selections {
			meta.SelectionsByName[sel.Name] = sel.ID
			meta.SelectionsByID[sel.ID] = sel.Name
		}
	}
	return meta
}

// loadFieldMeta fetches the network filter metadata and transforms it
// into a map keyed by field ID. Duplicate IDs keep the first entry.
func loadFieldMeta(ctx context.Context, api *zeronetworks.Client, log *zap.Logger) (map[string]FieldMeta, error) {
	body, err := api.Get(ctx, filtersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching network filters: %w", err)
	}

	var resp struct {
		Filters []FieldMeta `json:"filters"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding network filters: %w", err)
	}
	if len(resp.Filters) == 0 {
		return nil, fmt.Errorf("no network filters returned by %s", filtersEndpoint)
	}

	fields := make(map[string]FieldMeta, len(resp.Filters))
	for _, f := range resp.Filters {
		if _, exists := fields[f.ID]; exists {
			log.Debug("skipping duplicate filter field", logging.Field(f.ID))
			continue
		}
		fields[f.ID] = newFieldMeta(f.ID, f.Selections, f.IsSingleValue, f.DisableExcludeSupport)
	}
	log.Debug("loaded network filter fields", logging.Count(len(fields)))
	return fields, nil
}

// mergeAdditionalFields adds static selection mappings for fields the
// server's metadata endpoint omits. Server-declared fields are never
// overwritten.
func mergeAdditionalFields(fields map[string]FieldMeta, extra map[string][]Selection, log *zap.Logger) {
	for id, selections := range extra {
		if _, exists := fields[id]; exists {
			continue
		}
		fields[id] = newFieldMeta(id, selections, false, false)
		log.Debug("added static filter field mapping", logging.Field(id))
	}
}
