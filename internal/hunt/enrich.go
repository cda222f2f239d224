package hunt

import (
	"context"
	"fmt"

	"rmmhunt/internal/logging"
	"rmmhunt/internal/threathunt"
	"rmmhunt/internal/zeronetworks"
)

// fieldNameAliases maps activity attribute keys whose wire name
// diverges from the corresponding filter metadata field name.
var fieldNameAliases = map[string]string{
	"protocol":               "protocolType",
	"networkProtectionState": "srcAssetProtectionState",
	"assetType":              "srcAssetType",
}

// enrich rewrites each unique activity of a result: attaches an
// ISO-8601 UTC timestamp derived from the epoch-ms one, resolves the
// source asset ID to a name through the shared cache, and substitutes
// enumerated selection IDs with their human-readable names. The
// original records are not mutated; each activity is replaced with a
// transformed copy.
func (o *Ops) enrich(ctx context.Context, res *Result) error {
	if len(res.Unique) == 0 {
		o.log.Warn("no unique activities for signature",
			logging.Signature(res.Signature.Name), logging.SignatureID(res.Signature.ID))
		return nil
	}

	for _, u := range res.Unique {
		a := u.Activity.Clone()

		if ts, ok := a.TimestampMillis(); ok {
			a["iso_timestamp"] = threathunt.FormatEpochMillis(ts)
		}

		if assetID := a.NestedString("src", "assetId"); assetID != "" {
			name, err := o.resolveAssetName(ctx, assetID)
			if err != nil {
				return fmt.Errorf("resolving asset %s: %w", assetID, err)
			}
			if src, ok := a["src"].(map[string]any); ok {
				src["srcAssetName"] = name
			}
		}

		u.Activity = threathunt.Activity(o.transform(map[string]any(a)).(map[string]any))
	}
	return nil
}

// transform returns a copy of v with every scalar whose key maps to a
// filter field with enumerated selections replaced by the selection
// name. Traversal never mutates its input.
func (o *Ops) transform(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, item := range val {
			out[key] = o.transformEntry(key, item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = o.transform(item)
		}
		return out
	default:
		return val
	}
}

func (o *Ops) transformEntry(key string, v any) any {
	switch val := v.(type) {
	case map[string]any:
		return o.transform(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = o.transformEntry(key, item)
		}
		return out
	case string, float64, int, int64, bool:
		return o.mapSelection(key, val)
	default:
		return val
	}
}

// mapSelection resolves a scalar value against the selections of the
// field the key refers to, honoring the wire-name aliases.
func (o *Ops) mapSelection(key string, value any) any {
	if alias, ok := fieldNameAliases[key]; ok {
		key = alias
	}
	meta, ok := o.facade.Fields()[key]
	if !ok || meta.SelectionsByID == nil {
		return value
	}
	if name, ok := meta.SelectionsByID[threathunt.Stringify(value)]; ok {
		return name
	}
	return value
}

// resolveAssetName looks an asset ID up through the shared cache,
// querying the API on a miss. Not-found assets degrade to a
// placeholder; the mutex is held across the lookup so concurrent
// misses for the same ID make a single API call.
func (o *Ops) resolveAssetName(ctx context.Context, assetID string) (string, error) {
	o.assetsMu.Lock()
	defer o.assetsMu.Unlock()

	if name, ok := o.assetNames[assetID]; ok {
		return name, nil
	}

	name, err := o.facade.AssetName(ctx, assetID)
	if err != nil {
		if zeronetworks.IsNotFound(err) {
			o.log.Warn("unable to resolve asset ID to asset name", logging.AssetID(assetID))
			name = "N/A"
		} else {
			return "", err
		}
	}
	o.assetNames[assetID] = name
	return name, nil
}
