// Package report exports hunt findings to CSV and renders a terminal
// summary of what the hunt found.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rmmhunt/internal/threathunt"
)

// priorityColumns lead the CSV in this fixed order so the columns an
// analyst reads first are leftmost. Everything else follows sorted.
var priorityColumns = []string{
	"iso_timestamp",
	"rmml_name",
	"rmml_id",
	"indicators",
	"state",
	"src.srcAssetName",
	"src.ip",
	"src.userName",
	"src.assetType",
	"src.networkProtectionState",
	"src.processName",
	"dst.fqdn",
	"dst.ip",
	"protocol",
	"dst.port",
	"dst.assetType",
	"dst.networkProtectionState",
	"dst.processName",
	"trafficType",
}

// Flatten converts a nested activity into a single-level map with
// dot-joined keys. Scalars are stringified, slices are rendered as
// compact JSON.
func Flatten(a threathunt.Activity) map[string]string {
	flat := make(map[string]string)
	flattenInto(flat, "", map[string]any(a))
	return flat
}

func flattenInto(flat map[string]string, prefix string, m map[string]any) {
	for key, value := range m {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenInto(flat, name, v)
		case []any:
			b, err := json.Marshal(v)
			if err != nil {
				flat[name] = fmt.Sprintf("%v", v)
				continue
			}
			flat[name] = string(b)
		case nil:
			flat[name] = ""
		default:
			flat[name] = threathunt.Stringify(v)
		}
	}
}

// Columns returns the CSV header for the given rows: the priority
// columns that occur in the data, in their fixed order, followed by
// the remaining keys sorted.
func Columns(rows []map[string]string) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for key := range row {
			seen[key] = true
		}
	}

	var cols []string
	for _, col := range priorityColumns {
		if seen[col] {
			cols = append(cols, col)
			delete(seen, col)
		}
	}

	rest := make([]string, 0, len(seen))
	for key := range seen {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// UniqueFilename returns path if nothing exists there, otherwise the
// first name_N variant that is free.
func UniqueFilename(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// WriteCSV writes the activities to path, picking a non-clobbering
// variant of the name when the file already exists. It returns the
// path actually written.
func WriteCSV(path string, activities []threathunt.Activity) (string, error) {
	rows := make([]map[string]string, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, Flatten(a))
	}
	cols := Columns(rows)

	target := UniqueFilename(path)
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", target, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return target, nil
}
