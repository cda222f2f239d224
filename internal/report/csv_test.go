package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"rmmhunt/internal/threathunt"
)

func TestFlatten(t *testing.T) {
	a := threathunt.Activity{
		"rmml_name": "TeamViewer",
		"src": map[string]any{
			"ip":   "10.0.0.1",
			"port": float64(50123),
			"geo":  map[string]any{"country": "DE"},
		},
		"tags":  []any{"a", "b"},
		"empty": nil,
	}
	got := Flatten(a)
	want := map[string]string{
		"rmml_name":       "TeamViewer",
		"src.ip":          "10.0.0.1",
		"src.port":        "50123",
		"src.geo.country": "DE",
		"tags":            `["a","b"]`,
		"empty":           "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestColumns_PriorityFirst(t *testing.T) {
	rows := []map[string]string{
		{"zz_custom": "1", "iso_timestamp": "t", "src.ip": "10.0.0.1"},
		{"aa_custom": "2", "rmml_name": "TV"},
	}
	got := Columns(rows)
	want := []string{"iso_timestamp", "rmml_name", "src.ip", "aa_custom", "zz_custom"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Columns = %v, want %v", got, want)
	}
}

func TestUniqueFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	if got := UniqueFilename(path); got != path {
		t.Errorf("UniqueFilename = %q, want %q for a fresh path", got, path)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "out_1.csv")
	if got := UniqueFilename(path); got != want {
		t.Errorf("UniqueFilename = %q, want %q", got, want)
	}

	if err := os.WriteFile(want, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	want2 := filepath.Join(dir, "out_2.csv")
	if got := UniqueFilename(path); got != want2 {
		t.Errorf("UniqueFilename = %q, want %q", got, want2)
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hunt.csv")

	activities := []threathunt.Activity{
		{
			"iso_timestamp": "2024-01-01T12:00:00+00:00",
			"rmml_name":     "TeamViewer",
			"src":           map[string]any{"ip": "10.0.0.1"},
		},
		{
			"iso_timestamp": "2024-01-01T13:00:00+00:00",
			"rmml_name":     "AnyDesk",
			"extra":         "value",
		},
	}

	written, err := WriteCSV(path, activities)
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if written != path {
		t.Errorf("written = %q, want %q", written, path)
	}

	f, err := os.Open(written)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header plus 2 rows", len(records))
	}

	header := records[0]
	wantHeader := []string{"iso_timestamp", "rmml_name", "src.ip", "extra"}
	if !reflect.DeepEqual(header, wantHeader) {
		t.Errorf("header = %v, want %v", header, wantHeader)
	}
	if records[1][1] != "TeamViewer" || records[1][2] != "10.0.0.1" {
		t.Errorf("row 1 = %v", records[1])
	}
	// A column absent from a row is left empty.
	if records[2][2] != "" || records[2][3] != "value" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestWriteCSV_AvoidsClobbering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hunt.csv")
	if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	written, err := WriteCSV(path, []threathunt.Activity{{"rmml_name": "TV"}})
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if written != filepath.Join(dir, "hunt_1.csv") {
		t.Errorf("written = %q, want hunt_1.csv", written)
	}
	original, err := os.ReadFile(path)
	if err != nil || string(original) != "existing" {
		t.Errorf("original file was modified: %q, %v", original, err)
	}
}
