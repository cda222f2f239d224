package threathunt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rmmhunt/internal/zeronetworks"
)

const testFieldMetadata = `{"filters":[
	{"id":"dstAsset","selections":[],"isSingleValue":false,"disableExcludeSupport":false},
	{"id":"srcProcessPath","selections":[],"isSingleValue":false,"disableExcludeSupport":true},
	{"id":"dstProcessPath","selections":[],"isSingleValue":false,"disableExcludeSupport":true},
	{"id":"dstPort","selections":[],"isSingleValue":false,"disableExcludeSupport":false},
	{"id":"dstIpAddress","selections":[],"isSingleValue":false,"disableExcludeSupport":false},
	{"id":"direction","selections":[{"id":"1","name":"Inbound"},{"id":"2","name":"Outbound"}],"isSingleValue":true,"disableExcludeSupport":false}
]}`

// newTestHunter builds a Hunter against a stub portal. activities
// handles requests to the network activities endpoint; the filter
// metadata endpoint is always served.
func newTestHunter(t *testing.T, activities http.HandlerFunc) (*Hunter, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/activities/network/filters", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testFieldMetadata)
	})
	if activities != nil {
		mux.HandleFunc("/api/v1/activities/network", activities)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api, err := zeronetworks.New("test-key", zeronetworks.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New client failed: %v", err)
	}
	h, err := NewHunter(context.Background(), api)
	if err != nil {
		t.Fatalf("NewHunter failed: %v", err)
	}
	return h, srv
}

func TestNewHunter_MergesStaticFields(t *testing.T) {
	h, _ := newTestHunter(t, nil)

	if !h.KnownField("dstAsset") {
		t.Error("dstAsset should be a known field")
	}
	for _, name := range []string{"trafficType", "state"} {
		meta, ok := h.Fields()[name]
		if !ok {
			t.Errorf("static field %s missing", name)
			continue
		}
		if len(meta.SelectionsByID) == 0 {
			t.Errorf("static field %s has no selection lookup", name)
		}
	}
	if h.Fields()["state"].SelectionsByID["2"] != "Blocked" {
		t.Error(`state selection "2" should map to Blocked`)
	}
}

func TestNewHunter_EmptyMetadataFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/activities/network/filters", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"filters":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api, _ := zeronetworks.New("test-key", zeronetworks.WithBaseURL(srv.URL))
	if _, err := NewHunter(context.Background(), api); err == nil {
		t.Fatal("NewHunter should fail when the portal returns no filter fields")
	}
}

func TestNewHunter_StaticFieldsNeverOverwriteServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/activities/network/filters", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"filters":[
			{"id":"state","selections":[{"id":"9","name":"ServerDefined"}],"isSingleValue":true,"disableExcludeSupport":true}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api, _ := zeronetworks.New("test-key", zeronetworks.WithBaseURL(srv.URL))
	h, err := NewHunter(context.Background(), api)
	if err != nil {
		t.Fatalf("NewHunter failed: %v", err)
	}

	meta := h.Fields()["state"]
	if !meta.IsSingleValue {
		t.Error("server-declared state metadata was overwritten by the static mapping")
	}
	if meta.SelectionsByID["9"] != "ServerDefined" {
		t.Errorf("state selections = %v, want the server-declared set", meta.SelectionsByID)
	}
}

func TestActivities_UnknownAdditionalField(t *testing.T) {
	h, _ := newTestHunter(t, nil)
	_, err := h.Activities(context.Background(), QueryOptions{
		Additional: map[string]FilterValues{"nonsense": Include("x")},
	})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("err = %v, want ErrInvalidFilter for an unknown field", err)
	}
}

func TestBuildFilter_Validation(t *testing.T) {
	h, _ := newTestHunter(t, nil)

	tests := []struct {
		name    string
		field   string
		include []string
		exclude []string
		wantErr bool
	}{
		{"include only", "dstAsset", []string{"a.example"}, nil, false},
		{"exclude only", "dstAsset", nil, []string{"b.example"}, false},
		{"both empty", "dstAsset", nil, nil, true},
		{"unknown field", "nonsense", []string{"x"}, nil, true},
		{"exclude unsupported", "srcProcessPath", []string{"x"}, []string{"y"}, true},
		{"multiple on single-value", "direction", []string{"1", "2"}, nil, true},
		{"single on single-value", "direction", []string{"1"}, nil, false},
	}
	for _, tt := range tests {
		f, err := h.BuildFilter(tt.field, tt.include, tt.exclude)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.name)
			} else if !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("%s: error should wrap ErrInvalidFilter, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if f.IncludeValues == nil || f.ExcludeValues == nil {
			t.Errorf("%s: value slices must be non-nil for wire encoding", tt.name)
		}
	}
}

func TestEncodeFilters(t *testing.T) {
	got, err := encodeFilters([]Filter{
		{ID: "dstPort", IncludeValues: []string{"8080"}, ExcludeValues: []string{}},
	})
	if err != nil {
		t.Fatalf("encodeFilters failed: %v", err)
	}
	want := `[{"id":"dstPort","includeValues":["8080"],"excludeValues":[]}]`
	if got != want {
		t.Errorf("encodeFilters = %s, want %s", got, want)
	}
}

func TestActivitiesToDomains_SendsFilter(t *testing.T) {
	var gotFilters, gotOrder, gotFrom string
	h, _ := newTestHunter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotFilters = q.Get("_filters")
		gotOrder = q.Get("order")
		gotFrom = q.Get("from")
		fmt.Fprint(w, `{"items":[{"src":{"eventRecordId":"e1"}}],"scrollCursor":""}`)
	})

	acts, err := h.ActivitiesToDomains(context.Background(),
		[]string{"rmm.example.com"}, QueryOptions{From: 1000, To: 2000})
	if err != nil {
		t.Fatalf("ActivitiesToDomains failed: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("got %d activities, want 1", len(acts))
	}
	if acts[0].EventRecordID() != "e1" {
		t.Errorf("EventRecordID = %q, want e1", acts[0].EventRecordID())
	}
	want := `[{"id":"dstAsset","includeValues":["rmm.example.com"],"excludeValues":[]}]`
	if gotFilters != want {
		t.Errorf("_filters = %s, want %s", gotFilters, want)
	}
	if gotOrder != "desc" {
		t.Errorf("order = %q, want desc", gotOrder)
	}
	if gotFrom != "1000" {
		t.Errorf("from = %q, want 1000", gotFrom)
	}
}

func TestActivitiesToDomains_RejectsBlank(t *testing.T) {
	h, _ := newTestHunter(t, nil)
	_, err := h.ActivitiesToDomains(context.Background(), []string{"ok.example", "  "}, QueryOptions{})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
}

func TestActivitiesToDestinationPorts_Validation(t *testing.T) {
	h, _ := newTestHunter(t, nil)
	for _, port := range []int{0, -1, 65536} {
		_, err := h.ActivitiesToDestinationPorts(context.Background(), []int{port}, QueryOptions{})
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("port %d: err = %v, want ErrInvalidValue", port, err)
		}
	}
}

func TestActivitiesToDestinationPorts_Stringified(t *testing.T) {
	var gotFilters string
	h, _ := newTestHunter(t, func(w http.ResponseWriter, r *http.Request) {
		gotFilters = r.URL.Query().Get("_filters")
		fmt.Fprint(w, `{"items":[],"scrollCursor":""}`)
	})

	if _, err := h.ActivitiesToDestinationPorts(context.Background(), []int{5938, 6568}, QueryOptions{}); err != nil {
		t.Fatalf("ActivitiesToDestinationPorts failed: %v", err)
	}
	want := `[{"id":"dstPort","includeValues":["5938","6568"],"excludeValues":[]}]`
	if gotFilters != want {
		t.Errorf("_filters = %s, want %s", gotFilters, want)
	}
}

func TestActivitiesToDestinationIPs_Validation(t *testing.T) {
	h, _ := newTestHunter(t, nil)
	_, err := h.ActivitiesToDestinationIPs(context.Background(), []string{"10.0.0.300"}, QueryOptions{})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
}

func TestActivities_AdditionalFiltersSorted(t *testing.T) {
	var gotFilters string
	h, _ := newTestHunter(t, func(w http.ResponseWriter, r *http.Request) {
		gotFilters = r.URL.Query().Get("_filters")
		fmt.Fprint(w, `{"items":[],"scrollCursor":""}`)
	})

	_, err := h.Activities(context.Background(), QueryOptions{
		Additional: map[string]FilterValues{
			"dstPort":  Include("8080"),
			"dstAsset": Include("a.example"),
		},
	})
	if err != nil {
		t.Fatalf("Activities failed: %v", err)
	}
	want := `[{"id":"dstAsset","includeValues":["a.example"],"excludeValues":[]},` +
		`{"id":"dstPort","includeValues":["8080"],"excludeValues":[]}]`
	if gotFilters != want {
		t.Errorf("_filters = %s, want %s", gotFilters, want)
	}
}
