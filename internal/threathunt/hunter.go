// Package threathunt provides semantic query operations over Zero
// Networks network activities: typed input validation, filter
// composition against server-declared field capabilities, and
// paginated retrieval.
package threathunt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rmmhunt/internal/logging"
	"rmmhunt/internal/zeronetworks"
)

const activitiesEndpoint = "/activities/network"

// Well-known filter field IDs used by the semantic operations.
const (
	FieldDstAsset       = "dstAsset"
	FieldSrcProcessPath = "srcProcessPath"
	FieldDstProcessPath = "dstProcessPath"
	FieldDstPort        = "dstPort"
	FieldDstIPAddress   = "dstIpAddress"
)

// Hunter composes filters and drives paginated activity retrieval. It
// owns the API client and the network filter metadata for its
// lifetime; the metadata is loaded once at construction and immutable
// thereafter.
type Hunter struct {
	api      *zeronetworks.Client
	fields   map[string]FieldMeta
	pageSize int
	log      *zap.Logger
}

// HunterOption configures a Hunter.
type HunterOption func(*Hunter)

// WithPageSize sets the default page size for activity queries.
func WithPageSize(n int) HunterOption {
	return func(h *Hunter) {
		if n > 0 {
			h.pageSize = n
		}
	}
}

// WithLogger sets the hunter logger.
func WithLogger(log *zap.Logger) HunterOption {
	return func(h *Hunter) { h.log = log }
}

// NewHunter creates a Hunter and loads the network filter metadata
// from the API, merging in static mappings for fields the metadata
// endpoint omits.
func NewHunter(ctx context.Context, api *zeronetworks.Client, opts ...HunterOption) (*Hunter, error) {
	h := &Hunter{
		api:      api,
		pageSize: zeronetworks.DefaultPageSize,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	fields, err := loadFieldMeta(ctx, api, h.log)
	if err != nil {
		return nil, err
	}
	mergeAdditionalFields(fields, additionalFieldSelections, h.log)
	h.fields = fields

	h.log.Info("threat hunt tools initialized", logging.Count(len(fields)))
	return h, nil
}

// Fields returns the loaded field metadata, keyed by field ID. The map
// must be treated as read-only.
func (h *Hunter) Fields() map[string]FieldMeta { return h.fields }

// KnownField reports whether name is a queryable filter field.
func (h *Hunter) KnownField(name string) bool {
	_, ok := h.fields[name]
	return ok
}

// QueryOptions carries the common query parameters of the semantic
// operations. The zero value means: descending order, default page
// size, unbounded time range, no additional filters.
type QueryOptions struct {
	// Order is "asc" or "desc" (default "desc").
	Order string
	// PageSize overrides the hunter's default page size.
	PageSize int
	// From and To bound the query window in epoch milliseconds.
	From int64
	To   int64
	// Search is a free-text search term.
	Search string
	// EntityID restricts the query to one entity.
	EntityID string
	// Additional holds ad-hoc filters keyed by field ID; each field
	// must exist in the loaded metadata.
	Additional map[string]FilterValues
}

func (h *Hunter) queryParams(opts QueryOptions) url.Values {
	params := url.Values{}
	order := opts.Order
	if order == "" {
		order = "desc"
	}
	params.Set("order", order)
	if opts.From > 0 {
		params.Set("from", strconv.FormatInt(opts.From, 10))
	}
	if opts.To > 0 {
		params.Set("to", strconv.FormatInt(opts.To, 10))
	}
	if opts.Search != "" {
		params.Set("_search", opts.Search)
	}
	if opts.EntityID != "" {
		params.Set("_entityId", opts.EntityID)
	}
	return params
}

// additionalFilters builds the filters for opts.Additional in
// deterministic field order.
func (h *Hunter) additionalFilters(opts QueryOptions) ([]Filter, error) {
	if len(opts.Additional) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(opts.Additional))
	for name := range opts.Additional {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		fv := opts.Additional[name]
		f, err := h.BuildFilter(name, fv.Include, fv.Exclude)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// activities issues the paginated query for the given filters and
// materializes all matching records.
func (h *Hunter) activities(ctx context.Context, filters []Filter, opts QueryOptions) ([]Activity, error) {
	extra, err := h.additionalFilters(opts)
	if err != nil {
		return nil, err
	}
	filters = append(filters, extra...)

	params := h.queryParams(opts)
	if len(filters) > 0 {
		encoded, err := encodeFilters(filters)
		if err != nil {
			return nil, err
		}
		params.Set("_filters", encoded)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = h.pageSize
	}

	raw, err := h.api.Paginate(ctx, activitiesEndpoint, zeronetworks.PageOptions{
		PageSize: pageSize,
		Params:   params,
	}).Collect()
	if err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(raw))
	for _, item := range raw {
		var a Activity
		if err := json.Unmarshal(item, &a); err != nil {
			return nil, fmt.Errorf("decoding activity record: %w", err)
		}
		out = append(out, a)
	}
	h.log.Debug("retrieved network activities", logging.Count(len(out)))
	return out, nil
}

func validateStrings(kind string, values []string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty %s provided, expected non-empty %s string", ErrInvalidValue, kind, kind)
		}
	}
	return nil
}

// ActivitiesToDomains returns activities whose destination asset
// matches any of the given domains.
func (h *Hunter) ActivitiesToDomains(ctx context.Context, domains []string, opts QueryOptions) ([]Activity, error) {
	if err := validateStrings("domain", domains); err != nil {
		return nil, err
	}
	f, err := h.BuildFilter(FieldDstAsset, domains, nil)
	if err != nil {
		return nil, err
	}
	return h.activities(ctx, []Filter{f}, opts)
}

// ActivitiesFromSourceProcesses returns activities originating from
// any of the given process paths.
func (h *Hunter) ActivitiesFromSourceProcesses(ctx context.Context, processPaths []string, opts QueryOptions) ([]Activity, error) {
	if err := validateStrings("process path", processPaths); err != nil {
		return nil, err
	}
	f, err := h.BuildFilter(FieldSrcProcessPath, processPaths, nil)
	if err != nil {
		return nil, err
	}
	return h.activities(ctx, []Filter{f}, opts)
}

// ActivitiesToDestinationProcesses returns activities terminating at
// any of the given process paths.
func (h *Hunter) ActivitiesToDestinationProcesses(ctx context.Context, processPaths []string, opts QueryOptions) ([]Activity, error) {
	if err := validateStrings("process path", processPaths); err != nil {
		return nil, err
	}
	f, err := h.BuildFilter(FieldDstProcessPath, processPaths, nil)
	if err != nil {
		return nil, err
	}
	return h.activities(ctx, []Filter{f}, opts)
}

// ActivitiesToDestinationPorts returns activities to any of the given
// destination ports. Ports must be in [1, 65535].
func (h *Hunter) ActivitiesToDestinationPorts(ctx context.Context, ports []int, opts QueryOptions) ([]Activity, error) {
	values := make([]string, 0, len(ports))
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: port %d out of valid range, expected integer port number between 1 and 65535", ErrInvalidValue, port)
		}
		values = append(values, strconv.Itoa(port))
	}
	f, err := h.BuildFilter(FieldDstPort, values, nil)
	if err != nil {
		return nil, err
	}
	return h.activities(ctx, []Filter{f}, opts)
}

// ActivitiesToDestinationIPs returns activities to any of the given
// destination IP addresses.
func (h *Hunter) ActivitiesToDestinationIPs(ctx context.Context, ips []string, opts QueryOptions) ([]Activity, error) {
	for _, ip := range ips {
		if net.ParseIP(ip) == nil {
			return nil, fmt.Errorf("%w: invalid IP address %q, expected IP address string", ErrInvalidValue, ip)
		}
	}
	f, err := h.BuildFilter(FieldDstIPAddress, ips, nil)
	if err != nil {
		return nil, err
	}
	return h.activities(ctx, []Filter{f}, opts)
}

// Activities returns activities matching the additional filters in
// opts alone. With no filters set it returns everything in the query
// window.
func (h *Hunter) Activities(ctx context.Context, opts QueryOptions) ([]Activity, error) {
	return h.activities(ctx, nil, opts)
}

// AssetName resolves an asset ID to its display name.
func (h *Hunter) AssetName(ctx context.Context, assetID string) (string, error) {
	return h.api.AssetName(ctx, assetID)
}
