// Package hunt orchestrates an RMM threat hunt: for each signature it
// issues process, domain, and port sub-queries concurrently across a
// bounded worker pool, then deduplicates, enriches, and aggregates the
// matching network activities.
package hunt

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rmmhunt/internal/logging"
	"rmmhunt/internal/rmm"
	"rmmhunt/internal/threathunt"
)

// DefaultWorkers is the default size of the signature worker pool.
const DefaultWorkers = 5

// commonPorts are excluded from port-based sub-queries: traffic on
// them is too low-signal to hunt on. They stay in the signature's
// reporting metadata.
var commonPorts = map[int]bool{80: true, 443: true}

// Facade is the query surface the orchestrator drives. It is satisfied
// by *threathunt.Hunter.
type Facade interface {
	ActivitiesFromSourceProcesses(ctx context.Context, processPaths []string, opts threathunt.QueryOptions) ([]threathunt.Activity, error)
	ActivitiesToDestinationProcesses(ctx context.Context, processPaths []string, opts threathunt.QueryOptions) ([]threathunt.Activity, error)
	ActivitiesToDomains(ctx context.Context, domains []string, opts threathunt.QueryOptions) ([]threathunt.Activity, error)
	ActivitiesToDestinationPorts(ctx context.Context, ports []int, opts threathunt.QueryOptions) ([]threathunt.Activity, error)
	AssetName(ctx context.Context, assetID string) (string, error)
	Fields() map[string]threathunt.FieldMeta
}

// Ops coordinates a hunt across a set of RMM signatures. The asset
// name cache is the one piece of state shared between workers.
type Ops struct {
	facade     Facade
	signatures []rmm.Signature
	workers    int
	log        *zap.Logger

	assetsMu   sync.Mutex
	assetNames map[string]string
}

// Option configures Ops.
type Option func(*Ops)

// WithWorkers sets the signature worker pool size.
func WithWorkers(n int) Option {
	return func(o *Ops) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Ops) { o.log = log }
}

// NewOps creates a hunt orchestrator over the given signatures.
func NewOps(facade Facade, signatures []rmm.Signature, opts ...Option) *Ops {
	o := &Ops{
		facade:     facade,
		signatures: signatures,
		workers:    DefaultWorkers,
		log:        zap.NewNop(),
		assetNames: make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the complete hunt workflow over the [from, to] window
// (epoch milliseconds): concurrent per-signature hunts, filtering to
// signatures with matches, deduplication, enrichment, and aggregation
// into one flat activity list ready for export.
func (o *Ops) Execute(ctx context.Context, from, to int64) ([]*Result, []threathunt.Activity, error) {
	results := o.runHunts(ctx, from, to)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	matched := results[:0]
	for _, res := range results {
		if res.HasIndicators() {
			matched = append(matched, res)
		}
	}
	o.log.Info("signatures with indicators", logging.Count(len(matched)))

	for _, res := range matched {
		deduplicate(res)
		o.log.Debug("deduplicated signature activities",
			logging.Signature(res.Signature.Name), logging.Count(len(res.Unique)))
		if err := o.enrich(ctx, res); err != nil {
			return nil, nil, err
		}
	}

	flat := Aggregate(matched)
	o.log.Info("aggregated indicating activities", logging.Count(len(flat)))
	return matched, flat, nil
}

// runHunts fans the signatures out across the worker pool. A failing
// signature is logged and excluded; it never aborts the other workers.
// Results arrive in completion order.
func (o *Ops) runHunts(ctx context.Context, from, to int64) []*Result {
	o.log.Info("starting concurrent hunt",
		logging.Count(len(o.signatures)), zap.Int("workers", o.workers))

	var mu sync.Mutex
	var results []*Result

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, sig := range o.signatures {
		g.Go(func() error {
			res, err := o.huntSignature(ctx, sig, from, to)
			if err != nil {
				o.log.Error("hunt failed for signature",
					logging.Signature(sig.Name), logging.SignatureID(sig.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			o.log.Debug("completed hunt for signature",
				logging.Signature(sig.Name), logging.SignatureID(sig.ID))
			return nil
		})
	}
	_ = g.Wait()

	o.log.Info("finished hunting", logging.Count(len(results)))
	return results
}

// huntSignature issues the signature's sub-queries sequentially: the
// executable list feeds both a source- and a destination-process
// query, since an RMM tool may sit at either end of a connection.
// Missing indicator kinds skip their sub-query.
func (o *Ops) huntSignature(ctx context.Context, sig rmm.Signature, from, to int64) (*Result, error) {
	o.log.Info("starting hunt for signature",
		logging.Signature(sig.Name), logging.SignatureID(sig.ID))

	res := &Result{Signature: sig}
	opts := threathunt.QueryOptions{From: from, To: to}

	if paths := sig.ExecutablePaths(); len(paths) > 0 {
		src, err := o.facade.ActivitiesFromSourceProcesses(ctx, paths, opts)
		if err != nil {
			return nil, err
		}
		res.ExecutableActivities = append(res.ExecutableActivities, src...)

		dst, err := o.facade.ActivitiesToDestinationProcesses(ctx, paths, opts)
		if err != nil {
			return nil, err
		}
		res.ExecutableActivities = append(res.ExecutableActivities, dst...)
	}

	if len(sig.Domains) > 0 {
		domains, err := o.facade.ActivitiesToDomains(ctx, sig.Domains, opts)
		if err != nil {
			return nil, err
		}
		res.DomainActivities = domains
	}

	if ports := huntablePorts(sig.Ports); len(ports) > 0 {
		portActivities, err := o.facade.ActivitiesToDestinationPorts(ctx, ports, opts)
		if err != nil {
			return nil, err
		}
		res.PortActivities = portActivities
	} else if len(sig.Ports) > 0 {
		o.log.Debug("signature only lists common ports, skipping port search",
			logging.Signature(sig.Name))
	}

	o.log.Info("finished hunt for signature",
		logging.Signature(sig.Name), logging.SignatureID(sig.ID))
	return res, nil
}

// huntablePorts drops the common low-signal ports from a signature's
// port list. The full list stays on the signature for reporting.
func huntablePorts(ports []int) []int {
	var out []int
	for _, p := range ports {
		if !commonPorts[p] {
			out = append(out, p)
		}
	}
	return out
}

// Aggregate flattens the deduplicated activities of all matched
// signatures into one list, tagging each activity with its signature
// name and ID and the comma-joined indicator categories.
func Aggregate(results []*Result) []threathunt.Activity {
	var all []threathunt.Activity
	for _, res := range results {
		keys := make([]string, 0, len(res.Unique))
		for key := range res.Unique {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			u := res.Unique[key]
			a := u.Activity.Clone()
			a["rmml_name"] = res.Signature.Name
			a["rmml_id"] = res.Signature.ID
			a["indicators"] = strings.Join(u.IndicatorList(), ", ")
			all = append(all, a)
		}
	}
	return all
}
