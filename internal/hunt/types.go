package hunt

import (
	"rmmhunt/internal/rmm"
	"rmmhunt/internal/threathunt"
)

// Indicator is the signature attribute category that caused an
// activity to match.
type Indicator string

const (
	IndicatorExecutable Indicator = "executable"
	IndicatorDomain     Indicator = "domain"
	IndicatorPort       Indicator = "port"
)

// indicatorOrder fixes the rendering order of indicator sets.
var indicatorOrder = []Indicator{IndicatorExecutable, IndicatorDomain, IndicatorPort}

// UniqueActivity is one deduplicated activity together with the set of
// indicator categories that matched it.
type UniqueActivity struct {
	Activity   threathunt.Activity
	Indicators map[Indicator]bool
}

// IndicatorList returns the matched indicator categories in fixed
// order.
func (u *UniqueActivity) IndicatorList() []string {
	var out []string
	for _, ind := range indicatorOrder {
		if u.Indicators[ind] {
			out = append(out, string(ind))
		}
	}
	return out
}

// Result accumulates one signature's hunt output: the raw activity
// lists per indicator category, then the deduplicated unique-activity
// map keyed by event record ID.
type Result struct {
	Signature rmm.Signature

	ExecutableActivities []threathunt.Activity
	DomainActivities     []threathunt.Activity
	PortActivities       []threathunt.Activity

	Unique map[string]*UniqueActivity
}

// HasIndicators reports whether any sub-query matched.
func (r *Result) HasIndicators() bool {
	return len(r.ExecutableActivities) > 0 ||
		len(r.DomainActivities) > 0 ||
		len(r.PortActivities) > 0
}
