package hunt

import (
	"rmmhunt/internal/threathunt"
)

// deduplicate builds the unique-activity map for a result. Activities
// are keyed by src.eventRecordId; when the same event was matched by
// more than one indicator category, the categories are unioned instead
// of duplicating the record.
func deduplicate(res *Result) {
	res.Unique = make(map[string]*UniqueActivity)
	addUnique(res.Unique, res.ExecutableActivities, IndicatorExecutable)
	addUnique(res.Unique, res.DomainActivities, IndicatorDomain)
	addUnique(res.Unique, res.PortActivities, IndicatorPort)
}

func addUnique(unique map[string]*UniqueActivity, activities []threathunt.Activity, indicator Indicator) {
	for _, a := range activities {
		key := a.EventRecordID()
		if existing, ok := unique[key]; ok {
			existing.Indicators[indicator] = true
			continue
		}
		unique[key] = &UniqueActivity{
			Activity:   a,
			Indicators: map[Indicator]bool{indicator: true},
		}
	}
}
