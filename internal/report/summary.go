package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"rmmhunt/internal/hunt"
	"rmmhunt/internal/threathunt"
)

// topN caps the destination and process tables in the summary.
const topN = 10

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	alertColor  = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen)
)

// Stats summarizes a completed hunt.
type Stats struct {
	SignaturesScanned int
	SignaturesWithHits int
	TotalActivities   int
	HitsPerSignature  []SignatureHits
	TopDestinations   []NamedCount
	TopProcesses      []NamedCount
}

// SignatureHits counts the unique activities one signature matched,
// broken down by indicator category.
type SignatureHits struct {
	Name        string
	ID          string
	Unique      int
	Executables int
	Domains     int
	Ports       int
}

// NamedCount is a value with an occurrence count.
type NamedCount struct {
	Name  string
	Count int
}

// BuildStats derives summary statistics from the matched signatures
// and the flat tagged activity list.
func BuildStats(scanned int, results []*hunt.Result, activities []threathunt.Activity) Stats {
	stats := Stats{
		SignaturesScanned:  scanned,
		SignaturesWithHits: len(results),
		TotalActivities:    len(activities),
	}

	for _, res := range results {
		hits := SignatureHits{
			Name:   res.Signature.Name,
			ID:     res.Signature.ID,
			Unique: len(res.Unique),
		}
		for _, u := range res.Unique {
			if u.Indicators[hunt.IndicatorExecutable] {
				hits.Executables++
			}
			if u.Indicators[hunt.IndicatorDomain] {
				hits.Domains++
			}
			if u.Indicators[hunt.IndicatorPort] {
				hits.Ports++
			}
		}
		stats.HitsPerSignature = append(stats.HitsPerSignature, hits)
	}
	sort.Slice(stats.HitsPerSignature, func(i, j int) bool {
		a, b := stats.HitsPerSignature[i], stats.HitsPerSignature[j]
		if a.Unique != b.Unique {
			return a.Unique > b.Unique
		}
		return a.Name < b.Name
	})

	stats.TopDestinations = topCounts(activities, destinationLabel)
	stats.TopProcesses = topCounts(activities, func(a threathunt.Activity) string {
		return a.NestedString("src", "processName")
	})
	return stats
}

// destinationLabel prefers the destination FQDN and falls back to its
// IP address.
func destinationLabel(a threathunt.Activity) string {
	if fqdn := a.NestedString("dst", "fqdn"); fqdn != "" {
		return fqdn
	}
	return a.NestedString("dst", "ip")
}

func topCounts(activities []threathunt.Activity, label func(threathunt.Activity) string) []NamedCount {
	counts := make(map[string]int)
	for _, a := range activities {
		if name := label(a); name != "" {
			counts[name]++
		}
	}
	out := make([]NamedCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, NamedCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// PrintSummary renders the hunt summary tables to w.
func PrintSummary(w io.Writer, stats Stats) {
	fmt.Fprintln(w)
	headerColor.Fprintln(w, "Hunt Summary")
	fmt.Fprintf(w, "Signatures scanned: %d\n", stats.SignaturesScanned)
	if stats.SignaturesWithHits == 0 {
		okColor.Fprintln(w, "No RMM indicators found.")
		return
	}
	alertColor.Fprintf(w, "Signatures with hits: %d\n", stats.SignaturesWithHits)
	fmt.Fprintf(w, "Indicating activities: %d\n\n", stats.TotalActivities)

	headerColor.Fprintln(w, "Hits per signature")
	sigTable := tablewriter.NewWriter(w)
	sigTable.Header("Signature", "ID", "Unique", "Executable", "Domain", "Port")
	for _, hits := range stats.HitsPerSignature {
		sigTable.Append(hits.Name, hits.ID,
			strconv.Itoa(hits.Unique), strconv.Itoa(hits.Executables),
			strconv.Itoa(hits.Domains), strconv.Itoa(hits.Ports))
	}
	sigTable.Render()

	if len(stats.TopDestinations) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Top destinations")
		renderCounts(w, "Destination", stats.TopDestinations)
	}
	if len(stats.TopProcesses) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Top source processes")
		renderCounts(w, "Process", stats.TopProcesses)
	}
}

func renderCounts(w io.Writer, label string, counts []NamedCount) {
	table := tablewriter.NewWriter(w)
	table.Header(label, "Activities")
	for _, c := range counts {
		table.Append(c.Name, strconv.Itoa(c.Count))
	}
	table.Render()
}
