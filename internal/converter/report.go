package converter

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"flacify/internal/resolver"
)

// PrintSummary renders the run-level report.
func PrintSummary(w io.Writer, stats Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Conversion Summary")

	t.AppendRows([]table.Row{
		{"Files found", stats.Total},
		{"Converted", stats.Converted},
		{"Copied (already FLAC)", stats.CopiedFLAC},
		{"Failed", stats.Failed},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Tags written", stats.TagsWritten},
		{"Tag failures", stats.TagsFailed},
	})

	if len(stats.Provenance) > 0 {
		t.AppendSeparator()
		for _, p := range []struct{ label, key string }{
			{"Metadata from existing tags", resolver.ProvenanceExisting},
			{"Metadata from catalog", resolver.ProvenanceCatalog},
			{"Metadata from fingerprint", resolver.ProvenanceAcoustic},
			{"Metadata from text search", resolver.ProvenanceText},
			{"Metadata from path fallback", resolver.ProvenanceFallback},
		} {
			if n := stats.Provenance[p.key]; n > 0 {
				t.AppendRow(table.Row{p.label, n})
			}
		}
	}

	t.AppendSeparator()
	if stats.Total > 0 {
		rate := float64(stats.Converted+stats.CopiedFLAC) / float64(stats.Total) * 100
		t.AppendRow(table.Row{"Success rate", fmt.Sprintf("%.1f%%", rate)})
		perFile := stats.Elapsed / time.Duration(stats.Total)
		t.AppendRow(table.Row{"Avg per file", perFile.Round(10 * time.Millisecond)})
	}
	t.AppendRow(table.Row{"Elapsed", stats.Elapsed.Round(100 * time.Millisecond)})
	t.Render()

	if stats.Failed > 0 {
		fmt.Fprintf(w, "%d file(s) failed to convert\n", stats.Failed)
	}
}
