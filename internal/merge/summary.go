package merge

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/addis-analytics/fi-dataset-cli/internal/model"
)

// FormatSummary renders a merge report for the curator: counts, schema
// changes, and every rejected record with its precise reason.
func FormatSummary(report *model.MergeReport) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	fmt.Fprintf(&b, "merge summary (%s mode)\n", report.Mode)
	if report.DryRun {
		b.WriteString("  dry run: dataset file not modified\n")
	}
	p.Fprintf(&b, "  batch:        %d record(s)\n", report.BatchSize)
	p.Fprintf(&b, "  accepted:     %d\n", report.Accepted)
	p.Fprintf(&b, "  rejected:     %d\n", report.Rejected())
	if len(report.ColumnsAdded) > 0 {
		fmt.Fprintf(&b, "  columns added: %s\n", strings.Join(report.ColumnsAdded, ", "))
	}
	p.Fprintf(&b, "  dataset rows: %d\n", report.DatasetRows)

	if len(report.Rejections) > 0 {
		b.WriteString("  rejections:\n")
		for _, rej := range report.Rejections {
			id := rej.RecordID
			if id == "" {
				id = "(no id)"
			}
			if rej.Field != "" {
				fmt.Fprintf(&b, "    %s [%s]: %s\n", id, rej.Field, rej.Reason)
			} else {
				fmt.Fprintf(&b, "    %s: %s\n", id, rej.Reason)
			}
		}
		if report.Mode == model.ModeStrict && report.Accepted == 0 && report.BatchSize > 0 {
			b.WriteString("  strict mode: entire batch rejected, dataset unchanged\n")
		}
	}

	return b.String()
}
