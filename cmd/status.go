package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
)

var statusDatasetPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print dataset shape: row counts per record type and the column set",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		path := statusDatasetPath
		if path == "" {
			path = cfg.Dataset.Path
		}

		tbl, err := dataset.Load(path)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		var sb strings.Builder
		p.Fprintf(&sb, "dataset: %s\n", path)
		p.Fprintf(&sb, "rows:    %d\n", tbl.Len())

		byType := tbl.CountByType()
		for _, rt := range sortedKeys(byType) {
			p.Fprintf(&sb, "  %-12s %d\n", rt, byType[rt])
		}

		byPillar := tbl.CountByPillar()
		if len(byPillar) > 0 {
			sb.WriteString("pillars:\n")
			for _, pl := range sortedKeys(byPillar) {
				p.Fprintf(&sb, "  %-12s %d\n", pl, byPillar[pl])
			}
		}

		latest := tbl.LatestObservationDates()
		if len(latest) > 0 {
			sb.WriteString("latest observations:\n")
			codes := make([]string, 0, len(latest))
			for code := range latest {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				p.Fprintf(&sb, "  %-24s %s\n", code, latest[code])
			}
		}

		sb.WriteString("columns: " + strings.Join(tbl.Header, ", ") + "\n")

		fmt.Print(sb.String())
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDatasetPath, "dataset", "", "unified dataset path (default from config)")
	rootCmd.AddCommand(statusCmd)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
