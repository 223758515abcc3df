package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/addis-analytics/fi-dataset-cli/internal/batch"
	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
	"github.com/addis-analytics/fi-dataset-cli/internal/merge"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
	"github.com/addis-analytics/fi-dataset-cli/internal/refset"
)

var (
	validateBatchPath   string
	validateDatasetPath string
	validateRefsPath    string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a batch against the dataset without writing anything",
	Long: `Runs the full merge validation (schema shape, id uniqueness,
referential integrity, enums and ranges) and prints the report. The dataset
file is never opened for writing and no lock is taken.

Exits non-zero when any record is rejected, so it can gate a CI step.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		datasetPath := validateDatasetPath
		if datasetPath == "" {
			datasetPath = cfg.Dataset.Path
		}
		refsPath := validateRefsPath
		if refsPath == "" {
			refsPath = cfg.Dataset.ReferencePath
		}

		report, err := runValidate(datasetPath, refsPath, validateBatchPath, cfg.Merge.Pillars)
		if err != nil {
			return err
		}

		fmt.Print(merge.FormatSummary(report))

		if report.Rejected() > 0 {
			zap.L().Warn("validate: batch has rejections",
				zap.Int("rejections", report.Rejected()),
			)
			return eris.Errorf("validate: %d record(s) rejected", report.Rejected())
		}
		return nil
	},
}

// runValidate does a dry-run merge. Always strict, regardless of the
// configured merge mode: a validation pass reports the batch as a whole.
func runValidate(datasetPath, refsPath, batchPath string, pillars []string) (*model.MergeReport, error) {
	refs, err := refset.Load(refsPath)
	if err != nil {
		return nil, eris.Wrap(err, "validate: load reference set")
	}

	b, err := batch.Load(batchPath)
	if err != nil {
		return nil, eris.Wrap(err, "validate: load batch")
	}

	tbl, err := dataset.Load(datasetPath)
	if err != nil {
		return nil, err
	}

	m := merge.New(refs, merge.Options{Mode: model.ModeStrict, Pillars: pillars})

	report := m.Merge(tbl, b)
	report.DatasetPath = datasetPath
	report.DryRun = true
	return report, nil
}

func init() {
	validateCmd.Flags().StringVar(&validateBatchPath, "batch", "", "path to batch file, .csv or .yaml (required)")
	validateCmd.Flags().StringVar(&validateDatasetPath, "dataset", "", "unified dataset path (default from config)")
	validateCmd.Flags().StringVar(&validateRefsPath, "refs", "", "reference-code file path (default from config)")
	_ = validateCmd.MarkFlagRequired("batch")
	rootCmd.AddCommand(validateCmd)
}
