package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/addis-analytics/fi-dataset-cli/internal/batch"
	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
	"github.com/addis-analytics/fi-dataset-cli/internal/merge"
	"github.com/addis-analytics/fi-dataset-cli/internal/model"
	"github.com/addis-analytics/fi-dataset-cli/internal/refset"
	"github.com/addis-analytics/fi-dataset-cli/internal/store"
)

var (
	mergeBatchPath     string
	mergeDatasetPath   string
	mergeRefsPath      string
	mergeLenient       bool
	mergeDryRun        bool
	mergeCreate        bool
	mergeCurator       string
	mergeNote          string
	mergeSummaryOutput string
	mergeNoAudit       bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Validate an enrichment batch and append it to the unified dataset",
	Long: `Validates every candidate record in a batch file against the unified
dataset and the reference-code set, then appends accepted records atomically.

In strict mode (default) a single invalid record rejects the whole batch and
the dataset file is left untouched. With --lenient only offending records are
skipped; every skip is reported in the summary.

Examples:
  # Strict merge of a curated CSV batch
  fidata merge --batch additions.csv

  # Validate only, no write
  fidata merge --batch additions.yaml --dry-run

  # Skip invalid records instead of rejecting the batch
  fidata merge --batch additions.csv --lenient --curator "enrichment-log"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("merge"); err != nil {
			return err
		}
		ctx := cmd.Context()

		datasetPath := mergeDatasetPath
		if datasetPath == "" {
			datasetPath = cfg.Dataset.Path
		}
		refsPath := mergeRefsPath
		if refsPath == "" {
			refsPath = cfg.Dataset.ReferencePath
		}

		refs, err := refset.Load(refsPath)
		if err != nil {
			return eris.Wrap(err, "merge: load reference set")
		}
		zap.L().Info("loaded reference set", zap.Int("codes", refs.Len()))

		b, err := batch.Load(mergeBatchPath)
		if err != nil {
			return eris.Wrap(err, "merge: load batch")
		}
		if mergeCurator != "" {
			b.Curator = mergeCurator
		}
		if mergeNote != "" {
			b.Note = mergeNote
		}
		zap.L().Info("loaded batch",
			zap.String("path", mergeBatchPath),
			zap.Int("records", len(b.Records)),
			zap.String("curator", b.Curator),
		)

		// The lock covers the full read-validate-write cycle.
		lock, err := dataset.Lock(datasetPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				zap.L().Warn("merge: release lock", zap.Error(err))
			}
		}()

		tbl, err := loadOrCreateDataset(datasetPath, mergeCreate)
		if err != nil {
			return err
		}

		report := newMerger(refs).Merge(tbl, b)
		report.DatasetPath = datasetPath
		report.DryRun = mergeDryRun

		if report.Applied() {
			if err := tbl.WriteAtomic(datasetPath); err != nil {
				return eris.Wrap(err, "merge: write dataset")
			}
			zap.L().Info("dataset updated",
				zap.String("path", datasetPath),
				zap.Int("rows", tbl.Len()),
			)
		}

		if !mergeDryRun && !mergeNoAudit {
			recordAuditRun(ctx, b, report)
		}

		if err := writeSummary(report); err != nil {
			return err
		}

		if report.Mode == model.ModeStrict && report.Rejected() > 0 {
			return eris.Errorf("merge: batch rejected (%d rejection(s))", report.Rejected())
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeBatchPath, "batch", "", "path to batch file, .csv or .yaml (required)")
	mergeCmd.Flags().StringVar(&mergeDatasetPath, "dataset", "", "unified dataset path (default from config)")
	mergeCmd.Flags().StringVar(&mergeRefsPath, "refs", "", "reference-code file path (default from config)")
	mergeCmd.Flags().BoolVar(&mergeLenient, "lenient", false, "skip invalid records instead of rejecting the batch")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "validate and report, never write")
	mergeCmd.Flags().BoolVar(&mergeCreate, "create", false, "start a new dataset file if none exists")
	mergeCmd.Flags().StringVar(&mergeCurator, "curator", "", "curator name recorded in the audit log")
	mergeCmd.Flags().StringVar(&mergeNote, "note", "", "batch note recorded in the audit log")
	mergeCmd.Flags().StringVar(&mergeSummaryOutput, "summary-output", "", "write the summary to a file (default: stdout)")
	mergeCmd.Flags().BoolVar(&mergeNoAudit, "no-audit", false, "skip recording the run in the audit store")
	_ = mergeCmd.MarkFlagRequired("batch")
	rootCmd.AddCommand(mergeCmd)
}

// newMerger builds a Merger from config and the --lenient flag.
func newMerger(refs *refset.ReferenceSet) *merge.Merger {
	mode := model.MergeMode(cfg.Merge.Mode)
	if mergeLenient {
		mode = model.ModeLenient
	}
	return merge.New(refs, merge.Options{Mode: mode, Pillars: cfg.Merge.Pillars})
}

// loadOrCreateDataset loads the unified dataset, bootstrapping an empty
// canonical table when the file is missing and create is set.
func loadOrCreateDataset(path string, create bool) (*dataset.Table, error) {
	tbl, err := dataset.Load(path)
	if err != nil {
		var le *dataset.LoadError
		if create && errors.As(err, &le) && os.IsNotExist(le.Err) {
			zap.L().Info("dataset file missing, starting empty", zap.String("path", path))
			return dataset.New(), nil
		}
		return nil, err
	}
	return tbl, nil
}

// recordAuditRun persists the run in the audit store. Failures are logged,
// not fatal: the dataset write already succeeded.
func recordAuditRun(ctx context.Context, b model.Batch, report *model.MergeReport) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		zap.L().Warn("merge: open audit store", zap.Error(err))
		return
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("merge: migrate audit store", zap.Error(err))
		return
	}

	stored, err := st.RecordRun(ctx, model.MergeRun{
		DatasetPath:  report.DatasetPath,
		Curator:      b.Curator,
		Note:         b.Note,
		Mode:         report.Mode,
		BatchSize:    report.BatchSize,
		Accepted:     report.Accepted,
		Rejections:   report.Rejections,
		ColumnsAdded: report.ColumnsAdded,
		DatasetRows:  report.DatasetRows,
	})
	if err != nil {
		zap.L().Warn("merge: record audit run", zap.Error(err))
		return
	}
	report.RunID = stored.ID
}

// writeSummary renders the report to the summary output file or stdout.
func writeSummary(report *model.MergeReport) error {
	summary := merge.FormatSummary(report)
	if mergeSummaryOutput != "" {
		if err := os.WriteFile(mergeSummaryOutput, []byte(summary), 0o644); err != nil {
			return eris.Wrap(err, "merge: write summary file")
		}
		return nil
	}
	fmt.Print(summary)
	return nil
}
