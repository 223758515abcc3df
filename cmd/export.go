package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
	"github.com/addis-analytics/fi-dataset-cli/internal/export"
)

var (
	exportDatasetPath string
	exportOutput      string
	exportSheet       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the unified dataset to an .xlsx workbook",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		path := exportDatasetPath
		if path == "" {
			path = cfg.Dataset.Path
		}
		sheet := exportSheet
		if sheet == "" {
			sheet = cfg.Export.SheetName
		}

		tbl, err := dataset.Load(path)
		if err != nil {
			return err
		}

		if err := export.WriteXLSX(tbl, exportOutput, sheet); err != nil {
			return eris.Wrap(err, "export: write workbook")
		}

		zap.L().Info("exported dataset",
			zap.String("output", exportOutput),
			zap.String("sheet", sheet),
			zap.Int("rows", tbl.Len()),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDatasetPath, "dataset", "", "unified dataset path (default from config)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output .xlsx path (required)")
	exportCmd.Flags().StringVar(&exportSheet, "sheet", "", "worksheet name (default from config)")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
