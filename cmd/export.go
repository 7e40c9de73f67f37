package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/export"
	"github.com/SyedAaraiz0050/territory-intel/internal/scoring"
)

var (
	exportPath   string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ranked call list to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.AllEnriched(ctx)
		if err != nil {
			return err
		}

		ranked := scoring.New(cfg.Scoring).Rank(records)
		rows := export.Rows(ranked)

		path := cfg.Export.Path
		if exportPath != "" {
			path = exportPath
		}
		format := cfg.Export.Format
		if exportFormat != "" {
			format = exportFormat
		}

		if err := export.WriteFile(path, format, rows); err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", path),
			zap.String("format", format),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "out", "", "output path (default from config)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "csv or xlsx (default from config)")
	rootCmd.AddCommand(exportCmd)
}
