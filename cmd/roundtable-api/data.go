package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roundtable-labs/backend/internal/analytics"
)

// newDataCommand groups the dataset import and sync jobs. Each job opens
// the same database the server uses and upserts, so reruns are safe.
func newDataCommand() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Import and sync the Seoul trading-area datasets",
	}
	dataCmd.AddCommand(
		newImportTradingAreasCommand(),
		newSyncTradingAreasCommand(),
		newImportIndustryMetricsCommand(),
		newImportChangeIndexCommand(),
		newImportClosuresCommand(),
		newFetchStoreCountsCommand(),
	)
	return dataCmd
}

func logImportStats(logger *zap.Logger, job string, stats analytics.ImportStats) {
	logger.Info("import finished",
		zap.String("job", job),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped))
}

func newImportTradingAreasCommand() *cobra.Command {
	var file, encoding string
	cmd := &cobra.Command{
		Use:   "import-trading-areas",
		Short: "Load trading area master rows from a CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			stats, err := app.analytics.ImportTradingAreas(cmd.Context(), file, encoding)
			if err != nil {
				return err
			}
			logImportStats(app.logger, "trading_areas", stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file path")
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "CSV encoding (utf-8, cp949, euc-kr)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSyncTradingAreasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-trading-areas",
		Short: "Sync trading area master rows from the Seoul open API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			stats, err := app.analytics.SyncTradingAreas(cmd.Context())
			if err != nil {
				return err
			}
			logImportStats(app.logger, "trading_areas_sync", stats)
			return nil
		},
	}
}

func newImportIndustryMetricsCommand() *cobra.Command {
	var file, encoding string
	cmd := &cobra.Command{
		Use:   "import-industry-metrics",
		Short: "Load quarterly industry sales rows from a CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			stats, err := app.analytics.ImportIndustryMetrics(cmd.Context(), file, encoding)
			if err != nil {
				return err
			}
			logImportStats(app.logger, "industry_metrics", stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file path")
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "CSV encoding (utf-8, cp949, euc-kr)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newImportChangeIndexCommand() *cobra.Command {
	var file, encoding string
	cmd := &cobra.Command{
		Use:   "import-change-index",
		Short: "Load market change indicator rows from a CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			stats, err := app.analytics.ImportChangeIndex(cmd.Context(), file, encoding)
			if err != nil {
				return err
			}
			logImportStats(app.logger, "change_index", stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file path")
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "CSV encoding (utf-8, cp949, euc-kr)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newImportClosuresCommand() *cobra.Command {
	var (
		file, encoding string
		signguColumn   string
		year, wideYear int
		yearColumn     string
		categoryColumn string
		countColumn    string
		meltColumns    []string
		skipTotalRow   bool
	)
	cmd := &cobra.Command{
		Use:   "import-closures",
		Short: "Load yearly closure statistics from a CSV export",
		Long: "Load yearly closure statistics from a CSV export. Tall files carry " +
			"year/category/count columns; wide files carry one count column per " +
			"category, melted with --wide-year and --melt-columns.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			stats, err := app.analytics.ImportClosures(cmd.Context(), file, analytics.ClosureImportOptions{
				Encoding:         encoding,
				SignguNameColumn: signguColumn,
				Year:             year,
				YearColumn:       yearColumn,
				CategoryColumn:   categoryColumn,
				CountColumn:      countColumn,
				WideYear:         wideYear,
				MeltColumns:      meltColumns,
				SkipTotalRow:     skipTotalRow,
			})
			if err != nil {
				return err
			}
			logImportStats(app.logger, "closures", stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file path")
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "CSV encoding (utf-8, cp949, euc-kr)")
	cmd.Flags().StringVar(&signguColumn, "signgu-column", "", "District name column")
	cmd.Flags().IntVar(&year, "year", 0, "Fixed year for tall files without a year column")
	cmd.Flags().StringVar(&yearColumn, "year-column", "", "Year column for tall files")
	cmd.Flags().StringVar(&categoryColumn, "category-column", "", "Category column for tall files")
	cmd.Flags().StringVar(&countColumn, "count-column", "", "Closure count column for tall files")
	cmd.Flags().IntVar(&wideYear, "wide-year", 0, "Year assigned to wide files")
	cmd.Flags().StringSliceVar(&meltColumns, "melt-columns", nil, "Category columns melted from wide files")
	cmd.Flags().BoolVar(&skipTotalRow, "skip-total", false, "Drop pre-summed total rows instead of storing them")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFetchStoreCountsCommand() *cobra.Command {
	var (
		radius int
		trdar  string
	)
	cmd := &cobra.Command{
		Use:   "fetch-store-counts",
		Short: "Cache radius store censuses for trading areas with coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			stats, err := app.analytics.FetchStoreCounts(cmd.Context(), radius, trdar)
			if err != nil {
				return err
			}
			logImportStats(app.logger, "store_counts", stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&radius, "radius", 2000, "Census radius in meters")
	cmd.Flags().StringVar(&trdar, "trdar", "", "Limit to one trading area code")
	return cmd
}
