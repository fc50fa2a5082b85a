package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmholt/eventscout/internal/filter"
	"github.com/pmholt/eventscout/internal/metrics"
)

func newScrapeCmd() *cobra.Command {
	var (
		flagDate          string
		flagBatchSize     int
		flagNoEnhance     bool
		flagSkipSponsored bool
		flagCategories    []string
		flagVenues        []string
		flagWeekendsOnly  bool
		flagFreeOnly      bool
		flagFormat        string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run the scrape-and-enrich pipeline for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			format := OutputFormat(strings.ToLower(flagFormat))
			if format != FormatText && format != FormatJSON {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
			}

			date := flagDate
			if date == "" {
				date = time.Now().Format("2006-01-02")
			}
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("invalid date %q: want YYYY-MM-DD", flagDate)
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, store, err := buildPipeline(ctx, cfg, metrics.NewUnregistered(), log)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := runOptions(cfg)
			if cmd.Flags().Changed("batch-size") {
				opts.BatchSize = flagBatchSize
			}
			if flagNoEnhance {
				opts.Enhance = false
			}
			if flagSkipSponsored {
				opts.SkipSponsored = true
			}
			if len(flagCategories) > 0 {
				opts.Categories = flagCategories
			}

			f := &filter.Filter{
				Venues:       flagVenues,
				WeekendsOnly: flagWeekendsOnly,
				FreeOnly:     flagFreeOnly,
			}
			if !f.IsEmpty() {
				log.Info().Str("filter", f.Describe()).Msg("inclusion filter active")
				opts.Include = f.Matches
			}

			result := p.Run(ctx, date, opts)

			if err := WriteResult(os.Stdout, result, format); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if !result.Success {
				os.Exit(ExitRunFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "Date to scrape, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "Concurrent calls per stage")
	cmd.Flags().BoolVar(&flagNoEnhance, "no-enhance", false, "Skip copy enhancement and the second persistence pass")
	cmd.Flags().BoolVar(&flagSkipSponsored, "skip-sponsored", false, "Drop sponsored listings")
	cmd.Flags().StringSliceVar(&flagCategories, "category", nil, "Keep only these categories (repeatable)")
	cmd.Flags().StringSliceVar(&flagVenues, "venue", nil, "Keep only events at these venues (repeatable)")
	cmd.Flags().BoolVar(&flagWeekendsOnly, "weekends-only", false, "Keep only Saturday and Sunday events")
	cmd.Flags().BoolVar(&flagFreeOnly, "free-only", false, "Keep only free events")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")

	return cmd
}
