package commands

import (
	"log/slog"
	"os"
	"slices"
	"time"

	"bulletin-scraper/cmd/bulletin-cli/utils"
	"bulletin-scraper/lib/restyutil"
	"bulletin-scraper/lib/scrapers/bulletin"
	"bulletin-scraper/lib/telemetry"
	"bulletin-scraper/services/catalog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeSubjects *[]string
	scrapeWorkers  *int
)

func init() {
	scrapeSubjects = scrapeCmd.Flags().StringSlice("subject", nil, "Limit the scrape to these subject codes.")
	scrapeWorkers = scrapeCmd.Flags().Int("workers", 0, "Concurrent page fetchers, at most 4.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--subject <code>]... [--workers <n>]",
	Short: "Scrapes bulletin course descriptions into the catalog database.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if *verbose {
			bulletin.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/bulletin"))
		}

		database := openDatabase(cfg)
		defer database.Close()

		telemetry.InstrumentPerfStats(cmd.Context())

		runCfg := catalog.Config{
			BaseURL:      cfg.Scrape.BaseURL,
			SubjectCodes: cfg.Scrape.Subjects,
			Workers:      cfg.Scrape.Workers,
			MinDelay:     time.Duration(cfg.Scrape.MinDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Scrape.MaxDelayMs) * time.Millisecond,
			Timeout:      time.Duration(cfg.Scrape.TimeoutSeconds) * time.Second,
		}
		if len(*scrapeSubjects) > 0 {
			runCfg.SubjectCodes = *scrapeSubjects
		}
		if *scrapeWorkers > 0 {
			runCfg.Workers = *scrapeWorkers
		}

		store := catalog.NewStore(database, cfg.Database.ResolvedDriver())
		pipeline := catalog.NewPipeline(store)

		t1 := time.Now()
		summary, err := pipeline.Run(cmd.Context(), runCfg)
		t2 := time.Now()

		renderSummary(summary)
		slog.Info("scraping time", "seconds", t2.Sub(t1).Seconds())

		if err != nil {
			slog.Error("run did not complete", "run_id", summary.RunID, "err", err)
			os.Exit(1)
		}
	},
}

func renderSummary(summary catalog.Summary) {
	t := utils.NewTable()
	t.AppendHeader(table.Row{"run", summary.RunID})
	t.AppendRow(table.Row{"pages committed", summary.PagesFetched})
	t.AppendRow(table.Row{"pages failed", summary.PagesFailed})
	t.AppendRow(table.Row{"records upserted", summary.RecordsUpserted})
	t.AppendRow(table.Row{"records skipped", summary.RecordsSkipped})
	t.Render()

	if len(summary.Failures) == 0 && len(summary.Skips) == 0 {
		return
	}
	t = utils.NewTable()
	t.AppendHeader(table.Row{"reason", "count"})
	for _, reason := range sortedKeys(summary.Failures) {
		t.AppendRow(table.Row{reason, summary.Failures[reason]})
	}
	for _, reason := range sortedKeys(summary.Skips) {
		t.AppendRow(table.Row{reason, summary.Skips[reason]})
	}
	t.Render()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
