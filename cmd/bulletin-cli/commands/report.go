package commands

import (
	"fmt"
	"log/slog"
	"time"

	"bulletin-scraper/cmd/bulletin-cli/utils"
	"bulletin-scraper/lib/serviceutil"
	"bulletin-scraper/services/catalog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	reportRuns        *int64
	reportCrossListed *bool
)

func init() {
	reportRuns = reportCmd.Flags().Int64("runs", 10, "How many recent runs to show.")
	reportCrossListed = reportCmd.Flags().Bool("cross-listed", false, "List likely cross-listed course pairs.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--runs <n>] [--cross-listed]",
	Short: "Shows recent scrape runs and catalog health.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		database := openDatabase(cfg)
		defer database.Close()
		store := catalog.NewStore(database, cfg.Database.ResolvedDriver())

		runs, err := store.Runs(ctx, *reportRuns)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"run", "started", "finished", "pages", "failed", "upserted", "skipped"})
		for _, run := range runs {
			finished := "running"
			if !run.FinishedAt.IsZero() {
				finished = run.FinishedAt.Format(time.DateTime)
			}
			t.AppendRow(table.Row{
				run.ID,
				run.StartedAt.Format(time.DateTime),
				finished,
				run.PagesFetched,
				run.PagesFailed,
				run.RecordsUpserted,
				run.RecordsSkipped,
			})
		}
		t.Render()

		count, err := store.CountCourses(ctx)
		if err != nil {
			serviceutil.Fatal("failed to count courses", err)
		}
		staleCount := 0
		if len(runs) > 0 {
			stale, err := store.StaleCourses(ctx, runs[0].StartedAt)
			if err != nil {
				serviceutil.Fatal("failed to list stale courses", err)
			}
			staleCount = len(stale)
		}
		slog.Info("catalog", "courses", count, "stale", staleCount)

		if !*reportCrossListed {
			return
		}
		candidates, err := catalog.CrossListingCandidates(ctx, store, catalog.DefaultCrossListThreshold)
		if err != nil {
			serviceutil.Fatal("failed to find cross-listing candidates", err)
		}
		t = utils.NewTable()
		t.AppendHeader(table.Row{"left", "right", "title", "similarity"})
		for _, c := range candidates {
			t.AppendRow(table.Row{
				c.Left.SubjectCode + " " + c.Left.CourseNumber,
				c.Right.SubjectCode + " " + c.Right.CourseNumber,
				c.Left.Title,
				fmt.Sprintf("%.3f", c.Similarity),
			})
		}
		t.Render()
	},
}
