package commands

import (
	"log/slog"
	"os"

	"bulletin-scraper/lib/serviceutil"
	"bulletin-scraper/services/catalog"

	"github.com/spf13/cobra"
)

var (
	exportOut     *string
	exportSubject *string
)

func init() {
	exportOut = exportCmd.Flags().String("out", "courses.csv", "The file to write the export to.")
	exportSubject = exportCmd.Flags().String("subject", "", "Limit the export to one subject code.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--out <path/to/courses.csv>] [--subject <code>]",
	Short: "Exports the catalog database to a CSV file.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		database := openDatabase(cfg)
		defer database.Close()
		store := catalog.NewStore(database, cfg.Database.ResolvedDriver())

		f, err := os.Create(*exportOut)
		if err != nil {
			serviceutil.Fatal("failed to create output file", err)
		}
		defer f.Close()

		n, err := catalog.ExportCSV(cmd.Context(), store, f, *exportSubject)
		if err != nil {
			serviceutil.Fatal("failed to export courses", err)
		}
		slog.Info("exported courses", "rows", n, "file", *exportOut)
	},
}
