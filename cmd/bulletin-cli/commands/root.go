package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"bulletin-scraper/lib/configutil"
	configdb "bulletin-scraper/lib/configutil/db"
	"bulletin-scraper/lib/serviceutil"
	"bulletin-scraper/lib/telemetry"
	catalogdb "bulletin-scraper/services/catalog/db"

	"github.com/spf13/cobra"
)

// ScrapeConfig is the scrape section of config.json5. Everything is
// optional; zero values defer to the pipeline defaults.
type ScrapeConfig struct {
	BaseURL        string   `json:"base_url"`
	Subjects       []string `json:"subjects"`
	Workers        int      `json:"workers"`
	MinDelayMs     int      `json:"min_delay_ms"`
	MaxDelayMs     int      `json:"max_delay_ms"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

type Config struct {
	Database configdb.Struct `json:"database"`
	Scrape   ScrapeConfig    `json:"scrape"`
}

var (
	configPath *string
	dbFlag     *string
	driverFlag *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "bulletin-cli",
	Short: "bulletin-cli scrapes the Penn State course bulletin into a catalog database.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the configuration file.")
	dbFlag = rootCmd.PersistentFlags().String("db", "bulletin.db", "Database path or DSN.")
	driverFlag = rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite, libsql or pgx.")
	verbose = rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging.")
}

// loadConfig reads config.json5 and folds the flag and environment
// overrides in. --db beats BULLETIN_DB_DSN beats the config file beats
// the flag default; a missing config file is fine.
func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}

	if rootCmd.PersistentFlags().Changed("db") {
		cfg.Database.DSN = *dbFlag
	} else if env := os.Getenv("BULLETIN_DB_DSN"); env != "" {
		cfg.Database.DSN = env
	} else if cfg.Database.DSN == "" {
		cfg.Database.DSN = *dbFlag
	}
	if *driverFlag != "" {
		cfg.Database.Driver = *driverFlag
	}
	return cfg
}

func openDatabase(cfg Config) *sql.DB {
	database, err := cfg.Database.OpenDB(catalogdb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	return database
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
