package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath   string
	mysqlDSN string
)

var rootCmd = &cobra.Command{
	Use:   "cohortfit",
	Short: "Fit conversion curves to cohort event data",
	Long: `cohortfit models how cohorts convert over time.

Events (unit created, unit converted) live in an embedded SQLite
database, or in MySQL with --mysql. Commands fit parametric conversion
curves per group, estimate nonparametric Kaplan-Meier curves, and
export prediction tables for plotting.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("COHORTFIT_DB_PATH", "./cohortfit.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&mysqlDSN, "mysql", getEnvOrDefault("COHORTFIT_MYSQL_DSN", ""), "MySQL DSN, overrides --db")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
