// Package commands implements the CLI commands for adlens.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "adlens",
	Short: "Browser-driven ad library harvester",
	Long: `Adlens drives a real browser session against an ad library search UI,
selects country and category, submits a search term, captures the
results traffic, and extracts a deduplicated set of ad records.

Examples:
  # Harvest German ads matching a query
  adlens harvest -u "https://www.facebook.com/ads/library/" \
      --country Germany --query "solar panels"

  # Headful run with more pagination and CSV on stdout
  adlens harvest -u "https://www.facebook.com/ads/library/" \
      --country France --headless=false --scroll-rounds 6 --format csv

  # Site serving results over GraphQL instead of the async endpoint
  adlens harvest -u "https://www.facebook.com/ads/library/" \
      --country Japan --classifier graphql`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.adlens.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".adlens")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("ADLENS")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
