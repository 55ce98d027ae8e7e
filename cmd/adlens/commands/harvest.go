package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adlens/adlens/internal/browser"
	"github.com/adlens/adlens/internal/capture"
	"github.com/adlens/adlens/internal/logger"
	"github.com/adlens/adlens/internal/output"
	"github.com/adlens/adlens/internal/session"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run one harvest session against an ad library search page",
	Long: `Harvest drives a single browser session: load the search page, select
country and category through their dropdown widgets, submit the search
term, scroll to paginate, and capture the results traffic.

Raw payloads, results (JSON and CSV), and diagnostics land in the run
directory; the deduplicated record set is also written to stdout in the
chosen format.

Examples:
  adlens harvest -u "https://www.facebook.com/ads/library/" \
      --country Germany --query "insurance"

  adlens harvest -u "https://www.facebook.com/ads/library/" \
      --country Germany --category "Housing" --scroll-rounds 8 \
      --output-dir ./runs/housing-de`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	flags := harvestCmd.Flags()

	// Target
	flags.StringP("url", "u", "", "ad library search page URL (required)")
	flags.String("country", "United States", "country to select")
	flags.String("category", "", "ad category to select (empty keeps the default)")
	flags.String("query", "", "search term to submit")

	// Page specifics that drift with redesigns
	flags.String("readiness-text", "results", "text that must be visible before interaction starts")
	flags.String("country-trigger-label", "United States", "text the country dropdown trigger currently displays")
	flags.String("category-trigger-label", "All ads", "text the category dropdown trigger currently displays")

	// Browser settings
	flags.Bool("headless", true, "run the browser headless")
	flags.Duration("settle-delay", 1200*time.Millisecond, "fixed wait after widget-mutating actions")
	flags.Duration("timeout", 60*time.Second, "navigation timeout")

	// Capture settings
	flags.String("classifier", "endpoint", "results classifier variant: endpoint, graphql")
	flags.Int("max-payloads", 200, "stop capturing after this many accepted responses")
	flags.Int("scroll-rounds", 3, "scroll-and-pause pagination rounds")

	// Output settings
	flags.StringP("output-dir", "o", "", "run directory (default ./runs/<timestamp>)")
	flags.String("format", "json", "stdout format: json, jsonl, yaml, csv")

	_ = harvestCmd.MarkFlagRequired("url")

	_ = viper.BindPFlag("classifier", flags.Lookup("classifier"))
	_ = viper.BindPFlag("headless", flags.Lookup("headless"))
}

func runHarvest(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	flags := cmd.Flags()

	cfg := session.DefaultConfig()
	cfg.StartURL, _ = flags.GetString("url")
	cfg.Country, _ = flags.GetString("country")
	cfg.Category, _ = flags.GetString("category")
	cfg.Query, _ = flags.GetString("query")
	cfg.ReadinessText, _ = flags.GetString("readiness-text")
	cfg.CountryTriggerLabel, _ = flags.GetString("country-trigger-label")
	cfg.CategoryTriggerLabel, _ = flags.GetString("category-trigger-label")
	cfg.ScrollRounds, _ = flags.GetInt("scroll-rounds")
	cfg.NavTimeout, _ = flags.GetDuration("timeout")

	if err := cfg.Validate(); err != nil {
		logError("%v", err)
		return err
	}

	formatStr, _ := flags.GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		logError("%v", err)
		return err
	}

	classifier, err := capture.NewClassifier(capture.Variant(viper.GetString("classifier")))
	if err != nil {
		logError("%v", err)
		return err
	}

	outputDir, _ := flags.GetString("output-dir")
	if outputDir == "" {
		outputDir = filepath.Join("runs", started.Format("20060102-150405"))
	}
	store, err := output.NewRunStore(outputDir)
	if err != nil {
		logError("%v", err)
		return err
	}
	logger.Debug("run directory created", "dir", store.Dir())

	browserCfg := browser.DefaultConfig()
	browserCfg.Headless = viper.GetBool("headless")
	browserCfg.SettleDelay, _ = flags.GetDuration("settle-delay")

	b, err := browser.Launch(browserCfg)
	if err != nil {
		logError("failed to launch browser: %v", err)
		return err
	}
	defer b.Close()

	maxPayloads, _ := flags.GetInt("max-payloads")
	listener := capture.NewListener(classifier, store, maxPayloads)

	logInfo("Harvesting %s (country=%s, query=%q)", cfg.StartURL, cfg.Country, cfg.Query)

	records, err := session.New(b, listener, store, cfg).Run(ctx)
	if err != nil {
		logError("harvest failed: %v (diagnostics in %s)", err, store.Dir())
		return err
	}

	if err := output.Encode(os.Stdout, format, records); err != nil {
		logError("failed to write results: %v", err)
		return err
	}

	logInfo("Harvested %s unique record(s) from %d payload(s) in %s; artifacts in %s",
		humanize.Comma(int64(len(records))),
		len(listener.Payloads()),
		time.Since(started).Round(time.Second),
		store.Dir())
	return nil
}
