package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotescrape/internal/app"
	"github.com/JakeFAU/quotescrape/internal/config"
	"github.com/JakeFAU/quotescrape/internal/logging"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "quotescrape",
		Short: "Crawl quotes.toscrape.com into CSV and XLSX",
		Long: `quotescrape walks every listing page of quotes.toscrape.com in order,
fetches each author's page concurrently and writes the merged records to a
quoted CSV file and a styled XLSX workbook.

Settings come from defaults, an optional YAML file (--config) and
QUOTES_* environment variables such as QUOTES_CRAWLER_MAX_PAGES.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, cfgFile)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	return cmd
}

func run(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("init failed", zap.Error(err))
		return err
	}
	if _, err := a.Run(cmd.Context()); err != nil {
		logger.Error("run failed", zap.String("run_id", a.RunID()), zap.Error(err))
		return err
	}
	return nil
}
