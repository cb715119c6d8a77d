// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"grabbit/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagDebug       bool
	flagDownloadDir string
	flagDatabase    string
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// log is the process-wide logger, configured in loadConfig.
var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "grabbit",
	Short: "Telegram media downloader bot",
	Long: `Grabbit is a Telegram bot that downloads videos and audio from
YouTube, Instagram, TikTok, Facebook, Twitter/X, Reddit, and Vimeo,
with a multi-tier fallback extractor for Facebook.`,
	PersistentPreRunE: loadConfig,
	RunE:              runBot,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagDownloadDir, "download-dir", "d", "", "Directory for temporary downloads")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "Path to the SQLite database")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	if flagDownloadDir != "" {
		cfg.DownloadDir = flagDownloadDir
	}
	if flagDatabase != "" {
		cfg.DatabasePath = flagDatabase
	}
	if flagDebug {
		cfg.Debug = true
	}

	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return nil
}
