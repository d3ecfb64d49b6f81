package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"flacify/internal/config"
	"flacify/internal/converter"
	"flacify/internal/logger"
	"flacify/internal/progress"
	"flacify/internal/shutdown"
)

func newConvertCmd() *cobra.Command {
	var (
		outputDir     string
		compatibility bool
		noMetadata    bool
		noFingerprint bool
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "convert <source-dir>",
		Short: "Convert a WAV directory tree to FLAC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if compatibility {
				cfg.CompatibilityMode = true
			}
			if noMetadata {
				cfg.EnableMetadata = false
			}
			if noFingerprint {
				cfg.EnableFingerprinting = false
			}
			if dryRun {
				cfg.DryRun = true
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return runConvert(args[0], cfg)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "output directory (default: sibling of source)")
	cmd.Flags().BoolVar(&compatibility, "compatibility", false, "16-bit FLAC for older players")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "skip metadata resolution and tagging")
	cmd.Flags().BoolVar(&noFingerprint, "no-fingerprint", false, "skip AcoustID fingerprint lookups")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "list what would be converted without writing")

	return cmd
}

func runConvert(source string, cfg config.Config) error {
	sh := shutdown.New()
	sh.Listen()

	log := logger.New(cfg.Verbose)
	defer log.Close()
	setupFileLog(log, cfg)

	sh.AddCleanup(func() {
		log.Warn("interrupt received, stopping after the current file")
	})

	conv, err := converter.New(source, cfg, log)
	if err != nil {
		return err
	}
	log.Info("converting %s -> %s", source, conv.OutputDir())

	var bar *progress.Bar
	hooks := converter.Hooks{
		OnFilesFound: func(total int) {
			if !cfg.Verbose && !cfg.DryRun && total > 0 {
				bar = progress.New(total)
				log.SetProgressBar(true)
			}
		},
		OnFile: func(relPath string) {
			if bar != nil {
				bar.SetLabel(relPath)
			}
		},
		OnProgress: func() {
			if bar != nil {
				bar.Increment()
			}
		},
	}

	stats, err := conv.Run(sh.Context(), hooks)

	if bar != nil {
		bar.Finish()
		log.SetProgressBar(false)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			converter.PrintSummary(os.Stdout, stats)
			return fmt.Errorf("interrupted after %d of %d files", stats.Converted+stats.CopiedFLAC+stats.Failed, stats.Total)
		}
		return err
	}

	converter.PrintSummary(os.Stdout, stats)

	if stats.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", stats.Failed)
	}
	return nil
}

// setupFileLog mirrors terminal output to a log file. Failure to set
// up the file is reported but never fatal.
func setupFileLog(log *logger.Logger, cfg config.Config) {
	path := cfg.LogFile
	if path == "" {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
			return
		}
		path = filepath.Join(logDir, fmt.Sprintf("flacify_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	}
	if err := log.SetFileLog(path); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
		return
	}
	log.Debug("Logging to file: %s", path)
}
