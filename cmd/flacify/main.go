package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flacify/internal/config"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "flacify",
		Short:         "Convert WAV libraries to tagged FLAC",
		Long:          "flacify converts a WAV directory tree to FLAC, resolving metadata\nfrom existing tags, the directory layout, MusicBrainz, AcoustID and Last.fm.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable detailed logging")

	root.AddCommand(newConvertCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newInitConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the priority order: CLI flags > config file > defaults
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfigFile(flagConfig)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetDefaultConfigPath()

			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Config file already exists at: %s\n", path)
				fmt.Println("Delete it first if you want to recreate it.")
				return nil
			}

			if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}

			fmt.Printf("Created default config file at: %s\n", path)
			fmt.Println("\nYou can now edit this file to customize your settings.")
			fmt.Println("Available options:")
			fmt.Println("  output_dir: where converted files go")
			fmt.Println("  compatibility_mode: true/false (16-bit FLAC for older players)")
			fmt.Println("  metadata: true/false (resolve and write tags)")
			fmt.Println("  fingerprinting: true/false (AcoustID lookups, needs fpcalc)")
			fmt.Println("  acoustid_api_key / lastfm_api_key: online lookup credentials")
			return nil
		},
	}
}
