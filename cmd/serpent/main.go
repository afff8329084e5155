package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string
	config     Config
)

// Config holds interpreter settings loadable from a TOML file. Flags
// override file values.
type Config struct {
	RecursionLimit int    `toml:"recursion_limit"`
	CheckInterval  int    `toml:"check_interval"`
	LogLevel       string `toml:"log_level"`
}

var rootCmd = &cobra.Command{
	Use:   "serpent",
	Short: "Serpent bytecode interpreter",
	Long:  "Serpent executes, disassembles, and freezes compiled Serpent bytecode.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

		if configPath != "" {
			if _, err := toml.DecodeFile(configPath, &config); err != nil {
				log.Fatal().Err(err).Str("path", configPath).Msg("Couldn't load config file")
			}
		}
		if !cmd.Flags().Changed("log-level") && config.LogLevel != "" {
			logLevel = config.LogLevel
		}
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'\n", logLevel)
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(disCmd)
	rootCmd.AddCommand(freezeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
