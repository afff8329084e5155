package main

import (
	"path/filepath"
	"strings"

	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/serpent/bytecode"
)

var freezeOutput string

var freezeCmd = &cobra.Command{
	Use:   "freeze CODEFILE...",
	Short: "Bundle compiled code files into a frozen-module archive",
	Long: "Each code file becomes a frozen module named after its base filename.\n" +
		"Use NAME=PATH to pick the module name explicitly.",
	Args: cobra.MinimumNArgs(1),
	Run:  freezeCommand,
}

func init() {
	freezeCmd.Flags().StringVarP(&freezeOutput, "output", "o", "frozen.bin", "Output bundle path")
}

func freezeCommand(cmd *cobra.Command, args []string) {
	modules := make(bytecode.FrozenMap, len(args))
	for _, arg := range args {
		name, path, found := strings.Cut(arg, "=")
		if !found {
			path = arg
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Couldn't read code file")
		}
		// Round-trip to validate before freezing.
		code, err := bytecode.Unmarshal(data)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Couldn't decode code file")
		}
		if err := bytecode.Verify(code); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Code file failed verification")
		}
		modules[name] = bytecode.FrozenEntry{Code: data}
	}

	bundle, err := bytecode.MarshalFrozen(modules)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't marshal frozen bundle")
	}
	if err := os.WriteFile(freezeOutput, bundle, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Couldn't write bundle")
	}
	log.Info().Int("modules", len(modules)).Str("output", freezeOutput).Msg("Wrote frozen bundle")
}
