package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/dis"
)

var disNested bool

var disCmd = &cobra.Command{
	Use:   "dis CODEFILE",
	Short: "Disassemble a compiled code file",
	Args:  cobra.ExactArgs(1),
	Run:   disCommand,
}

func init() {
	disCmd.Flags().BoolVar(&disNested, "nested", false, "Also disassemble nested code units")
}

func disCommand(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't read code file")
	}
	code, err := bytecode.Unmarshal(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't decode code file")
	}

	units := []*bytecode.Code{code}
	if disNested {
		units = code.Flatten()
	}
	for i, unit := range units {
		if i > 0 {
			fmt.Println()
		}
		if err := dis.Fprint(os.Stdout, unit); err != nil {
			log.Fatal().Err(err).Str("unit", unit.Name()).Msg("Disassembly failed")
		}
	}
}
