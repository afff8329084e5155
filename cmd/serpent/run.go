package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/serpent/builtins"
	"github.com/deepnoodle-ai/serpent/bytecode"
	mathmod "github.com/deepnoodle-ai/serpent/modules/math"
	stringsmod "github.com/deepnoodle-ai/serpent/modules/strings"
	"github.com/deepnoodle-ai/serpent/object"
	"github.com/deepnoodle-ai/serpent/vm"
)

var frozenPath string

var runCmd = &cobra.Command{
	Use:   "run CODEFILE",
	Short: "Execute a compiled code file",
	Args:  cobra.ExactArgs(1),
	Run:   runCommand,
}

func init() {
	runCmd.Flags().StringVar(&frozenPath, "frozen", "", "Path to a frozen-module bundle to make importable")
}

func runCommand(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't read code file")
	}
	code, err := bytecode.Unmarshal(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't decode code file")
	}
	if err := bytecode.Verify(code); err != nil {
		log.Fatal().Err(err).Msg("Code file failed verification")
	}

	registry := object.NewRegistry(object.WithLogger(log.Logger))
	opts := []vm.Option{vm.WithLogger(log.Logger)}
	if config.RecursionLimit > 0 {
		opts = append(opts, vm.WithRecursionLimit(config.RecursionLimit))
	}
	if config.CheckInterval > 0 {
		opts = append(opts, vm.WithCheckInterval(config.CheckInterval))
	}
	if frozenPath != "" {
		bundle, err := os.ReadFile(frozenPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Couldn't read frozen bundle")
		}
		frozen := bytecode.NewFrozenRegistry()
		if err := frozen.RegisterBundle(bundle); err != nil {
			log.Fatal().Err(err).Msg("Couldn't decode frozen bundle")
		}
		opts = append(opts, vm.WithFrozenModules(frozen))
	}

	ns := builtins.Builtins(registry)
	defer builtins.Release(ns)
	opts = append(opts, vm.WithBuiltins(ns))

	machine, err := vm.New(registry, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't create interpreter")
	}
	defer machine.Close()
	installNativeModules(registry, machine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	module, err := machine.Run(ctx, code)
	if err != nil {
		if raised, ok := object.AsRaised(err); ok {
			printException(raised)
			raised.Release()
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Execution failed")
	}
	module.Decref()
}

func installNativeModules(registry *object.Registry, machine *vm.VM) {
	for name, build := range map[string]func(*object.Registry) (*object.Object, error){
		"math":    mathmod.Module,
		"strings": stringsmod.Module,
	} {
		module, err := build(registry)
		if err != nil {
			log.Fatal().Err(err).Str("module", name).Msg("Couldn't build native module")
		}
		machine.InstallModule(name, module)
		module.Decref()
	}
}
