package vm

import (
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/object"
)

const (
	// DefaultRecursionLimit bounds interpreter call depth.
	DefaultRecursionLimit = 1000

	// DefaultCheckInterval is the instruction count between halt and
	// context cancellation checks.
	DefaultCheckInterval = 1024
)

// Option configures a VM.
type Option func(*VM)

// WithLogger sets the VM's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *VM) {
		m.logger = logger
	}
}

// WithBuiltins provides the builtin namespace consulted after globals.
// The VM takes a strong reference to each value.
func WithBuiltins(builtins map[string]*object.Object) Option {
	return func(m *VM) {
		for name, value := range builtins {
			m.builtins[name] = value.Incref()
		}
	}
}

// WithFrozenModules supplies a registry of precompiled modules available
// for import.
func WithFrozenModules(frozen *bytecode.FrozenRegistry) Option {
	return func(m *VM) {
		m.frozen = frozen
	}
}

// WithRecursionLimit overrides the maximum call depth.
func WithRecursionLimit(limit int) Option {
	return func(m *VM) {
		if limit > 0 {
			m.recursionLimit = limit
		}
	}
}

// WithCheckInterval overrides how often the interpreter polls for halt and
// context cancellation.
func WithCheckInterval(n int) Option {
	return func(m *VM) {
		if n > 0 {
			m.checkInterval = n
		}
	}
}
