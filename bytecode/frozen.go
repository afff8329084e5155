package bytecode

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/shamaton/msgpack/v2"
)

// FrozenEntry is one precompiled module embedded in the host binary:
// serialized code bytes plus a flag marking package (directory-style)
// modules. Entries are consumed at interpreter startup to seed the module
// import path without touching the filesystem.
type FrozenEntry struct {
	Code      []byte `msgpack:"code"`
	IsPackage bool   `msgpack:"is_package"`
}

// FrozenMap maps module names to frozen entries.
type FrozenMap map[string]FrozenEntry

var frozenMagic = []byte("SNFZ")

type frozenState struct {
	Names   []string      `msgpack:"names"`
	Entries []FrozenEntry `msgpack:"entries"`
}

// MarshalFrozen serializes a frozen-module map into a bundle suitable for
// embedding. Entries are sorted by name so output is deterministic.
func MarshalFrozen(modules FrozenMap) ([]byte, error) {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	state := frozenState{
		Names:   names,
		Entries: make([]FrozenEntry, len(names)),
	}
	for i, name := range names {
		state.Entries[i] = modules[name]
	}
	payload, err := msgpack.Marshal(state)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(frozenMagic)
	buf.WriteByte(WireVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// UnmarshalFrozen parses a frozen-module bundle.
func UnmarshalFrozen(data []byte) (FrozenMap, error) {
	if len(data) < len(frozenMagic)+1 {
		return nil, fmt.Errorf("frozen bundle too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(frozenMagic)], frozenMagic) {
		return nil, fmt.Errorf("bad frozen bundle magic token")
	}
	if version := data[len(frozenMagic)]; version != WireVersion {
		return nil, fmt.Errorf("unsupported frozen bundle version %d (want %d)", version, WireVersion)
	}
	var state frozenState
	if err := msgpack.Unmarshal(data[len(frozenMagic)+1:], &state); err != nil {
		return nil, err
	}
	if len(state.Names) != len(state.Entries) {
		return nil, fmt.Errorf("frozen bundle has %d names for %d entries",
			len(state.Names), len(state.Entries))
	}
	modules := make(FrozenMap, len(state.Names))
	for i, name := range state.Names {
		modules[name] = state.Entries[i]
	}
	return modules, nil
}

// FrozenRegistry holds frozen modules registered before interpreter startup.
// Registration is typically done from init functions or embedded bundles.
type FrozenRegistry struct {
	mu      sync.RWMutex
	modules FrozenMap
}

// NewFrozenRegistry creates an empty registry.
func NewFrozenRegistry() *FrozenRegistry {
	return &FrozenRegistry{modules: FrozenMap{}}
}

// Register adds or replaces a frozen module.
func (r *FrozenRegistry) Register(name string, entry FrozenEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = entry
}

// RegisterBundle adds every module from a serialized bundle.
func (r *FrozenRegistry) RegisterBundle(data []byte) error {
	modules, err := UnmarshalFrozen(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, entry := range modules {
		r.modules[name] = entry
	}
	return nil
}

// Lookup returns the frozen entry for a module name.
func (r *FrozenRegistry) Lookup(name string) (FrozenEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.modules[name]
	return entry, ok
}

// Names returns the sorted names of all registered modules.
func (r *FrozenRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
