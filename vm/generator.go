package vm

import (
	"context"
	"sync"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

// Generator is the payload of a generator object: a suspended frame plus
// the VM that resumes it. The mutex serializes resumption; a generator
// resumed while running raises instead of re-entering its frame.
type Generator struct {
	mu      sync.Mutex
	vm      *VM
	name    string
	frame   *Frame
	running bool
	done    bool
}

func (g *Generator) PayloadKind() string { return "generator" }

// Name returns the name of the generator's code unit.
func (g *Generator) Name() string { return g.name }

// Done reports whether the generator has finished.
func (g *Generator) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// Traverse visits the references held by the parked frame.
func (g *Generator) Traverse(visit func(*object.Object)) {
	f := g.frame
	if f == nil {
		return
	}
	if f.fn != nil {
		visit(f.fn)
	}
	if f.globals != nil {
		visit(f.globals)
	}
	for _, o := range f.stack {
		if o != nil {
			visit(o)
		}
	}
	for _, o := range f.locals {
		if o != nil {
			visit(o)
		}
	}
	for _, o := range f.cells {
		if o != nil {
			visit(o)
		}
	}
	if f.pendingExc != nil {
		visit(f.pendingExc)
	}
}

// Finalize releases the parked frame.
func (g *Generator) Finalize() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done = true
	if g.frame != nil {
		g.frame.release()
		g.frame = nil
	}
	return nil
}

// newGenerator wraps a bound, not-yet-run frame in a generator object,
// taking ownership of the frame.
func (m *VM) newGenerator(f *Frame) *object.Object {
	g := &Generator{vm: m, name: f.code.Name(), frame: f}
	o := object.New(g, m.genType)
	m.registry.Track(o)
	return o
}

// resumeGenerator advances the generator one step. It returns the yielded
// value and true, or false when the generator is exhausted. The return
// value of a finished generator body is discarded.
func (m *VM) resumeGenerator(ctx context.Context, ts *ThreadState, g *Generator) (*object.Object, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done || g.frame == nil {
		return nil, false, nil
	}
	if g.running {
		return nil, false, m.registry.Raise(errz.ErrValue, "generator already executing")
	}
	if g.frame.state == FrameSuspended {
		// The paused yield expression evaluates to None.
		g.frame.push(m.registry.None().Incref())
	}
	g.running = true
	result, yielded, err := m.evalFrame(ctx, ts, g.frame)
	g.running = false
	if err != nil {
		g.done = true
		g.frame.release()
		g.frame = nil
		return nil, false, err
	}
	if yielded {
		return result, true, nil
	}
	g.done = true
	g.frame.release()
	g.frame = nil
	if result != nil {
		result.Decref()
	}
	return nil, false, nil
}

// registerGeneratorSlots wires the iterator protocol onto the generator
// type. The next slot resumes on a fresh thread state when the caller
// reaches it outside an interpreter thread.
func (m *VM) registerGeneratorSlots() {
	s := m.genType.Slots()
	s.Iter = func(r *object.Registry, o *object.Object) (*object.Object, error) {
		return o.Incref(), nil
	}
	s.Next = func(r *object.Registry, o *object.Object) (*object.Object, bool, error) {
		g, ok := object.PayloadOf[*Generator](o)
		if !ok {
			return nil, false, r.Raise(errz.ErrType, "expected a generator, got %s", o.TypeName())
		}
		ts := m.threads.Register()
		defer m.threads.Unregister(ts)
		return m.resumeGenerator(withThread(context.Background(), ts), ts, g)
	}
	s.Repr = func(r *object.Registry, o *object.Object) (string, error) {
		g, _ := object.PayloadOf[*Generator](o)
		return "<generator " + g.Name() + ">", nil
	}
}
