package object

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/deepnoodle-ai/serpent/internal/arena"
)

// Collector finds and frees reference cycles that refcounting alone cannot
// reclaim. Container objects are tracked in a generational arena at
// construction and untracked when they die normally.
//
// Collection uses trial deletion: copy every tracked object's refcount,
// subtract the references held by other tracked objects, and anything still
// above zero is externally reachable. Everything reachable from those roots
// is marked black; the remaining white objects form dead cycles and are
// finalized.
//
// Color and the trial-deletion scratch count are guarded by each object's
// gcMu. Payload traversal still requires the object graph to be quiescent:
// callers pause the interpreter threads (vm.VM.CollectGarbage does this)
// before invoking Collect directly.
type Collector struct {
	registry *Registry
	mu       sync.Mutex
	tracked  *arena.Arena[*Object]
}

func newCollector(r *Registry) *Collector {
	return &Collector{
		registry: r,
		tracked:  arena.New[*Object](),
	}
}

// track registers a container object. Tracked objects sit in the root
// buffer colored purple until a collection pass recolors them.
func (c *Collector) track(o *Object) {
	c.mu.Lock()
	o.tracker = c
	o.gcHandle = c.tracked.Insert(o)
	c.mu.Unlock()
	o.setColor(ColorPurple)
}

// untrack removes an object from the root set, called when it dies through
// ordinary refcounting.
func (c *Collector) untrack(o *Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.untrackLocked(o)
}

func (c *Collector) untrackLocked(o *Object) {
	if o.gcHandle.IsZero() {
		return
	}
	if _, err := c.tracked.Remove(o.gcHandle); err != nil {
		c.registry.logger.Error().Err(err).
			Str("type", o.TypeName()).
			Msg("collector root set out of sync")
	}
	o.gcHandle = arena.Handle{}
	o.tracker = nil
}

// TrackedCount returns the number of objects in the root set.
func (c *Collector) TrackedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracked.Len()
}

// traversePayload visits an object's strong references.
func traversePayload(o *Object, visit func(*Object)) {
	if t, ok := o.payload.(Traverser); ok {
		t.Traverse(visit)
	}
	if d, ok := o.InstanceDict(); ok {
		d.Traverse(visit)
	}
}

// setColor transitions the object's mark state under its header lock.
func (o *Object) setColor(c Color) {
	o.gcMu.Lock()
	o.color = c
	o.gcMu.Unlock()
}

// getColor reads the object's mark state under its header lock.
func (o *Object) getColor() Color {
	o.gcMu.Lock()
	c := o.color
	o.gcMu.Unlock()
	return c
}

// Collect runs one collection pass. It returns the number of objects freed
// and any finalizer errors, aggregated.
func (c *Collector) Collect() (int, error) {
	c.mu.Lock()

	var objs []*Object
	c.tracked.Range(func(_ arena.Handle, o *Object) bool {
		objs = append(objs, o)
		return true
	})
	if len(objs) == 0 {
		c.mu.Unlock()
		return 0, nil
	}

	// Pull the candidates out of the purple root buffer: copy refcounts
	// and mark every one gray.
	for _, o := range objs {
		o.gcMu.Lock()
		o.gcRefs = o.RefCount()
		o.color = ColorGray
		o.gcMu.Unlock()
	}

	// Subtract references held between tracked objects. What remains in
	// gcRefs is the external count.
	for _, o := range objs {
		traversePayload(o, func(child *Object) {
			if child.tracker != c {
				return
			}
			child.gcMu.Lock()
			if child.color == ColorGray {
				child.gcRefs--
			}
			child.gcMu.Unlock()
		})
	}

	// Mark everything reachable from an externally referenced object.
	var stack []*Object
	for _, o := range objs {
		o.gcMu.Lock()
		if o.color == ColorGray && o.gcRefs > 0 {
			stack = append(stack, o)
		}
		o.gcMu.Unlock()
	}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		o.gcMu.Lock()
		if o.color == ColorBlack {
			o.gcMu.Unlock()
			continue
		}
		o.color = ColorBlack
		o.gcMu.Unlock()
		traversePayload(o, func(child *Object) {
			if child.tracker == c && child.getColor() == ColorGray {
				stack = append(stack, child)
			}
		})
	}

	// The gray remainder is garbage. Survivors return to the purple root
	// buffer for the next pass.
	var white []*Object
	for _, o := range objs {
		o.gcMu.Lock()
		switch o.color {
		case ColorGray:
			o.color = ColorWhite
			white = append(white, o)
		case ColorBlack:
			o.color = ColorPurple
		}
		o.gcMu.Unlock()
	}
	if len(white) == 0 {
		c.mu.Unlock()
		return 0, nil
	}

	c.registry.logger.Debug().Int("count", len(white)).Msg("collecting cycle garbage")

	// Keep the dead cells alive while their payloads are torn down.
	for _, o := range white {
		o.Incref()
	}

	// Claim finalization before breaking any references, so cascading
	// decrefs inside the cycle cannot re-finalize a member.
	var claimed []*Object
	for _, o := range white {
		if o.finalizing.CompareAndSwap(false, true) {
			claimed = append(claimed, o)
		}
	}

	// Untrack the condemned set and mark weak references dead while the
	// lock is still held, then finalize outside it: finalizers cascade
	// into Decref, which may untrack surviving objects.
	for _, o := range white {
		if ws := o.weak.Load(); ws != nil {
			ws.mu.Lock()
			ws.dead = true
			ws.mu.Unlock()
		}
		c.untrackLocked(o)
	}
	c.mu.Unlock()

	var errs error
	for _, o := range claimed {
		if o.typ != nil {
			if fn := o.typ.finalizeSlot(); fn != nil {
				if err := fn(o); err != nil {
					errs = multierror.Append(errs, err)
				}
			}
		}
		if f, ok := o.payload.(Finalizer); ok {
			if err := f.Finalize(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if d, ok := o.InstanceDict(); ok {
			d.Clear()
		}
	}

	// Drop the guard references. The finalizing flag is already set, so
	// reaching zero here does not re-enter finalization.
	for _, o := range white {
		o.Decref()
	}
	return len(white), errs
}
