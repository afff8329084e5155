package object

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/serpent/internal/arena"
)

// Payload is the type-erased value stored in an Object cell. Concrete
// payloads are defined per builtin type (*Int, *Str, *List, *Type, ...) and
// by embedders that add native types.
type Payload interface {
	// PayloadKind returns a short name for the payload kind, used in
	// diagnostics and downcast failure messages.
	PayloadKind() string
}

// Traverser is implemented by container payloads so the cycle collector can
// visit their strong references.
type Traverser interface {
	Traverse(visit func(*Object))
}

// Finalizer is implemented by payloads that need cleanup when their object's
// last strong reference is dropped.
type Finalizer interface {
	Finalize() error
}

// Object is a reference-counted heap cell: an atomic strong count, a type
// pointer assigned once at construction, an optional instance dict, a lazily
// allocated weak-reference side state, and the payload.
type Object struct {
	refs int64 // atomic strong count

	// typ is assigned exactly once. Only the registry bootstrap patches it
	// after construction, before the object escapes.
	typ *Type

	// dict is the optional instance dict (a *Dict payload), created on
	// first attribute store.
	dict atomic.Pointer[Dict]

	payload Payload

	// weak is the side state observed by weak references.
	weak atomic.Pointer[weakState]

	// finalizing guards user-level finalization: checked-and-set with a
	// compare-exchange so a finalizer never runs twice, even when it
	// re-enters the interpreter.
	finalizing atomic.Bool

	// Cycle collector state, protected by gcMu.
	gcMu   sync.Mutex
	color  Color
	gcRefs int64 // scratch count used during trial deletion

	// tracker links container objects into a collector's root set.
	tracker  *Collector
	gcHandle arena.Handle
}

// New allocates an object with a strong count of one.
// The type pointer is never nil except transiently inside the registry
// bootstrap.
func New(payload Payload, typ *Type) *Object {
	return &Object{refs: 1, typ: typ, payload: payload}
}

// TypeOf returns the object's type.
func (o *Object) TypeOf() *Type {
	return o.typ
}

// TypeName returns the name of the object's type.
func (o *Object) TypeName() string {
	if o.typ == nil {
		return "<unset>"
	}
	return o.typ.Name()
}

// Payload returns the object's payload.
func (o *Object) Payload() Payload {
	return o.payload
}

// Incref increments the strong reference count and returns the same object,
// so call sites can treat it as a handle clone.
func (o *Object) Incref() *Object {
	atomic.AddInt64(&o.refs, 1)
	return o
}

// Decref decrements the strong reference count. When the count reaches zero
// the payload is finalized and any weak references observe the death.
func (o *Object) Decref() {
	if n := atomic.AddInt64(&o.refs, -1); n == 0 {
		o.die()
	} else if n < 0 {
		panic(fmt.Sprintf("refcount underflow on %s object", o.TypeName()))
	}
}

// RefCount returns the current strong reference count.
func (o *Object) RefCount() int64 {
	return atomic.LoadInt64(&o.refs)
}

// die runs finalization after the last strong reference is dropped. A
// finalizer may resurrect the object by taking a new strong reference; the
// object then stays alive and its finalizer never runs again, but a later
// death still tears down the weak state and the collector registration.
func (o *Object) die() {
	if o.finalizing.CompareAndSwap(false, true) {
		if o.typ != nil {
			if fn := o.typ.finalizeSlot(); fn != nil {
				fn(o)
			}
		}
		if f, ok := o.payload.(Finalizer); ok {
			_ = f.Finalize()
		}
	}
	if atomic.LoadInt64(&o.refs) > 0 {
		// Resurrected by a finalizer; the teardown below runs on the
		// next zero crossing instead.
		return
	}
	if ws := o.weak.Load(); ws != nil {
		ws.mu.Lock()
		ws.dead = true
		ws.mu.Unlock()
	}
	if o.tracker != nil {
		o.tracker.untrack(o)
	}
}

// IsFinalizing reports whether finalization has started for this object.
func (o *Object) IsFinalizing() bool {
	return o.finalizing.Load()
}

// ensureDict returns the instance dict, creating it on first use.
func (o *Object) ensureDict() *Dict {
	if d := o.dict.Load(); d != nil {
		return d
	}
	d := &Dict{}
	if o.dict.CompareAndSwap(nil, d) {
		return d
	}
	return o.dict.Load()
}

// InstanceDict returns the instance dict if one has been created.
func (o *Object) InstanceDict() (*Dict, bool) {
	d := o.dict.Load()
	return d, d != nil
}

// Is reports identity (same heap cell).
func (o *Object) Is(other *Object) bool {
	return o == other
}

// weakState is the control block shared by all weak references to one
// object. It outlives the referent: after death it only reports "gone".
type weakState struct {
	mu   sync.Mutex
	dead bool
}

// Weak observes an object without extending its lifetime.
type Weak struct {
	state  *weakState
	target *Object
}

// NewWeak creates a weak reference to the object.
func NewWeak(o *Object) *Weak {
	ws := o.weak.Load()
	for ws == nil {
		candidate := &weakState{}
		if o.weak.CompareAndSwap(nil, candidate) {
			ws = candidate
		} else {
			ws = o.weak.Load()
		}
	}
	return &Weak{state: ws, target: o}
}

// Upgrade attempts to take a new strong reference to the referent. It
// returns (nil, false) once the strong count has reached zero; it never
// returns a dangling handle. The increment only succeeds from a nonzero
// count, so an object partway through dying cannot be revived through a
// weak reference.
func (w *Weak) Upgrade() (*Object, bool) {
	w.state.mu.Lock()
	defer w.state.mu.Unlock()
	if w.state.dead {
		return nil, false
	}
	for {
		n := atomic.LoadInt64(&w.target.refs)
		if n <= 0 {
			return nil, false
		}
		if atomic.CompareAndSwapInt64(&w.target.refs, n, n+1) {
			return w.target, true
		}
	}
}

// IsDead reports whether the referent has been finalized.
func (w *Weak) IsDead() bool {
	w.state.mu.Lock()
	defer w.state.mu.Unlock()
	return w.state.dead
}
