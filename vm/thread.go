package vm

import (
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/serpent/internal/arena"
)

// ThreadState is the per-thread view of the interpreter: an identifier, an
// atomically published top frame for the signal-handler boundary, and a
// locked activation list another thread can walk once the owner is parked
// or idle.
type ThreadState struct {
	id       uint64
	topFrame atomic.Pointer[Frame]

	// mu guards the activation list. The owning thread takes it briefly
	// on every frame entry and exit; walkers hold it for the whole walk.
	// A pointer so AfterFork can swap in a fresh lock.
	mu     *sync.Mutex
	frames *arena.Arena[*Frame]
	active []arena.Handle // activation order, innermost last

	// Pause coordination. pauseHint mirrors wantPause so the eval loop
	// can check it without taking pauseMu.
	pauseHint atomic.Bool
	pauseMu   *sync.Mutex
	pauseCond *sync.Cond
	wantPause bool
	parked    bool
	busy      int // nested frame evaluations on the owning goroutine
}

func newThreadState(id uint64) *ThreadState {
	t := &ThreadState{
		id:      id,
		mu:      &sync.Mutex{},
		frames:  arena.New[*Frame](),
		pauseMu: &sync.Mutex{},
	}
	t.pauseCond = sync.NewCond(t.pauseMu)
	return t
}

// ID returns the thread's identifier, unique within its registry.
func (t *ThreadState) ID() uint64 { return t.id }

// TopFrame returns the most recently published frame, or nil when the
// thread is idle. Safe to call from any goroutine.
func (t *ThreadState) TopFrame() *Frame {
	return t.topFrame.Load()
}

// setTopFrame publishes the current frame.
func (t *ThreadState) setTopFrame(f *Frame) {
	t.topFrame.Store(f)
}

// pushFrame adds an activation record and returns its handle.
func (t *ThreadState) pushFrame(f *Frame) arena.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.frames.Insert(f)
	t.active = append(t.active, h)
	return h
}

// popFrame removes an activation record. Frames leave in reverse entry
// order, so the handle is almost always the list tail.
func (t *ThreadState) popFrame(h arena.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.frames.Remove(h); err != nil {
		return
	}
	for i := len(t.active) - 1; i >= 0; i-- {
		if t.active[i] == h {
			t.active = append(t.active[:i], t.active[i+1:]...)
			return
		}
	}
}

// FrameCount returns the thread's current activation depth.
func (t *ThreadState) FrameCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames.Len()
}

// WalkFrames visits the thread's activation records, innermost first,
// holding the activation-list lock for the duration. The frames' contents
// are only consistent when the owning thread is parked or idle; pair with
// Pause when walking a running thread.
func (t *ThreadState) WalkFrames(visit func(*Frame) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.active) - 1; i >= 0; i-- {
		f, ok := t.frames.Get(t.active[i])
		if !ok {
			continue
		}
		if !visit(f) {
			return
		}
	}
}

// Pause blocks the thread at its next safepoint and returns once it has
// parked there, or immediately if it is idle. The returned function
// resumes it. Must be called from a goroutine other than the one running
// the thread.
func (t *ThreadState) Pause() (resume func()) {
	t.pauseMu.Lock()
	t.wantPause = true
	t.pauseHint.Store(true)
	for t.busy > 0 && !t.parked {
		t.pauseCond.Wait()
	}
	t.pauseMu.Unlock()
	return func() {
		t.pauseMu.Lock()
		t.wantPause = false
		t.pauseHint.Store(false)
		t.pauseCond.Broadcast()
		t.pauseMu.Unlock()
	}
}

// safepoint parks the thread while a pause is requested. The eval loop
// calls it on the same cadence as the halt and context checks.
func (t *ThreadState) safepoint() {
	if !t.pauseHint.Load() {
		return
	}
	t.pauseMu.Lock()
	if t.wantPause {
		t.parkLocked()
	}
	t.pauseMu.Unlock()
}

// parkLocked publishes the parked state, waits out the pause, and clears
// it. Caller holds pauseMu.
func (t *ThreadState) parkLocked() {
	t.parked = true
	t.pauseCond.Broadcast()
	for t.wantPause {
		t.pauseCond.Wait()
	}
	t.parked = false
}

// enterEval marks the thread busy for one nested frame evaluation,
// parking first if a pause is pending.
func (t *ThreadState) enterEval() {
	t.pauseMu.Lock()
	for t.wantPause {
		t.parkLocked()
	}
	t.busy++
	t.pauseMu.Unlock()
}

// exitEval unwinds one nested evaluation; pausers waiting on an idle
// thread are released when the last one exits.
func (t *ThreadState) exitEval() {
	t.pauseMu.Lock()
	t.busy--
	if t.busy == 0 {
		t.pauseCond.Broadcast()
	}
	t.pauseMu.Unlock()
}

// resetLocks replaces every lock the thread owns with a fresh one. Only
// meaningful in a forked child, where the previous holders no longer
// exist.
func (t *ThreadState) resetLocks() {
	t.mu = &sync.Mutex{}
	t.pauseMu = &sync.Mutex{}
	t.pauseCond = sync.NewCond(t.pauseMu)
	t.pauseHint.Store(false)
	t.wantPause = false
	t.parked = false
	t.busy = 0
}

// ThreadRegistry tracks the live interpreter threads.
type ThreadRegistry struct {
	// mu is a pointer so AfterFork can replace a lock held by a thread
	// that did not survive the fork.
	mu      *sync.Mutex
	nextID  atomic.Uint64
	threads map[uint64]*ThreadState
}

// NewThreadRegistry creates an empty registry.
func NewThreadRegistry() *ThreadRegistry {
	return &ThreadRegistry{
		mu:      &sync.Mutex{},
		threads: make(map[uint64]*ThreadState),
	}
}

// Register adds a new thread and returns its state.
func (r *ThreadRegistry) Register() *ThreadState {
	t := newThreadState(r.nextID.Add(1))
	r.mu.Lock()
	r.threads[t.id] = t
	r.mu.Unlock()
	return t
}

// Unregister removes a thread when it finishes.
func (r *ThreadRegistry) Unregister(t *ThreadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, t.id)
}

// Count returns the number of registered threads.
func (r *ThreadRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// Snapshot returns the registered threads at this instant.
func (r *ThreadRegistry) Snapshot() []*ThreadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ThreadState, 0, len(r.threads))
	for _, t := range r.threads {
		out = append(out, t)
	}
	return out
}

// PauseAll parks every registered thread except the caller's own. The
// returned function resumes them all.
func (r *ThreadRegistry) PauseAll(self *ThreadState) (resume func()) {
	var resumes []func()
	for _, t := range r.Snapshot() {
		if t == self {
			continue
		}
		resumes = append(resumes, t.Pause())
	}
	return func() {
		for _, fn := range resumes {
			fn()
		}
	}
}

// AfterFork resets the registry to contain only the surviving thread. The
// child process is single-threaded, so the previous registry lock may be
// held by a thread that no longer exists; it is replaced, never acquired.
// The survivor's own locks are replaced the same way.
func (r *ThreadRegistry) AfterFork(survivor *ThreadState) {
	r.mu = &sync.Mutex{}
	r.threads = make(map[uint64]*ThreadState)
	if survivor != nil {
		survivor.resetLocks()
		r.threads[survivor.id] = survivor
	}
}
