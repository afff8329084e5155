package vm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/object"
	"github.com/deepnoodle-ai/serpent/op"
)

func TestRegisterUnregister(t *testing.T) {
	reg := NewThreadRegistry()
	a := reg.Register()
	b := reg.Register()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, reg.Count())

	reg.Unregister(a)
	assert.Equal(t, 1, reg.Count())
	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, b.ID(), snapshot[0].ID())
}

func TestConcurrentRegistration(t *testing.T) {
	reg := NewThreadRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := reg.Register()
			reg.Unregister(ts)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Count())
}

func TestAfterForkKeepsOnlySurvivor(t *testing.T) {
	reg := NewThreadRegistry()
	survivor := reg.Register()
	reg.Register()
	reg.Register()
	require.Equal(t, 3, reg.Count())

	reg.AfterFork(survivor)
	require.Equal(t, 1, reg.Count())
	snapshot := reg.Snapshot()
	assert.Equal(t, survivor.ID(), snapshot[0].ID())

	// A nil survivor empties the registry.
	reg.AfterFork(nil)
	assert.Equal(t, 0, reg.Count())
}

func TestAfterForkReplacesHeldRegistryLock(t *testing.T) {
	reg := NewThreadRegistry()
	survivor := reg.Register()

	// Simulate a lock held at fork time by a thread that did not survive.
	reg.mu.Lock()
	reg.AfterFork(survivor)

	require.Equal(t, 1, reg.Count())
	reg.Register()
	assert.Equal(t, 2, reg.Count())
}

func TestAfterForkReplacesHeldThreadLocks(t *testing.T) {
	reg := NewThreadRegistry()
	survivor := reg.Register()
	survivor.mu.Lock()
	survivor.pauseMu.Lock()
	survivor.wantPause = true
	survivor.pauseHint.Store(true)

	reg.AfterFork(survivor)

	assert.Equal(t, 0, survivor.FrameCount())
	assert.False(t, survivor.pauseHint.Load())
	survivor.safepoint() // must not block
}

func TestFrameListOrder(t *testing.T) {
	r := object.NewRegistry()
	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "outer"})
	b.Emit(op.Nop)
	outerCode, err := b.Assemble()
	require.NoError(t, err)
	b = bytecode.NewBuilder(bytecode.BuilderParams{Name: "inner"})
	b.Emit(op.Nop)
	innerCode, err := b.Assemble()
	require.NoError(t, err)

	ts := newThreadState(1)
	outer := newFrame(r, outerCode, nil, nil, nil)
	inner := newFrame(r, innerCode, nil, nil, outer)
	defer outer.release()
	defer inner.release()

	hOuter := ts.pushFrame(outer)
	hInner := ts.pushFrame(inner)
	assert.Equal(t, 2, ts.FrameCount())

	var names []string
	ts.WalkFrames(func(f *Frame) bool {
		names = append(names, f.Code().Name())
		return true
	})
	assert.Equal(t, []string{"inner", "outer"}, names)

	ts.popFrame(hInner)
	assert.Equal(t, 1, ts.FrameCount())
	ts.popFrame(hOuter)
	assert.Equal(t, 0, ts.FrameCount())
}

func TestPauseAndWalkRunningThread(t *testing.T) {
	m := newTestVM(t, WithCheckInterval(8))

	// while True: pass
	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "__main__", Filename: "main.sp"})
	top := b.NewLabel()
	require.NoError(t, b.SetLabel(top))
	b.EmitJump(op.Jump, top)
	code, err := b.Assemble()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), code)
		done <- err
	}()

	var ts *ThreadState
	deadline := time.Now().Add(5 * time.Second)
	for ts == nil {
		require.True(t, time.Now().Before(deadline), "thread never started")
		for _, cand := range m.Threads().Snapshot() {
			if cand.TopFrame() != nil {
				ts = cand
			}
		}
		time.Sleep(time.Millisecond)
	}

	resume := ts.Pause()
	var names []string
	ts.WalkFrames(func(f *Frame) bool {
		names = append(names, f.Code().Name())
		return true
	})
	resume()

	require.Equal(t, []string{"__main__"}, names)

	m.Stop()
	require.ErrorIs(t, <-done, ErrHalted)
}

func TestTopFramePublishing(t *testing.T) {
	r := object.NewRegistry()
	ts := newThreadState(1)
	assert.Nil(t, ts.TopFrame())

	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "f"})
	b.Emit(op.Nop)
	code, err := b.Assemble()
	require.NoError(t, err)

	f := newFrame(r, code, nil, nil, nil)
	defer f.release()
	ts.setTopFrame(f)
	assert.Same(t, f, ts.TopFrame())
	ts.setTopFrame(nil)
	assert.Nil(t, ts.TopFrame())
}

func TestFrameReleaseClearsReferences(t *testing.T) {
	r := object.NewRegistry()
	b := bytecode.NewBuilder(bytecode.BuilderParams{Name: "f"})
	b.Emit(op.Nop)
	code, err := b.Assemble()
	require.NoError(t, err)

	value := r.NewIntFromInt64(1234567)
	f := newFrame(r, code, nil, nil, nil)
	f.push(value.Incref())
	f.push(value.Incref())
	before := value.RefCount()
	f.release()
	assert.Equal(t, before-2, value.RefCount())
	assert.Equal(t, FrameFinished, f.State())
	value.Decref()
}
