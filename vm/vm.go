// Package vm implements the Serpent bytecode interpreter: a frame-based
// evaluation loop over compiled code, with block-stack exception handling,
// generators, and frozen-module imports.
package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
	"github.com/deepnoodle-ai/serpent/op"
)

// ErrHalted is returned when execution stops because Halt was executed or
// Stop was called.
var ErrHalted = errors.New("vm: execution halted")

// VM executes compiled bytecode against an object registry. A VM may run
// code on multiple goroutines concurrently; each Run or call registers its
// own thread state.
type VM struct {
	registry *object.Registry
	logger   zerolog.Logger
	threads  *ThreadRegistry
	frozen   *bytecode.FrozenRegistry
	builtins map[string]*object.Object
	genType  *object.Type

	modulesMu sync.Mutex
	modules   map[string]*object.Object

	halted         atomic.Bool
	recursionLimit int
	checkInterval  int
}

// New creates a VM bound to a registry. The VM installs itself as the
// registry's invoker so that function objects called through the object
// layer run on the interpreter.
func New(registry *object.Registry, opts ...Option) (*VM, error) {
	m := &VM{
		registry:       registry,
		logger:         registry.Logger(),
		threads:        NewThreadRegistry(),
		builtins:       make(map[string]*object.Object),
		modules:        make(map[string]*object.Object),
		recursionLimit: DefaultRecursionLimit,
		checkInterval:  DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	genType, err := registry.NewType("generator")
	if err != nil {
		return nil, err
	}
	m.genType = genType
	m.registerGeneratorSlots()
	registry.SetInvoker(m.invoke)
	return m, nil
}

// Registry returns the VM's object registry.
func (m *VM) Registry() *object.Registry { return m.registry }

// Threads returns the VM's thread registry.
func (m *VM) Threads() *ThreadRegistry { return m.threads }

// Stop asks all running threads to halt at their next check point.
func (m *VM) Stop() {
	m.halted.Store(true)
}

// Halted reports whether the VM has been stopped.
func (m *VM) Halted() bool {
	return m.halted.Load()
}

// threadKey carries the current ThreadState through a context.
type threadKey struct{}

func withThread(ctx context.Context, ts *ThreadState) context.Context {
	return context.WithValue(ctx, threadKey{}, ts)
}

func threadFromContext(ctx context.Context) *ThreadState {
	ts, _ := ctx.Value(threadKey{}).(*ThreadState)
	return ts
}

// Run executes a compiled module body in a fresh "__main__" module and
// returns the module object with an owned reference. The module's
// namespace holds whatever the code defined.
func (m *VM) Run(ctx context.Context, code *bytecode.Code) (*object.Object, error) {
	module := m.registry.NewModule("__main__", code.Filename())
	if err := m.RunInModule(ctx, code, module); err != nil {
		module.Decref()
		return nil, err
	}
	return module, nil
}

// RunInModule executes code with the given module's namespace as globals.
func (m *VM) RunInModule(ctx context.Context, code *bytecode.Code, module *object.Object) error {
	ts := m.threads.Register()
	defer m.threads.Unregister(ts)
	ctx = withThread(ctx, ts)

	mod, ok := object.PayloadOf[*object.Module](module)
	if !ok {
		return m.registry.Raise(errz.ErrType, "expected a module, got %s", module.TypeName())
	}
	f := newFrame(m.registry, code, nil, mod.DictObj(), nil)
	result, _, err := m.evalFrame(ctx, ts, f)
	f.release()
	if err != nil {
		return err
	}
	if result != nil {
		result.Decref()
	}
	return nil
}

// invoke is installed as the registry's invoker: it runs a bytecode
// function object when it is called through the object layer.
func (m *VM) invoke(ctx context.Context, r *object.Registry, callee *object.Object, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	ts := threadFromContext(ctx)
	if ts == nil {
		ts = m.threads.Register()
		defer m.threads.Unregister(ts)
		ctx = withThread(ctx, ts)
	}
	fn, ok := object.PayloadOf[*object.Function](callee)
	if !ok {
		return nil, r.Raise(errz.ErrType, "'%s' object is not callable", callee.TypeName())
	}
	return m.callFunction(ctx, ts, fn, callee, args, kwargs, ts.TopFrame())
}

// callValue dispatches a call from the interpreter loop. Bytecode
// functions get a frame directly; everything else goes through the
// object-layer call protocol.
func (m *VM) callValue(ctx context.Context, ts *ThreadState, f *Frame, callee *object.Object, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if fn, ok := object.PayloadOf[*object.Function](callee); ok {
		return m.callFunction(ctx, ts, fn, callee, args, kwargs, f)
	}
	return m.registry.Call(ctx, callee, args, kwargs)
}

// callFunction binds arguments into a new frame and evaluates it. For
// generator functions the frame is parked inside a generator object
// instead of running.
func (m *VM) callFunction(ctx context.Context, ts *ThreadState, fn *object.Function, fnObj *object.Object, args []*object.Object, kwargs map[string]*object.Object, parent *Frame) (*object.Object, error) {
	code := fn.Code()
	child := newFrame(m.registry, code, fnObj, fn.Globals(), parent)
	if err := m.bindArguments(child, fn, args, kwargs); err != nil {
		child.release()
		return nil, err
	}
	m.initCells(child, fn)
	if code.IsGenerator() {
		return m.newGenerator(child), nil
	}
	result, _, err := m.evalFrame(ctx, ts, child)
	child.release()
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = m.registry.None().Incref()
	}
	return result, nil
}

// initCells allocates the frame's cell variables and appends the closure's
// free-variable cells. Cell variables that shadow a parameter are seeded
// with the bound argument.
func (m *VM) initCells(f *Frame, fn *object.Function) {
	code := f.code
	cellCount := code.CellCount()
	freeCount := code.FreeCount()
	if cellCount == 0 && freeCount == 0 {
		return
	}
	f.cells = make([]*object.Object, 0, cellCount+freeCount)
	for i := 0; i < cellCount; i++ {
		var seed *object.Object
		if idx, ok := localIndex(code, code.CellNameAt(i)); ok {
			seed = f.locals[idx]
		}
		f.cells = append(f.cells, m.registry.NewCell(seed))
	}
	for _, cell := range fn.Closure() {
		f.cells = append(f.cells, cell.Incref())
	}
}

func localIndex(code *bytecode.Code, name string) (int, bool) {
	for i := 0; i < code.LocalCount(); i++ {
		if code.LocalNameAt(i) == name {
			return i, true
		}
	}
	return 0, false
}

// evalFrame runs the frame until it returns, yields, or fails. The second
// result reports whether the frame yielded, in which case it stays
// resumable.
func (m *VM) evalFrame(ctx context.Context, ts *ThreadState, f *Frame) (*object.Object, bool, error) {
	if ts.FrameCount() >= m.recursionLimit {
		return nil, false, m.registry.Raise(errz.ErrRecursion, "maximum recursion depth exceeded")
	}
	ts.enterEval()
	handle := ts.pushFrame(f)
	prevTop := ts.TopFrame()
	ts.setTopFrame(f)
	defer func() {
		ts.setTopFrame(prevTop)
		ts.popFrame(handle)
		ts.exitEval()
	}()

	r := m.registry
	f.state = FrameRunning
	count := f.code.InstructionCount()
	budget := m.checkInterval

	for f.ip < count {
		budget--
		if budget <= 0 {
			budget = m.checkInterval
			ts.safepoint()
			if m.halted.Load() {
				return nil, false, ErrHalted
			}
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
		}

		opcode := f.code.InstructionAt(f.ip)
		f.ip++
		var err error

		switch opcode {
		case op.Nop:

		case op.ReturnValue:
			result := f.pop()
			f.state = FrameFinished
			return result, false, nil

		case op.YieldValue:
			if !f.code.IsGenerator() {
				err = r.Raise(errz.ErrRuntime, "yield outside of a generator")
				break
			}
			value := f.pop()
			f.state = FrameSuspended
			return value, true, nil

		case op.Halt:
			m.halted.Store(true)
			f.state = FrameFinished
			return r.None().Incref(), false, nil

		case op.Call:
			argc := int(f.code.InstructionAt(f.ip))
			f.ip++
			err = m.execCall(ctx, ts, f, argc)

		case op.CallKw:
			argc := int(f.code.InstructionAt(f.ip))
			f.ip++
			err = m.execCallKw(ctx, ts, f, argc)

		case op.CallEx:
			hasKwargs := f.code.InstructionAt(f.ip) == 1
			f.ip++
			err = m.execCallEx(ctx, ts, f, hasKwargs)

		case op.Jump:
			f.ip = int(f.code.InstructionAt(f.ip))

		case op.PopJumpIfTrue:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			value := f.pop()
			var truthy bool
			truthy, err = r.Truthy(value)
			value.Decref()
			if err == nil && truthy {
				f.ip = target
			}

		case op.PopJumpIfFalse:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			value := f.pop()
			var truthy bool
			truthy, err = r.Truthy(value)
			value.Decref()
			if err == nil && !truthy {
				f.ip = target
			}

		case op.JumpIfTrueOrPop:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			var truthy bool
			truthy, err = r.Truthy(f.top())
			if err != nil {
				break
			}
			if truthy {
				f.ip = target
			} else {
				f.pop().Decref()
			}

		case op.JumpIfFalseOrPop:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			var truthy bool
			truthy, err = r.Truthy(f.top())
			if err != nil {
				break
			}
			if !truthy {
				f.ip = target
			} else {
				f.pop().Decref()
			}

		case op.Continue:
			target := int(f.code.InstructionAt(f.ip))
			if b, ok := f.innermostLoop(); ok {
				f.truncateStack(b.level)
			}
			f.ip = target

		case op.Break:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			if err = f.popToLoop(); err == nil {
				f.ip = target
			} else {
				err = r.Raise(errz.ErrRuntime, "break outside of a loop")
			}

		case op.LoadConst:
			idx := int(f.code.InstructionAt(f.ip))
			f.ip++
			var value *object.Object
			value, err = r.FromConstant(f.code.ConstantAt(idx))
			if err == nil {
				f.push(value)
			}

		case op.LoadFast:
			idx := int(f.code.InstructionAt(f.ip))
			f.ip++
			local := f.locals[idx]
			if local == nil {
				err = r.Raise(errz.ErrName,
					"local variable '%s' referenced before assignment", f.code.LocalNameAt(idx))
				break
			}
			f.push(local.Incref())

		case op.LoadGlobal, op.LoadName:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			err = m.loadGlobal(f, name)

		case op.LoadDeref:
			idx := int(f.code.InstructionAt(f.ip))
			f.ip++
			err = m.loadDeref(f, idx)

		case op.LoadAttr:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			obj := f.pop()
			var value *object.Object
			value, err = r.GetAttr(obj, name)
			obj.Decref()
			if err == nil {
				f.push(value)
			}

		case op.StoreFast:
			idx := int(f.code.InstructionAt(f.ip))
			f.ip++
			f.setLocal(idx, f.pop())

		case op.StoreGlobal, op.StoreName:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			value := f.pop()
			err = f.globalsDict().SetString(r, name, value)
			value.Decref()

		case op.StoreDeref:
			idx := int(f.code.InstructionAt(f.ip))
			f.ip++
			value := f.pop()
			if cell, ok := object.PayloadOf[*object.Cell](f.cells[idx]); ok {
				cell.Set(value)
			}
			value.Decref()

		case op.StoreAttr:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			obj := f.pop()
			value := f.pop()
			err = r.SetAttr(obj, name, value)
			obj.Decref()
			value.Decref()

		case op.DeleteFast:
			idx := int(f.code.InstructionAt(f.ip))
			f.ip++
			if f.locals[idx] == nil {
				err = r.Raise(errz.ErrName,
					"local variable '%s' referenced before assignment", f.code.LocalNameAt(idx))
				break
			}
			f.setLocal(idx, nil)

		case op.DeleteGlobal, op.DeleteName:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			var found bool
			found, err = f.globalsDict().DeleteString(r, name)
			if err == nil && !found {
				err = r.Raise(errz.ErrName, "name '%s' is not defined", name)
			}

		case op.DeleteAttr:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			obj := f.pop()
			err = r.DelAttr(obj, name)
			obj.Decref()

		case op.BinaryOp:
			kind := op.BinaryOpType(f.code.InstructionAt(f.ip))
			f.ip++
			right := f.pop()
			left := f.pop()
			var result *object.Object
			result, err = r.BinaryOp(kind, left, right)
			left.Decref()
			right.Decref()
			if err == nil {
				f.push(result)
			}

		case op.CompareOp:
			kind := op.CompareOpType(f.code.InstructionAt(f.ip))
			f.ip++
			right := f.pop()
			left := f.pop()
			var result *object.Object
			result, err = r.CompareOp(kind, left, right)
			left.Decref()
			right.Decref()
			if err == nil {
				f.push(result)
			}

		case op.UnaryOp:
			kind := op.UnaryOpType(f.code.InstructionAt(f.ip))
			f.ip++
			operand := f.pop()
			var result *object.Object
			result, err = r.UnaryOp(kind, operand)
			operand.Decref()
			if err == nil {
				f.push(result)
			}

		case op.ContainsOp:
			invert := f.code.InstructionAt(f.ip) == 1
			f.ip++
			container := f.pop()
			item := f.pop()
			var found bool
			found, err = r.Contains(container, item)
			container.Decref()
			item.Decref()
			if err == nil {
				f.push(r.NewBool(found != invert))
			}

		case op.BuildTuple:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			items := f.popN(n)
			f.push(r.NewTuple(items))
			decrefAll(items)

		case op.BuildList:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			items := f.popN(n)
			f.push(r.NewList(items))
			decrefAll(items)

		case op.BuildSet:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			items := f.popN(n)
			setObj := r.NewSet()
			set, _ := object.PayloadOf[*object.Set](setObj)
			for _, item := range items {
				if err = set.Add(r, item); err != nil {
					break
				}
			}
			decrefAll(items)
			if err != nil {
				setObj.Decref()
				break
			}
			f.push(setObj)

		case op.BuildMap:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			pairs := f.popN(2 * n)
			dictObj := r.NewDict()
			dict, _ := object.PayloadOf[*object.Dict](dictObj)
			for i := 0; i < len(pairs); i += 2 {
				if err = dict.Set(r, pairs[i], pairs[i+1]); err != nil {
					break
				}
			}
			decrefAll(pairs)
			if err != nil {
				dictObj.Decref()
				break
			}
			f.push(dictObj)

		case op.BuildString:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			parts := f.popN(n)
			var sb strings.Builder
			for _, part := range parts {
				var s string
				if s, err = r.Str(part); err != nil {
					break
				}
				sb.WriteString(s)
			}
			decrefAll(parts)
			if err == nil {
				f.push(r.NewStr(sb.String()))
			}

		case op.BuildTupleUnpack, op.BuildListUnpack:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			var items []*object.Object
			items, err = m.collectUnpacked(f, n)
			if err != nil {
				break
			}
			if opcode == op.BuildTupleUnpack {
				f.push(r.NewTuple(items))
			} else {
				f.push(r.NewList(items))
			}
			decrefAll(items)

		case op.BuildMapUnpack:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			sources := f.popN(n)
			dictObj := r.NewDict()
			dict, _ := object.PayloadOf[*object.Dict](dictObj)
			for _, src := range sources {
				srcDict, ok := object.PayloadOf[*object.Dict](src)
				if !ok {
					err = r.Raise(errz.ErrType, "'%s' object is not a mapping", src.TypeName())
					break
				}
				if err = dict.Update(r, srcDict); err != nil {
					break
				}
			}
			decrefAll(sources)
			if err != nil {
				dictObj.Decref()
				break
			}
			f.push(dictObj)

		case op.Subscript:
			key := f.pop()
			obj := f.pop()
			var value *object.Object
			value, err = r.GetItem(obj, key)
			obj.Decref()
			key.Decref()
			if err == nil {
				f.push(value)
			}

		case op.StoreSubscript:
			key := f.pop()
			obj := f.pop()
			value := f.pop()
			err = r.SetItem(obj, key, value)
			obj.Decref()
			key.Decref()
			value.Decref()

		case op.DeleteSubscript:
			key := f.pop()
			obj := f.pop()
			err = r.DelItem(obj, key)
			obj.Decref()
			key.Decref()

		case op.UnpackSequence:
			n := int(f.code.InstructionAt(f.ip))
			f.ip++
			iterable := f.pop()
			var items []*object.Object
			items, err = r.Collect(iterable)
			iterable.Decref()
			if err != nil {
				break
			}
			if len(items) != n {
				err = r.Raise(errz.ErrValue,
					"expected %d values to unpack, got %d", n, len(items))
				decrefAll(items)
				break
			}
			for i := len(items) - 1; i >= 0; i-- {
				f.push(items[i])
			}

		case op.PopTop:
			f.pop().Decref()

		case op.Rotate2:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]

		case op.Rotate3:
			n := len(f.stack)
			top := f.stack[n-1]
			f.stack[n-1] = f.stack[n-2]
			f.stack[n-2] = f.stack[n-3]
			f.stack[n-3] = top

		case op.DupTop:
			f.push(f.top().Incref())

		case op.Nil:
			f.push(r.None().Incref())

		case op.False:
			f.push(r.False().Incref())

		case op.True:
			f.push(r.True().Incref())

		case op.GetIter:
			obj := f.pop()
			var iter *object.Object
			iter, err = r.GetIter(obj)
			obj.Decref()
			if err == nil {
				f.push(iter)
			}

		case op.ForIter:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			var value *object.Object
			var ok bool
			value, ok, err = m.iterNext(ctx, ts, f.top())
			if err != nil {
				break
			}
			if ok {
				f.push(value)
			} else {
				f.pop().Decref()
				f.ip = target
			}

		case op.MakeFunction:
			flags := op.MakeFunctionFlags(f.code.InstructionAt(f.ip))
			f.ip++
			err = m.execMakeFunction(f, flags)

		case op.SetupLoop:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			f.blocks = append(f.blocks, block{kind: blockLoop, target: target, level: len(f.stack)})

		case op.SetupExcept:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			f.blocks = append(f.blocks, block{kind: blockExcept, target: target, level: len(f.stack)})

		case op.SetupFinally, op.SetupWith:
			target := int(f.code.InstructionAt(f.ip))
			f.ip++
			f.blocks = append(f.blocks, block{kind: blockFinally, target: target, level: len(f.stack)})

		case op.PopBlock:
			f.blocks = f.blocks[:len(f.blocks)-1]

		case op.EndFinally:
			if f.pendingExc != nil {
				exc := f.pendingExc
				f.pendingExc = nil
				err = r.RaiseObject(exc)
				exc.Decref()
			}

		case op.Raise:
			mode := int(f.code.InstructionAt(f.ip))
			f.ip++
			err = m.execRaise(f, mode)

		case op.ImportName:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			var module *object.Object
			module, err = m.importModule(ctx, ts, name)
			if err == nil {
				f.push(module)
			}

		case op.ImportFrom:
			name := f.code.NameAt(int(f.code.InstructionAt(f.ip)))
			f.ip++
			var value *object.Object
			value, err = r.GetAttr(f.top(), name)
			if err == nil {
				f.push(value)
			}

		default:
			err = r.Raise(errz.ErrRuntime, "invalid opcode %d at %d", opcode, f.ip-1)
		}

		if err != nil {
			handled, herr := m.unwind(f, err)
			if !handled {
				f.state = FrameFinished
				return nil, false, herr
			}
		}
	}

	// Fell off the end of the code: implicit None return.
	f.state = FrameFinished
	return r.None().Incref(), false, nil
}

// unwind handles an error raised at the current instruction. Language
// exceptions search the block stack for a handler; anything else (context
// cancellation, halt) propagates untouched. When no handler exists the
// frame's location is appended to the exception's traceback before it
// propagates to the caller.
func (m *VM) unwind(f *Frame, err error) (bool, error) {
	raised, ok := object.AsRaised(err)
	if !ok {
		return false, err
	}
	for len(f.blocks) > 0 {
		b := f.blocks[len(f.blocks)-1]
		f.blocks = f.blocks[:len(f.blocks)-1]
		switch b.kind {
		case blockLoop:
			continue
		case blockExcept:
			f.truncateStack(b.level)
			value := raised.Value().Incref()
			raised.Release()
			f.push(value)
			f.ip = b.target
			return true, nil
		case blockFinally:
			f.truncateStack(b.level)
			if f.pendingExc != nil {
				f.pendingExc.Decref()
			}
			f.pendingExc = raised.Value().Incref()
			raised.Release()
			f.ip = b.target
			return true, nil
		}
	}
	if exc := raised.Exception(); exc != nil {
		exc.AddFrame(f.stackFrame())
	}
	return false, err
}

// innermostLoop returns the innermost loop block without popping it.
func (f *Frame) innermostLoop() (block, bool) {
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if f.blocks[i].kind == blockLoop {
			return f.blocks[i], true
		}
	}
	return block{}, false
}

// popToLoop unwinds the block stack through the innermost loop block,
// restoring the stack depth recorded at loop entry.
func (f *Frame) popToLoop() error {
	for len(f.blocks) > 0 {
		b := f.blocks[len(f.blocks)-1]
		f.blocks = f.blocks[:len(f.blocks)-1]
		if b.kind == blockLoop {
			f.truncateStack(b.level)
			return nil
		}
	}
	return fmt.Errorf("no loop block")
}

func (f *Frame) globalsDict() *object.Dict {
	d, _ := object.PayloadOf[*object.Dict](f.globals)
	return d
}

// loadGlobal resolves a name against the frame's globals, then the VM's
// builtin namespace.
func (m *VM) loadGlobal(f *Frame, name string) error {
	value, found, err := f.globalsDict().GetString(m.registry, name)
	if err != nil {
		return err
	}
	if found {
		f.push(value.Incref())
		return nil
	}
	if builtin, ok := m.builtins[name]; ok {
		f.push(builtin.Incref())
		return nil
	}
	return m.registry.Raise(errz.ErrName, "name '%s' is not defined", name)
}

func (m *VM) loadDeref(f *Frame, idx int) error {
	cell, ok := object.PayloadOf[*object.Cell](f.cells[idx])
	if !ok {
		return m.registry.Raise(errz.ErrRuntime, "deref slot %d does not hold a cell", idx)
	}
	value, ok := cell.Get()
	if !ok {
		name := f.code.CellNameAt(idx)
		if idx >= f.code.CellCount() {
			name = f.code.FreeNameAt(idx - f.code.CellCount())
		}
		return m.registry.Raise(errz.ErrName,
			"free variable '%s' referenced before assignment", name)
	}
	f.push(value.Incref())
	return nil
}

// iterNext advances an iterator: generators resume on this thread so the
// context flows through; everything else uses the next slot.
func (m *VM) iterNext(ctx context.Context, ts *ThreadState, iter *object.Object) (*object.Object, bool, error) {
	if gen, ok := object.PayloadOf[*Generator](iter); ok {
		return m.resumeGenerator(ctx, ts, gen)
	}
	return m.registry.Next(iter)
}

// execCall pops argc positional arguments plus the callee and pushes the
// result.
func (m *VM) execCall(ctx context.Context, ts *ThreadState, f *Frame, argc int) error {
	args := f.popN(argc)
	callee := f.pop()
	result, err := m.callValue(ctx, ts, f, callee, args, nil)
	callee.Decref()
	decrefAll(args)
	if err != nil {
		return err
	}
	f.push(result)
	return nil
}

// execCallKw handles a call with keyword arguments: the operand counts all
// arguments and a tuple of keyword names sits on top of the stack. The
// last len(names) values pair with the names in order.
func (m *VM) execCallKw(ctx context.Context, ts *ThreadState, f *Frame, argc int) error {
	namesObj := f.pop()
	names, ok := object.PayloadOf[*object.Tuple](namesObj)
	if !ok {
		namesObj.Decref()
		return m.registry.Raise(errz.ErrType, "keyword names must be a tuple")
	}
	kwCount := names.Len()
	posCount := argc - kwCount
	values := f.popN(argc)
	kwargs := make(map[string]*object.Object, kwCount)
	for i := 0; i < kwCount; i++ {
		nameObj, _ := names.At(i)
		name, ok := object.PayloadOf[*object.Str](nameObj)
		if !ok {
			namesObj.Decref()
			decrefAll(values)
			return m.registry.Raise(errz.ErrType, "keywords must be strings")
		}
		kwargs[name.Value()] = values[posCount+i]
	}
	namesObj.Decref()
	args := values[:posCount]
	callee := f.pop()
	result, err := m.callValue(ctx, ts, f, callee, args, kwargs)
	callee.Decref()
	decrefAll(values)
	if err != nil {
		return err
	}
	f.push(result)
	return nil
}

// execCallEx handles a call with unpacked arguments: an iterable of
// positional arguments, optionally topped by a mapping of keyword
// arguments.
func (m *VM) execCallEx(ctx context.Context, ts *ThreadState, f *Frame, hasKwargs bool) error {
	r := m.registry
	var kwargs map[string]*object.Object
	if hasKwargs {
		mapping := f.pop()
		dict, ok := object.PayloadOf[*object.Dict](mapping)
		if !ok {
			mapping.Decref()
			return r.Raise(errz.ErrType, "argument after ** must be a mapping, not %s", mapping.TypeName())
		}
		kwargs = make(map[string]*object.Object, dict.Len())
		for _, item := range dict.Items() {
			key, ok := object.PayloadOf[*object.Str](item[0])
			if !ok {
				for _, v := range kwargs {
					v.Decref()
				}
				mapping.Decref()
				return r.Raise(errz.ErrType, "keywords must be strings")
			}
			kwargs[key.Value()] = item[1].Incref()
		}
		mapping.Decref()
	}
	iterable := f.pop()
	args, err := r.Collect(iterable)
	iterable.Decref()
	if err != nil {
		for _, v := range kwargs {
			v.Decref()
		}
		return err
	}
	callee := f.pop()
	result, err := m.callValue(ctx, ts, f, callee, args, kwargs)
	callee.Decref()
	decrefAll(args)
	for _, v := range kwargs {
		v.Decref()
	}
	if err != nil {
		return err
	}
	f.push(result)
	return nil
}

// execMakeFunction assembles a function object from the code constant on
// top of the stack and the optional defaults, keyword defaults, and
// closure below it, as indicated by the flags.
func (m *VM) execMakeFunction(f *Frame, flags op.MakeFunctionFlags) error {
	r := m.registry
	codeObj := f.pop()
	code, ok := object.PayloadOf[*object.CodePayload](codeObj)
	if !ok {
		codeObj.Decref()
		return r.Raise(errz.ErrType, "expected a code object, got %s", codeObj.TypeName())
	}
	params := object.FunctionParams{
		Name:    code.Code().Name(),
		Code:    code.Code(),
		Globals: f.globals,
	}
	var popped []*object.Object
	defer func() {
		decrefAll(popped)
		codeObj.Decref()
	}()

	if flags&op.FlagClosure != 0 {
		closureObj := f.pop()
		popped = append(popped, closureObj)
		closure, ok := object.PayloadOf[*object.Tuple](closureObj)
		if !ok {
			return r.Raise(errz.ErrType, "closure must be a tuple of cells")
		}
		params.Closure = closure.Items()
	}
	if flags&op.FlagKwDefaults != 0 {
		kwObj := f.pop()
		popped = append(popped, kwObj)
		kwDict, ok := object.PayloadOf[*object.Dict](kwObj)
		if !ok {
			return r.Raise(errz.ErrType, "keyword defaults must be a dict")
		}
		params.KwDefaults = make(map[string]*object.Object, kwDict.Len())
		for _, item := range kwDict.Items() {
			key, ok := object.PayloadOf[*object.Str](item[0])
			if !ok {
				return r.Raise(errz.ErrType, "keyword default names must be strings")
			}
			params.KwDefaults[key.Value()] = item[1]
		}
	}
	if flags&op.FlagDefaults != 0 {
		defObj := f.pop()
		popped = append(popped, defObj)
		defaults, ok := object.PayloadOf[*object.Tuple](defObj)
		if !ok {
			return r.Raise(errz.ErrType, "defaults must be a tuple")
		}
		params.Defaults = defaults.Items()
	}
	f.push(r.NewFunction(params))
	return nil
}

// execRaise implements the raise statement. Mode 0 re-raises the exception
// saved by an active finally block, mode 1 raises the value on top of the
// stack, mode 2 additionally pops an explicit cause.
func (m *VM) execRaise(f *Frame, mode int) error {
	r := m.registry
	switch mode {
	case 0:
		if f.pendingExc == nil {
			return r.Raise(errz.ErrRuntime, "no active exception to re-raise")
		}
		exc := f.pendingExc
		f.pendingExc = nil
		err := r.RaiseObject(exc)
		exc.Decref()
		return err
	case 1:
		value := f.pop()
		err := m.raiseValue(value, nil)
		value.Decref()
		return err
	case 2:
		cause := f.pop()
		value := f.pop()
		err := m.raiseValue(value, cause)
		cause.Decref()
		value.Decref()
		return err
	default:
		return r.Raise(errz.ErrRuntime, "invalid raise mode %d", mode)
	}
}

// raiseValue turns a raise operand into a raised error. Exception
// instances raise as-is; exception types are instantiated with no
// arguments.
func (m *VM) raiseValue(value, cause *object.Object) error {
	r := m.registry
	var exc *object.Object
	if _, ok := object.PayloadOf[*object.Exception](value); ok {
		exc = value.Incref()
	} else if t, ok := object.PayloadOf[*object.Type](value); ok && t.IsSubtypeOf(r.BaseExceptionType()) {
		exc = r.NewException(errz.KindFromName(t.Name()), "", nil)
	}
	if exc == nil {
		return r.Raise(errz.ErrType, "exceptions must derive from BaseException")
	}
	if cause != nil {
		if e, ok := object.PayloadOf[*object.Exception](exc); ok {
			e.SetCause(cause)
		}
	}
	err := r.RaiseObject(exc)
	exc.Decref()
	return err
}

// collectUnpacked pops n iterables and concatenates their elements,
// returning owned references.
func (m *VM) collectUnpacked(f *Frame, n int) ([]*object.Object, error) {
	sources := f.popN(n)
	var out []*object.Object
	for _, src := range sources {
		items, err := m.registry.Collect(src)
		if err != nil {
			decrefAll(out)
			decrefAll(sources)
			return nil, err
		}
		out = append(out, items...)
	}
	decrefAll(sources)
	return out, nil
}

// importModule returns an owned reference to the named module, executing
// it from the frozen registry on first import. The module is published
// before its body runs so cyclic imports see the partial namespace.
func (m *VM) importModule(ctx context.Context, ts *ThreadState, name string) (*object.Object, error) {
	r := m.registry
	m.modulesMu.Lock()
	if module, ok := m.modules[name]; ok {
		m.modulesMu.Unlock()
		return module.Incref(), nil
	}
	m.modulesMu.Unlock()

	if m.frozen == nil {
		return nil, r.Raise(errz.ErrImport, "no module named '%s'", name)
	}
	entry, ok := m.frozen.Lookup(name)
	if !ok {
		return nil, r.Raise(errz.ErrImport, "no module named '%s'", name)
	}
	code, err := bytecode.Unmarshal(entry.Code)
	if err != nil {
		return nil, r.Raise(errz.ErrImport, "cannot load module '%s': %v", name, err)
	}
	m.logger.Debug().Str("module", name).Bool("package", entry.IsPackage).
		Msg("importing frozen module")

	module := r.NewModule(name, code.Filename())
	m.modulesMu.Lock()
	if existing, ok := m.modules[name]; ok {
		// Another thread beat us to it.
		m.modulesMu.Unlock()
		module.Decref()
		return existing.Incref(), nil
	}
	m.modules[name] = module.Incref()
	m.modulesMu.Unlock()

	mod, _ := object.PayloadOf[*object.Module](module)
	f := newFrame(r, code, nil, mod.DictObj(), ts.TopFrame())
	result, _, err := m.evalFrame(ctx, ts, f)
	f.release()
	if err != nil {
		m.modulesMu.Lock()
		if m.modules[name] == module {
			delete(m.modules, name)
			module.Decref()
		}
		m.modulesMu.Unlock()
		module.Decref()
		return nil, err
	}
	if result != nil {
		result.Decref()
	}
	return module, nil
}

// InstallModule publishes a prebuilt module into the import cache, so
// ImportName resolves it without consulting the frozen registry. Native
// adapter modules are installed this way.
func (m *VM) InstallModule(name string, module *object.Object) {
	m.modulesMu.Lock()
	defer m.modulesMu.Unlock()
	if prev, ok := m.modules[name]; ok {
		prev.Decref()
	}
	m.modules[name] = module.Incref()
}

// Module returns the named imported module with an owned reference.
func (m *VM) Module(name string) (*object.Object, bool) {
	m.modulesMu.Lock()
	defer m.modulesMu.Unlock()
	if module, ok := m.modules[name]; ok {
		return module.Incref(), true
	}
	return nil, false
}

// CollectGarbage pauses every interpreter thread at a safepoint, runs one
// cycle-collection pass over the registry, and resumes them. It returns
// the number of objects freed and any finalizer errors.
func (m *VM) CollectGarbage(ctx context.Context) (int, error) {
	resume := m.threads.PauseAll(threadFromContext(ctx))
	defer resume()
	return m.registry.GC().Collect()
}

// Close releases the VM's references to builtins and imported modules.
func (m *VM) Close() {
	m.halted.Store(true)
	for name, builtin := range m.builtins {
		builtin.Decref()
		delete(m.builtins, name)
	}
	m.modulesMu.Lock()
	for name, module := range m.modules {
		module.Decref()
		delete(m.modules, name)
	}
	m.modulesMu.Unlock()
}

func decrefAll(objs []*object.Object) {
	for _, o := range objs {
		if o != nil {
			o.Decref()
		}
	}
}
