package object

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/serpent/bytecode"
	"github.com/deepnoodle-ai/serpent/errz"
)

const (
	smallIntMin = -5
	smallIntMax = 256
)

// Registry owns the type system and the construction primitives. Every
// allocation, slot dispatch, and raise goes through an explicit *Registry
// receiver; there is no package-global interpreter state, so independent
// registries can coexist in one process.
type Registry struct {
	logger zerolog.Logger

	typeType           *Type
	objectType         *Type
	intType            *Type
	floatType          *Type
	complexType        *Type
	boolType           *Type
	strType            *Type
	bytesType          *Type
	noneType           *Type
	ellipsisType       *Type
	notImplType        *Type
	tupleType          *Type
	listType           *Type
	dictType           *Type
	setType            *Type
	cellType           *Type
	functionType       *Type
	builtinFuncType    *Type
	methodType         *Type
	codeType           *Type
	moduleType         *Type
	seqIterType        *Type
	dictIterType       *Type
	rangeType          *Type
	baseExceptionType  *Type
	exceptionType      *Type
	arithmeticErrType  *Type
	lookupErrType      *Type
	runtimeErrType     *Type
	excTypes           map[errz.ErrorKind]*Type

	none           *Object
	trueObj        *Object
	falseObj       *Object
	ellipsis       *Object
	notImplemented *Object
	emptyTuple     *Object
	smallInts      [smallIntMax - smallIntMin + 1]*Object

	typesMu sync.RWMutex
	types   map[string]*Type

	// invoker runs bytecode function objects. The interpreter installs it;
	// without one, calling a bytecode function raises.
	invoker CallFunc

	gc *Collector
}

// SetInvoker installs the hook that executes bytecode function objects.
func (r *Registry) SetInvoker(fn CallFunc) {
	r.invoker = fn
}

// Invoker returns the installed bytecode invoker, or nil.
func (r *Registry) Invoker() CallFunc {
	return r.invoker
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry and its collector.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry with the builtin types bootstrapped and
// the shared singletons allocated.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:   zerolog.Nop(),
		types:    make(map[string]*Type),
		excTypes: make(map[errz.ErrorKind]*Type),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.gc = newCollector(r)
	r.bootstrap()
	return r
}

// bootstrap builds the type system. The first phase creates the "type" and
// "object" payloads with their cells unset, so the two can point at each
// other; every later type is created normally.
func (r *Registry) bootstrap() {
	// Phase one: break the type/object dependency knot.
	objectType := &Type{name: "object"}
	objectType.mro = []*Type{objectType}
	typeType := &Type{name: "type", bases: []*Type{objectType}}
	typeType.mro = []*Type{typeType, objectType}
	typeType.obj = New(typeType, typeType)
	objectType.obj = New(objectType, typeType)
	objectType.addSubclass(NewWeak(typeType.obj))
	r.typeType = typeType
	r.objectType = objectType
	r.registerType(objectType)
	r.registerType(typeType)
	registerObjectSlots(objectType)
	registerTypeSlots(typeType)

	// Phase two: ordinary types.
	r.intType = r.mustNewType("int", r.objectType)
	r.floatType = r.mustNewType("float", r.objectType)
	r.complexType = r.mustNewType("complex", r.objectType)
	r.boolType = r.mustNewType("bool", r.intType)
	r.strType = r.mustNewType("str", r.objectType)
	r.bytesType = r.mustNewType("bytes", r.objectType)
	r.noneType = r.mustNewType("NoneType", r.objectType)
	r.ellipsisType = r.mustNewType("ellipsis", r.objectType)
	r.notImplType = r.mustNewType("NotImplementedType", r.objectType)
	r.tupleType = r.mustNewType("tuple", r.objectType)
	r.listType = r.mustNewType("list", r.objectType)
	r.dictType = r.mustNewType("dict", r.objectType)
	r.setType = r.mustNewType("set", r.objectType)
	r.cellType = r.mustNewType("cell", r.objectType)
	r.functionType = r.mustNewType("function", r.objectType)
	r.builtinFuncType = r.mustNewType("builtin_function_or_method", r.objectType)
	r.methodType = r.mustNewType("method", r.objectType)
	r.codeType = r.mustNewType("code", r.objectType)
	r.moduleType = r.mustNewType("module", r.objectType)
	r.seqIterType = r.mustNewType("iterator", r.objectType)
	r.dictIterType = r.mustNewType("dict_keyiterator", r.objectType)
	r.rangeType = r.mustNewType("range", r.objectType)
	r.registerBuiltinSlots()
	r.bootstrapExceptions()

	// Singletons and caches.
	r.none = New(NoneType{}, r.noneType)
	r.trueObj = New(&Bool{value: true}, r.boolType)
	r.falseObj = New(&Bool{value: false}, r.boolType)
	r.ellipsis = New(EllipsisType{}, r.ellipsisType)
	r.notImplemented = New(NotImplementedType{}, r.notImplType)
	r.emptyTuple = New(&Tuple{}, r.tupleType)
	for i := range r.smallInts {
		v := big.NewInt(int64(i + smallIntMin))
		r.smallInts[i] = New(&Int{value: v}, r.intType)
	}
}

// bootstrapExceptions builds the exception hierarchy and maps each error
// kind to its exception type.
func (r *Registry) bootstrapExceptions() {
	r.baseExceptionType = r.mustNewType("BaseException", r.objectType)
	r.exceptionType = r.mustNewType("Exception", r.baseExceptionType)
	r.arithmeticErrType = r.mustNewType("ArithmeticError", r.exceptionType)
	r.lookupErrType = r.mustNewType("LookupError", r.exceptionType)
	r.runtimeErrType = r.mustNewType("RuntimeError", r.exceptionType)
	registerExceptionSlots(r.baseExceptionType)

	kinds := []struct {
		kind errz.ErrorKind
		base *Type
	}{
		{errz.ErrType, r.exceptionType},
		{errz.ErrAttribute, r.exceptionType},
		{errz.ErrName, r.exceptionType},
		{errz.ErrValue, r.exceptionType},
		{errz.ErrIndex, r.lookupErrType},
		{errz.ErrKey, r.lookupErrType},
		{errz.ErrZeroDivision, r.arithmeticErrType},
		{errz.ErrStopIteration, r.exceptionType},
		{errz.ErrRecursion, r.runtimeErrType},
		{errz.ErrMemory, r.exceptionType},
		{errz.ErrImport, r.exceptionType},
		{errz.ErrSyntax, r.exceptionType},
	}
	r.excTypes[errz.ErrRuntime] = r.runtimeErrType
	for _, k := range kinds {
		r.excTypes[k.kind] = r.mustNewType(k.kind.String(), k.base)
	}
}

// NewType creates a type with the given bases, linearizing its MRO. Bases
// default to object when empty.
func (r *Registry) NewType(name string, bases ...*Type) (*Type, error) {
	if len(bases) == 0 {
		bases = []*Type{r.objectType}
	}
	t := &Type{name: name, bases: bases}
	mro, err := linearizeMRO(t, bases)
	if err != nil {
		return nil, err
	}
	t.mro = mro
	t.obj = New(t, r.typeType)
	for _, base := range bases {
		base.addSubclass(NewWeak(t.obj))
	}
	r.registerType(t)
	return t, nil
}

func (r *Registry) mustNewType(name string, bases ...*Type) *Type {
	t, err := r.NewType(name, bases...)
	if err != nil {
		panic(fmt.Sprintf("bootstrap: %s", err))
	}
	return t
}

func (r *Registry) registerType(t *Type) {
	r.typesMu.Lock()
	r.types[t.name] = t
	r.typesMu.Unlock()
}

// LookupType finds a registered type by name.
func (r *Registry) LookupType(name string) (*Type, bool) {
	r.typesMu.RLock()
	t, ok := r.types[name]
	r.typesMu.RUnlock()
	return t, ok
}

// Logger returns the registry's logger.
func (r *Registry) Logger() zerolog.Logger { return r.logger }

// GC returns the cycle collector.
func (r *Registry) GC() *Collector { return r.gc }

// Type accessors.

func (r *Registry) TypeType() *Type        { return r.typeType }
func (r *Registry) ObjectType() *Type      { return r.objectType }
func (r *Registry) IntType() *Type         { return r.intType }
func (r *Registry) FloatType() *Type       { return r.floatType }
func (r *Registry) ComplexType() *Type     { return r.complexType }
func (r *Registry) BoolType() *Type        { return r.boolType }
func (r *Registry) StrType() *Type         { return r.strType }
func (r *Registry) BytesType() *Type       { return r.bytesType }
func (r *Registry) TupleType() *Type       { return r.tupleType }
func (r *Registry) ListType() *Type        { return r.listType }
func (r *Registry) DictType() *Type        { return r.dictType }
func (r *Registry) SetType() *Type         { return r.setType }
func (r *Registry) FunctionType() *Type    { return r.functionType }
func (r *Registry) BuiltinFuncType() *Type { return r.builtinFuncType }
func (r *Registry) MethodType() *Type      { return r.methodType }
func (r *Registry) CodeType() *Type        { return r.codeType }
func (r *Registry) ModuleType() *Type      { return r.moduleType }
func (r *Registry) RangeType() *Type       { return r.rangeType }

// ExceptionTypeFor returns the exception type mapped to an error kind.
// BaseExceptionType returns the root of the exception type hierarchy.
func (r *Registry) BaseExceptionType() *Type { return r.baseExceptionType }

func (r *Registry) ExceptionTypeFor(kind errz.ErrorKind) *Type {
	if t, ok := r.excTypes[kind]; ok {
		return t
	}
	return r.runtimeErrType
}

// Singleton accessors return borrowed references owned by the registry;
// callers that store the result must Incref it.

func (r *Registry) None() *Object           { return r.none }
func (r *Registry) True() *Object           { return r.trueObj }
func (r *Registry) False() *Object          { return r.falseObj }
func (r *Registry) Ellipsis() *Object       { return r.ellipsis }
func (r *Registry) NotImplemented() *Object { return r.notImplemented }

// Bool returns the borrowed boolean singleton for v.
func (r *Registry) Bool(v bool) *Object {
	if v {
		return r.trueObj
	}
	return r.falseObj
}

// Construction primitives. Every New* call returns an owned reference: the
// caller holds one strong reference and is responsible for releasing it.
// Constructors copy no argument references; they take their own.

// NewInt creates an int object. Small values come from the shared cache.
func (r *Registry) NewInt(v *big.Int) *Object {
	if v.IsInt64() {
		if n := v.Int64(); n >= smallIntMin && n <= smallIntMax {
			return r.smallInts[n-smallIntMin].Incref()
		}
	}
	return New(&Int{value: new(big.Int).Set(v)}, r.intType)
}

// NewIntFromInt64 creates an int object from an int64.
func (r *Registry) NewIntFromInt64(n int64) *Object {
	if n >= smallIntMin && n <= smallIntMax {
		return r.smallInts[n-smallIntMin].Incref()
	}
	return New(&Int{value: big.NewInt(n)}, r.intType)
}

// NewFloat creates a float object.
func (r *Registry) NewFloat(v float64) *Object {
	return New(&Float{value: v}, r.floatType)
}

// NewComplex creates a complex object.
func (r *Registry) NewComplex(re, im float64) *Object {
	return New(&Complex{real: re, imag: im}, r.complexType)
}

// NewStr creates a str object.
func (r *Registry) NewStr(s string) *Object {
	return New(&Str{value: s}, r.strType)
}

// NewBytes creates a bytes object, copying the input.
func (r *Registry) NewBytes(b []byte) *Object {
	cp := make([]byte, len(b))
	copy(cp, b)
	return New(&Bytes{value: cp}, r.bytesType)
}

// NewBool returns an owned reference to the boolean singleton for v.
func (r *Registry) NewBool(v bool) *Object {
	return r.Bool(v).Incref()
}

// NewTuple creates a tuple holding the given items, taking a strong
// reference to each.
func (r *Registry) NewTuple(items []*Object) *Object {
	if len(items) == 0 {
		return r.emptyTuple.Incref()
	}
	owned := make([]*Object, len(items))
	for i, item := range items {
		owned[i] = item.Incref()
	}
	o := New(&Tuple{items: owned}, r.tupleType)
	r.track(o)
	return o
}

// NewList creates a list holding the given items, taking a strong
// reference to each.
func (r *Registry) NewList(items []*Object) *Object {
	l := &List{items: make([]*Object, len(items))}
	for i, item := range items {
		l.items[i] = item.Incref()
	}
	o := New(l, r.listType)
	r.track(o)
	return o
}

// NewDict creates an empty dict object.
func (r *Registry) NewDict() *Object {
	o := New(&Dict{}, r.dictType)
	r.track(o)
	return o
}

// NewSet creates an empty set object.
func (r *Registry) NewSet() *Object {
	o := New(&Set{}, r.setType)
	r.track(o)
	return o
}

// NewCell creates a closure cell, optionally seeded with a value.
func (r *Registry) NewCell(value *Object) *Object {
	c := &Cell{}
	if value != nil {
		c.Set(value)
	}
	o := New(c, r.cellType)
	r.track(o)
	return o
}

// FunctionParams collects the pieces of a bytecode function.
type FunctionParams struct {
	Name       string
	Code       *bytecode.Code
	Globals    *Object // dict object
	Defaults   []*Object
	KwDefaults map[string]*Object
	Closure    []*Object // cell objects
	Doc        string
}

// NewFunction creates a function object, taking strong references to the
// globals, defaults, and closure cells.
func (r *Registry) NewFunction(p FunctionParams) *Object {
	f := &Function{
		name: p.Name,
		code: p.Code,
		doc:  p.Doc,
	}
	if p.Globals != nil {
		f.globals = p.Globals.Incref()
	}
	if len(p.Defaults) > 0 {
		f.defaults = make([]*Object, len(p.Defaults))
		for i, d := range p.Defaults {
			f.defaults[i] = d.Incref()
		}
	}
	if len(p.KwDefaults) > 0 {
		f.kwDefaults = make(map[string]*Object, len(p.KwDefaults))
		for k, d := range p.KwDefaults {
			f.kwDefaults[k] = d.Incref()
		}
	}
	if len(p.Closure) > 0 {
		f.closure = make([]*Object, len(p.Closure))
		for i, c := range p.Closure {
			f.closure[i] = c.Incref()
		}
	}
	o := New(f, r.functionType)
	r.track(o)
	return o
}

// NewBuiltin creates a builtin function object.
func (r *Registry) NewBuiltin(name, module, doc string, fn GoFunc) *Object {
	return New(&BuiltinFunction{name: name, module: module, doc: doc, fn: fn}, r.builtinFuncType)
}

// NewBoundMethod pairs a callable with a receiver, taking strong references
// to both.
func (r *Registry) NewBoundMethod(callable, receiver *Object) *Object {
	m := &BoundMethod{callable: callable.Incref(), receiver: receiver.Incref()}
	o := New(m, r.methodType)
	r.track(o)
	return o
}

// NewCodeObject wraps compiled code as an object.
func (r *Registry) NewCodeObject(code *bytecode.Code) *Object {
	return New(&CodePayload{code: code}, r.codeType)
}

// NewModule creates a module with a fresh namespace dict.
func (r *Registry) NewModule(name, filename string) *Object {
	dict := r.NewDict()
	m := &Module{name: name, filename: filename, dict: dict}
	o := New(m, r.moduleType)
	r.track(o)
	return o
}

// NewRange creates a range object. A zero step is a ValueError.
func (r *Registry) NewRange(start, stop, step int64) (*Object, error) {
	if step == 0 {
		return nil, r.Raise(errz.ErrValue, "range() arg 3 must not be zero")
	}
	return New(&Range{start: start, stop: stop, step: step}, r.rangeType), nil
}

// NewSeqIterator creates an index-based iterator over a container, taking a
// strong reference to it.
func (r *Registry) NewSeqIterator(container *Object) *Object {
	it := &SeqIterator{container: container.Incref()}
	o := New(it, r.seqIterType)
	r.track(o)
	return o
}

// NewDictIterator creates a key iterator over a dict object, snapshotting
// its keys.
func (r *Registry) NewDictIterator(dictObj *Object) *Object {
	d, _ := PayloadOf[*Dict](dictObj)
	borrowed := d.Keys()
	keys := make([]*Object, len(borrowed))
	for i, k := range borrowed {
		keys[i] = k.Incref()
	}
	it := &DictIterator{dict: dictObj.Incref(), keys: keys}
	o := New(it, r.dictIterType)
	r.track(o)
	return o
}

// NewException creates an exception object of the type mapped to kind,
// taking strong references to the args.
func (r *Registry) NewException(kind errz.ErrorKind, message string, args []*Object) *Object {
	e := &Exception{kind: kind, message: message}
	if len(args) > 0 {
		e.args = make([]*Object, len(args))
		for i, a := range args {
			e.args[i] = a.Incref()
		}
	}
	o := New(e, r.ExceptionTypeFor(kind))
	r.track(o)
	return o
}

// Raise creates an exception of the given kind and returns it as an error.
func (r *Registry) Raise(kind errz.ErrorKind, format string, args ...any) error {
	exc := r.NewException(kind, fmt.Sprintf(format, args...), nil)
	err := NewRaisedError(exc)
	exc.Decref()
	return err
}

// RaiseObject wraps an existing exception object as an error.
func (r *Registry) RaiseObject(exc *Object) error {
	return NewRaisedError(exc)
}

// FromConstant converts a compile-time constant into an object.
func (r *Registry) FromConstant(c bytecode.Constant) (*Object, error) {
	switch c := c.(type) {
	case bytecode.IntConst:
		return r.NewInt(c.Value), nil
	case bytecode.FloatConst:
		return r.NewFloat(c.Value), nil
	case bytecode.ComplexConst:
		return r.NewComplex(c.Real, c.Imag), nil
	case bytecode.BoolConst:
		return r.NewBool(c.Value), nil
	case bytecode.StrConst:
		return r.NewStr(c.Value), nil
	case bytecode.BytesConst:
		return r.NewBytes(c.Value), nil
	case bytecode.TupleConst:
		items := make([]*Object, len(c.Items))
		for i, item := range c.Items {
			o, err := r.FromConstant(item)
			if err != nil {
				for _, done := range items[:i] {
					done.Decref()
				}
				return nil, err
			}
			items[i] = o
		}
		t := r.NewTuple(items)
		for _, item := range items {
			item.Decref()
		}
		return t, nil
	case bytecode.CodeConst:
		return r.NewCodeObject(c.Code), nil
	case bytecode.NoneConst:
		return r.none.Incref(), nil
	case bytecode.EllipsisConst:
		return r.ellipsis.Incref(), nil
	default:
		return nil, fmt.Errorf("unsupported constant kind %T", c)
	}
}

// track registers a container object with the cycle collector.
func (r *Registry) track(o *Object) {
	r.gc.track(o)
}

// Track registers an externally constructed container object with the
// cycle collector. Embedders that define their own traversable payloads
// use this after allocating with New.
func (r *Registry) Track(o *Object) {
	r.gc.track(o)
}
