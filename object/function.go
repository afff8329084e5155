package object

import (
	"context"

	"github.com/deepnoodle-ai/serpent/bytecode"
)

// Function is the payload of a bytecode function: compiled code plus the
// captured defaults, closure cells, and the globals namespace it runs in.
type Function struct {
	name       string
	code       *bytecode.Code
	globals    *Object // dict object, the defining module's namespace
	defaults   []*Object
	kwDefaults map[string]*Object
	closure    []*Object // cell objects, parallel to the code's free names
	doc        string
}

func (f *Function) PayloadKind() string { return "function" }

// Name returns the function's name.
func (f *Function) Name() string { return f.name }

// Code returns the compiled code.
func (f *Function) Code() *bytecode.Code { return f.code }

// Globals returns the globals dict object as a borrowed reference.
func (f *Function) Globals() *Object { return f.globals }

// Defaults returns the positional defaults, as borrowed references.
func (f *Function) Defaults() []*Object { return f.defaults }

// KwDefaults returns the keyword-only defaults, as borrowed references.
func (f *Function) KwDefaults() map[string]*Object { return f.kwDefaults }

// Closure returns the closure cells, as borrowed references.
func (f *Function) Closure() []*Object { return f.closure }

// Doc returns the function's doc string.
func (f *Function) Doc() string { return f.doc }

// Traverse visits captured references for the cycle collector.
func (f *Function) Traverse(visit func(*Object)) {
	if f.globals != nil {
		visit(f.globals)
	}
	for _, d := range f.defaults {
		visit(d)
	}
	for _, d := range f.kwDefaults {
		visit(d)
	}
	for _, c := range f.closure {
		visit(c)
	}
}

// Finalize releases the captured references.
func (f *Function) Finalize() error {
	if f.globals != nil {
		f.globals.Decref()
		f.globals = nil
	}
	for _, d := range f.defaults {
		d.Decref()
	}
	f.defaults = nil
	for _, d := range f.kwDefaults {
		d.Decref()
	}
	f.kwDefaults = nil
	for _, c := range f.closure {
		c.Decref()
	}
	f.closure = nil
	return nil
}

// GoFunc is the implementation signature for builtin functions.
type GoFunc func(ctx context.Context, r *Registry, args []*Object, kwargs map[string]*Object) (*Object, error)

// BuiltinFunction is the payload of a function implemented in Go.
type BuiltinFunction struct {
	name   string
	module string
	fn     GoFunc
	doc    string
}

func (b *BuiltinFunction) PayloadKind() string { return "builtin_function" }

// Name returns the builtin's name.
func (b *BuiltinFunction) Name() string { return b.name }

// Module returns the name of the module the builtin belongs to, or "" for
// core builtins.
func (b *BuiltinFunction) Module() string { return b.module }

// Doc returns the builtin's doc string.
func (b *BuiltinFunction) Doc() string { return b.doc }

// Call invokes the Go implementation.
func (b *BuiltinFunction) Call(ctx context.Context, r *Registry, args []*Object, kwargs map[string]*Object) (*Object, error) {
	return b.fn(ctx, r, args, kwargs)
}

// BoundMethod is the payload pairing a callable with the receiver it was
// looked up on.
type BoundMethod struct {
	callable *Object
	receiver *Object
}

func (m *BoundMethod) PayloadKind() string { return "method" }

// Callable returns the underlying callable as a borrowed reference.
func (m *BoundMethod) Callable() *Object { return m.callable }

// Receiver returns the bound receiver as a borrowed reference.
func (m *BoundMethod) Receiver() *Object { return m.receiver }

// Traverse visits the callable and receiver for the cycle collector.
func (m *BoundMethod) Traverse(visit func(*Object)) {
	visit(m.callable)
	visit(m.receiver)
}

// Finalize releases the callable and receiver.
func (m *BoundMethod) Finalize() error {
	m.callable.Decref()
	m.receiver.Decref()
	return nil
}
