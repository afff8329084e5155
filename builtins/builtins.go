// Package builtins defines the default set of built-in functions.
package builtins

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

func Len(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "len() takes exactly one argument (%d given)", len(args))
	}
	n, err := r.Len(args[0])
	if err != nil {
		return nil, err
	}
	return r.NewIntFromInt64(n), nil
}

func Repr(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "repr() takes exactly one argument (%d given)", len(args))
	}
	s, err := r.Repr(args[0])
	if err != nil {
		return nil, err
	}
	return r.NewStr(s), nil
}

func Str(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	switch len(args) {
	case 0:
		return r.NewStr(""), nil
	case 1:
		s, err := r.Str(args[0])
		if err != nil {
			return nil, err
		}
		return r.NewStr(s), nil
	default:
		return nil, r.Raise(errz.ErrType, "str() takes at most 1 argument (%d given)", len(args))
	}
}

func Int(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) == 0 {
		return r.NewIntFromInt64(0), nil
	}
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "int() takes at most 1 argument (%d given)", len(args))
	}
	switch p := args[0].Payload().(type) {
	case *object.Int:
		return args[0].Incref(), nil
	case *object.Bool:
		if p.Value() {
			return r.NewIntFromInt64(1), nil
		}
		return r.NewIntFromInt64(0), nil
	case *object.Float:
		i, _ := big.NewFloat(p.Value()).Int(nil)
		return r.NewInt(i), nil
	case *object.Str:
		i, ok := new(big.Int).SetString(strings.TrimSpace(p.Value()), 10)
		if !ok {
			return nil, r.Raise(errz.ErrValue,
				"invalid literal for int() with base 10: %q", p.Value())
		}
		return r.NewInt(i), nil
	default:
		return nil, r.Raise(errz.ErrType,
			"int() argument must be a string or a number, not '%s'", args[0].TypeName())
	}
}

func Float(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) == 0 {
		return r.NewFloat(0), nil
	}
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "float() takes at most 1 argument (%d given)", len(args))
	}
	switch p := args[0].Payload().(type) {
	case *object.Float:
		return args[0].Incref(), nil
	case *object.Int:
		return r.NewFloat(p.Float64()), nil
	case *object.Bool:
		if p.Value() {
			return r.NewFloat(1), nil
		}
		return r.NewFloat(0), nil
	case *object.Str:
		v, err := strconv.ParseFloat(strings.TrimSpace(p.Value()), 64)
		if err != nil {
			return nil, r.Raise(errz.ErrValue,
				"could not convert string to float: %q", p.Value())
		}
		return r.NewFloat(v), nil
	default:
		return nil, r.Raise(errz.ErrType,
			"float() argument must be a string or a number, not '%s'", args[0].TypeName())
	}
}

func Bool(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) == 0 {
		return r.NewBool(false), nil
	}
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "bool() takes at most 1 argument (%d given)", len(args))
	}
	truthy, err := r.Truthy(args[0])
	if err != nil {
		return nil, err
	}
	return r.NewBool(truthy), nil
}

func TypeBuiltin(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "type() takes exactly one argument (%d given)", len(args))
	}
	return args[0].TypeOf().Obj().Incref(), nil
}

func IsInstance(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 2 {
		return nil, r.Raise(errz.ErrType, "isinstance() takes exactly 2 arguments (%d given)", len(args))
	}
	checker := func(t *object.Type) bool {
		return args[0].TypeOf().IsSubtypeOf(t)
	}
	if t, ok := object.PayloadOf[*object.Type](args[1]); ok {
		return r.NewBool(checker(t)), nil
	}
	if types, ok := object.PayloadOf[*object.Tuple](args[1]); ok {
		for _, item := range types.Items() {
			t, ok := object.PayloadOf[*object.Type](item)
			if !ok {
				return nil, r.Raise(errz.ErrType,
					"isinstance() arg 2 must be a type or tuple of types")
			}
			if checker(t) {
				return r.NewBool(true), nil
			}
		}
		return r.NewBool(false), nil
	}
	return nil, r.Raise(errz.ErrType, "isinstance() arg 2 must be a type or tuple of types")
}

func Iter(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "iter() takes exactly one argument (%d given)", len(args))
	}
	return r.GetIter(args[0])
}

func Next(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, r.Raise(errz.ErrType, "next() takes 1 or 2 arguments (%d given)", len(args))
	}
	value, ok, err := r.Next(args[0])
	if err != nil {
		return nil, err
	}
	if ok {
		return value, nil
	}
	if len(args) == 2 {
		return args[1].Incref(), nil
	}
	return nil, r.Raise(errz.ErrStopIteration, "")
}

func Hash(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "hash() takes exactly one argument (%d given)", len(args))
	}
	h, err := r.Hash(args[0])
	if err != nil {
		return nil, err
	}
	return r.NewIntFromInt64(int64(h)), nil
}

func Range(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	bounds := make([]int64, len(args))
	for i, arg := range args {
		p, ok := object.PayloadOf[*object.Int](arg)
		if !ok {
			return nil, r.Raise(errz.ErrType,
				"'%s' object cannot be interpreted as an integer", arg.TypeName())
		}
		bounds[i], _ = p.Int64()
	}
	switch len(bounds) {
	case 1:
		return r.NewRange(0, bounds[0], 1)
	case 2:
		return r.NewRange(bounds[0], bounds[1], 1)
	case 3:
		return r.NewRange(bounds[0], bounds[1], bounds[2])
	default:
		return nil, r.Raise(errz.ErrType, "range() takes 1 to 3 arguments (%d given)", len(args))
	}
}

func Print(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	sep := " "
	end := "\n"
	if v, ok := kwargs["sep"]; ok {
		s, ok := object.PayloadOf[*object.Str](v)
		if !ok {
			return nil, r.Raise(errz.ErrType, "sep must be None or a string, not %s", v.TypeName())
		}
		sep = s.Value()
	}
	if v, ok := kwargs["end"]; ok {
		s, ok := object.PayloadOf[*object.Str](v)
		if !ok {
			return nil, r.Raise(errz.ErrType, "end must be None or a string, not %s", v.TypeName())
		}
		end = s.Value()
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		s, err := r.Str(arg)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	fmt.Fprint(os.Stdout, strings.Join(parts, sep)+end)
	return r.None().Incref(), nil
}

// Builtins returns the default builtin namespace as objects created in the
// given registry. The caller owns the returned references.
func Builtins(r *object.Registry) map[string]*object.Object {
	out := map[string]*object.Object{
		"len":        r.NewBuiltin("len", "", "Return the number of items in a container.", Len),
		"repr":       r.NewBuiltin("repr", "", "Return the canonical string representation.", Repr),
		"str":        r.NewBuiltin("str", "", "Return a string version of object.", Str),
		"int":        r.NewBuiltin("int", "", "Convert a number or string to an integer.", Int),
		"float":      r.NewBuiltin("float", "", "Convert a number or string to a float.", Float),
		"bool":       r.NewBuiltin("bool", "", "Return the truth value of object.", Bool),
		"type":       r.NewBuiltin("type", "", "Return the type of object.", TypeBuiltin),
		"isinstance": r.NewBuiltin("isinstance", "", "Return whether object is an instance of a type.", IsInstance),
		"iter":       r.NewBuiltin("iter", "", "Return an iterator for object.", Iter),
		"next":       r.NewBuiltin("next", "", "Return the next item from an iterator.", Next),
		"hash":       r.NewBuiltin("hash", "", "Return the hash value of object.", Hash),
		"range":      r.NewBuiltin("range", "", "Return an arithmetic progression of integers.", Range),
		"print":      r.NewBuiltin("print", "", "Print values to standard output.", Print),
	}
	for _, singleton := range []struct {
		name string
		obj  *object.Object
	}{
		{"None", r.None()},
		{"True", r.True()},
		{"False", r.False()},
		{"NotImplemented", r.NotImplemented()},
		{"Ellipsis", r.Ellipsis()},
	} {
		out[singleton.name] = singleton.obj.Incref()
	}
	for _, kind := range []errz.ErrorKind{
		errz.ErrRuntime, errz.ErrType, errz.ErrAttribute, errz.ErrName,
		errz.ErrValue, errz.ErrIndex, errz.ErrKey, errz.ErrZeroDivision,
		errz.ErrStopIteration, errz.ErrRecursion, errz.ErrMemory,
		errz.ErrImport,
	} {
		t := r.ExceptionTypeFor(kind)
		out[t.Name()] = t.Obj().Incref()
	}
	out["BaseException"] = r.BaseExceptionType().Obj().Incref()
	return out
}

// Release drops the references held by a Builtins map.
func Release(builtins map[string]*object.Object) {
	for name, obj := range builtins {
		obj.Decref()
		delete(builtins, name)
	}
}
