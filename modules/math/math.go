// Package math provides the math adapter module.
package math

import (
	"context"
	"math"
	"math/big"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

func asFloat(r *object.Registry, fn string, o *object.Object) (float64, error) {
	switch p := o.Payload().(type) {
	case *object.Float:
		return p.Value(), nil
	case *object.Int:
		return p.Float64(), nil
	case *object.Bool:
		if p.Value() {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, r.Raise(errz.ErrType,
			"math.%s: argument must be a number, not '%s'", fn, o.TypeName())
	}
}

func oneArg(fn string, impl func(float64) float64) object.GoFunc {
	return func(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
		if len(args) != 1 {
			return nil, r.Raise(errz.ErrType, "math.%s: expected 1 argument, got %d", fn, len(args))
		}
		v, err := asFloat(r, fn, args[0])
		if err != nil {
			return nil, err
		}
		return r.NewFloat(impl(v)), nil
	}
}

func Abs(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "math.abs: expected 1 argument, got %d", len(args))
	}
	switch p := args[0].Payload().(type) {
	case *object.Int:
		return r.NewInt(new(big.Int).Abs(p.Value())), nil
	case *object.Float:
		return r.NewFloat(math.Abs(p.Value())), nil
	default:
		return nil, r.Raise(errz.ErrType,
			"math.abs: argument must be a number, not '%s'", args[0].TypeName())
	}
}

func Sqrt(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 1 {
		return nil, r.Raise(errz.ErrType, "math.sqrt: expected 1 argument, got %d", len(args))
	}
	v, err := asFloat(r, "sqrt", args[0])
	if err != nil {
		return nil, err
	}
	if v < 0 {
		return nil, r.Raise(errz.ErrValue, "math domain error")
	}
	return r.NewFloat(math.Sqrt(v)), nil
}

func Pow(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 2 {
		return nil, r.Raise(errz.ErrType, "math.pow: expected 2 arguments, got %d", len(args))
	}
	x, err := asFloat(r, "pow", args[0])
	if err != nil {
		return nil, err
	}
	y, err := asFloat(r, "pow", args[1])
	if err != nil {
		return nil, err
	}
	return r.NewFloat(math.Pow(x, y)), nil
}

// Module builds the math module object. The caller owns the returned
// reference.
func Module(r *object.Registry) (*object.Object, error) {
	moduleObj := r.NewModule("math", "")
	mod, _ := object.PayloadOf[*object.Module](moduleObj)
	dict := mod.Dict()

	values := map[string]*object.Object{
		"abs":   r.NewBuiltin("abs", "math", "Absolute value.", Abs),
		"sqrt":  r.NewBuiltin("sqrt", "math", "Square root.", Sqrt),
		"pow":   r.NewBuiltin("pow", "math", "x raised to the power y.", Pow),
		"floor": r.NewBuiltin("floor", "math", "Largest integer not greater than x.", oneArg("floor", math.Floor)),
		"ceil":  r.NewBuiltin("ceil", "math", "Smallest integer not less than x.", oneArg("ceil", math.Ceil)),
		"sin":   r.NewBuiltin("sin", "math", "Sine of x radians.", oneArg("sin", math.Sin)),
		"cos":   r.NewBuiltin("cos", "math", "Cosine of x radians.", oneArg("cos", math.Cos)),
		"log":   r.NewBuiltin("log", "math", "Natural logarithm of x.", oneArg("log", math.Log)),
		"pi":    r.NewFloat(math.Pi),
		"e":     r.NewFloat(math.E),
	}
	for name, value := range values {
		err := dict.SetString(r, name, value)
		value.Decref()
		if err != nil {
			moduleObj.Decref()
			return nil, err
		}
	}
	return moduleObj, nil
}
