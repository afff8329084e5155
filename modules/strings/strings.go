// Package strings provides the strings adapter module.
package strings

import (
	"context"
	"strings"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

func asString(r *object.Registry, fn string, o *object.Object) (string, error) {
	p, ok := object.PayloadOf[*object.Str](o)
	if !ok {
		return "", r.Raise(errz.ErrType,
			"strings.%s: argument must be a string, not '%s'", fn, o.TypeName())
	}
	return p.Value(), nil
}

func transform(fn string, impl func(string) string) object.GoFunc {
	return func(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
		if len(args) != 1 {
			return nil, r.Raise(errz.ErrType, "strings.%s: expected 1 argument, got %d", fn, len(args))
		}
		s, err := asString(r, fn, args[0])
		if err != nil {
			return nil, err
		}
		return r.NewStr(impl(s)), nil
	}
}

func Split(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 2 {
		return nil, r.Raise(errz.ErrType, "strings.split: expected 2 arguments, got %d", len(args))
	}
	s, err := asString(r, "split", args[0])
	if err != nil {
		return nil, err
	}
	sep, err := asString(r, "split", args[1])
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	items := make([]*object.Object, len(parts))
	for i, part := range parts {
		items[i] = r.NewStr(part)
	}
	listObj := r.NewList(items)
	for _, item := range items {
		item.Decref()
	}
	return listObj, nil
}

func Join(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 2 {
		return nil, r.Raise(errz.ErrType, "strings.join: expected 2 arguments, got %d", len(args))
	}
	sep, err := asString(r, "join", args[0])
	if err != nil {
		return nil, err
	}
	items, err := r.Collect(args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	for i, item := range items {
		p, ok := object.PayloadOf[*object.Str](item)
		if !ok {
			for _, o := range items {
				o.Decref()
			}
			return nil, r.Raise(errz.ErrType,
				"strings.join: sequence item %d is not a string", i)
		}
		parts[i] = p.Value()
	}
	for _, o := range items {
		o.Decref()
	}
	return r.NewStr(strings.Join(parts, sep)), nil
}

func Contains(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 2 {
		return nil, r.Raise(errz.ErrType, "strings.contains: expected 2 arguments, got %d", len(args))
	}
	s, err := asString(r, "contains", args[0])
	if err != nil {
		return nil, err
	}
	sub, err := asString(r, "contains", args[1])
	if err != nil {
		return nil, err
	}
	return r.NewBool(strings.Contains(s, sub)), nil
}

func Replace(ctx context.Context, r *object.Registry, args []*object.Object, kwargs map[string]*object.Object) (*object.Object, error) {
	if len(args) != 3 {
		return nil, r.Raise(errz.ErrType, "strings.replace: expected 3 arguments, got %d", len(args))
	}
	s, err := asString(r, "replace", args[0])
	if err != nil {
		return nil, err
	}
	old, err := asString(r, "replace", args[1])
	if err != nil {
		return nil, err
	}
	new_, err := asString(r, "replace", args[2])
	if err != nil {
		return nil, err
	}
	return r.NewStr(strings.ReplaceAll(s, old, new_)), nil
}

// Module builds the strings module object. The caller owns the returned
// reference.
func Module(r *object.Registry) (*object.Object, error) {
	moduleObj := r.NewModule("strings", "")
	mod, _ := object.PayloadOf[*object.Module](moduleObj)
	dict := mod.Dict()

	values := map[string]*object.Object{
		"upper":    r.NewBuiltin("upper", "strings", "Uppercase copy of s.", transform("upper", strings.ToUpper)),
		"lower":    r.NewBuiltin("lower", "strings", "Lowercase copy of s.", transform("lower", strings.ToLower)),
		"strip":    r.NewBuiltin("strip", "strings", "Copy of s without surrounding whitespace.", transform("strip", strings.TrimSpace)),
		"split":    r.NewBuiltin("split", "strings", "Split s by a separator.", Split),
		"join":     r.NewBuiltin("join", "strings", "Join strings with a separator.", Join),
		"contains": r.NewBuiltin("contains", "strings", "Report whether s contains a substring.", Contains),
		"replace":  r.NewBuiltin("replace", "strings", "Replace occurrences of a substring.", Replace),
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
