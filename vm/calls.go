package vm

import (
	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/object"
)

// bindArguments fills the frame's local slots from a call's positional and
// keyword arguments, applying the function's defaults. Local slot layout
// follows parameter declaration order: positional parameters, *args,
// keyword-only parameters, **kwargs.
func (m *VM) bindArguments(f *Frame, fn *object.Function, args []*object.Object, kwargs map[string]*object.Object) error {
	r := m.registry
	params := f.code.Params()
	npos := len(params.Positional)

	varArgsIdx := -1
	kwOnlyBase := npos
	if params.HasVarArgs {
		varArgsIdx = npos
		kwOnlyBase = npos + 1
	}
	kwArgsIdx := -1
	if params.HasKwArgs {
		kwArgsIdx = kwOnlyBase + len(params.KwOnly)
	}

	// Positional arguments fill positional slots; the overflow goes to
	// *args or is an error.
	bound := len(args)
	if bound > npos {
		bound = npos
	}
	for i := 0; i < bound; i++ {
		f.setLocal(i, args[i].Incref())
	}
	if len(args) > npos {
		if !params.HasVarArgs {
			return r.Raise(errz.ErrType,
				"%s() takes %d positional arguments but %d were given",
				fn.Name(), npos, len(args))
		}
		f.setLocal(varArgsIdx, r.NewTuple(args[npos:]))
	} else if params.HasVarArgs {
		f.setLocal(varArgsIdx, r.NewTuple(nil))
	}

	// Keyword arguments bind by name; unknown names spill into **kwargs.
	var extra *object.Object
	if params.HasKwArgs {
		extra = r.NewDict()
	}
	for name, value := range kwargs {
		if idx, ok := paramIndex(params.Positional, name); ok {
			if f.locals[idx] != nil {
				if extra != nil {
					extra.Decref()
				}
				return r.Raise(errz.ErrType,
					"%s() got multiple values for argument '%s'", fn.Name(), name)
			}
			f.setLocal(idx, value.Incref())
			continue
		}
		if idx, ok := paramIndex(params.KwOnly, name); ok {
			f.setLocal(kwOnlyBase+idx, value.Incref())
			continue
		}
		if extra != nil {
			d, _ := object.PayloadOf[*object.Dict](extra)
			key := r.NewStr(name)
			err := d.Set(r, key, value)
			key.Decref()
			if err != nil {
				extra.Decref()
				return err
			}
			continue
		}
		return r.Raise(errz.ErrType,
			"%s() got an unexpected keyword argument '%s'", fn.Name(), name)
	}
	if extra != nil {
		f.setLocal(kwArgsIdx, extra)
	}

	// Defaults cover trailing positional parameters.
	defaults := fn.Defaults()
	defaultBase := npos - len(defaults)
	for i := 0; i < npos; i++ {
		if f.locals[i] != nil {
			continue
		}
		if i >= defaultBase {
			f.setLocal(i, defaults[i-defaultBase].Incref())
			continue
		}
		return r.Raise(errz.ErrType,
			"%s() missing required positional argument: '%s'",
			fn.Name(), params.Positional[i])
	}

	kwDefaults := fn.KwDefaults()
	for i, name := range params.KwOnly {
		idx := kwOnlyBase + i
		if f.locals[idx] != nil {
			continue
		}
		if d, ok := kwDefaults[name]; ok {
			f.setLocal(idx, d.Incref())
			continue
		}
		return r.Raise(errz.ErrType,
			"%s() missing required keyword-only argument: '%s'", fn.Name(), name)
	}
	return nil
}

func paramIndex(names []string, name string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
