package object

import (
	"github.com/deepnoodle-ai/serpent/errz"
)

// genericGetAttr implements the default attribute protocol: the instance
// dict shadows the type, and values found on the type are run through their
// descriptor-get slot so callables bind to the instance.
func genericGetAttr(r *Registry, o *Object, name string) (*Object, error) {
	if d, ok := o.InstanceDict(); ok {
		v, found, err := d.GetString(r, name)
		if err != nil {
			return nil, err
		}
		if found {
			return v.Incref(), nil
		}
	}
	if v, owner, ok := o.TypeOf().GetAttr(name); ok {
		if fn := v.TypeOf().descGetSlot(); fn != nil {
			return fn(r, v, o, owner.Obj())
		}
		return v.Incref(), nil
	}
	return nil, r.Raise(errz.ErrAttribute,
		"'%s' object has no attribute '%s'", o.TypeName(), name)
}

// genericSetAttr stores into the instance dict, creating it on first use.
func genericSetAttr(r *Registry, o *Object, name string, value *Object) error {
	return o.ensureDict().SetString(r, name, value)
}

// genericDelAttr removes from the instance dict.
func genericDelAttr(r *Registry, o *Object, name string) error {
	if d, ok := o.InstanceDict(); ok {
		found, err := d.DeleteString(r, name)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return r.Raise(errz.ErrAttribute,
		"'%s' object has no attribute '%s'", o.TypeName(), name)
}

// GetAttr looks up an attribute through the object's get-attribute slot.
func (r *Registry) GetAttr(o *Object, name string) (*Object, error) {
	if fn := o.TypeOf().getAttrSlot(); fn != nil {
		return fn(r, o, name)
	}
	return genericGetAttr(r, o, name)
}

// SetAttr stores an attribute through the object's set-attribute slot.
func (r *Registry) SetAttr(o *Object, name string, value *Object) error {
	if fn := o.TypeOf().setAttrSlot(); fn != nil {
		return fn(r, o, name, value)
	}
	return genericSetAttr(r, o, name, value)
}

// DelAttr deletes an attribute through the object's del-attribute slot.
func (r *Registry) DelAttr(o *Object, name string) error {
	if fn := o.TypeOf().delAttrSlot(); fn != nil {
		return fn(r, o, name)
	}
	return genericDelAttr(r, o, name)
}
