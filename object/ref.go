package object

// Ref is a typed handle: an object whose payload is statically known to be
// T. It is obtained by downcasting an *Object with As.
type Ref[T Payload] struct {
	obj     *Object
	payload T
}

// Object returns the untyped handle.
func (r Ref[T]) Object() *Object {
	return r.obj
}

// Payload returns the typed payload.
func (r Ref[T]) Payload() T {
	return r.payload
}

// As downcasts an object handle to a typed handle. The check is an O(1)
// payload type comparison. On failure the original handle is untouched and
// still usable, so callers can try alternate downcasts or report a type
// error using the object's own repr.
func As[T Payload](o *Object) (Ref[T], bool) {
	payload, ok := o.payload.(T)
	if !ok {
		return Ref[T]{}, false
	}
	return Ref[T]{obj: o, payload: payload}, true
}

// PayloadOf returns the object's payload as T, without wrapping it in a Ref.
func PayloadOf[T Payload](o *Object) (T, bool) {
	payload, ok := o.payload.(T)
	return payload, ok
}
