// Package object provides the Serpent object model: reference-counted heap
// cells, the type system with C3 method resolution, slot-based dispatch for
// operator syntax, weak references, and an optional cycle collector.
//
// Every language-level value is an *Object: one allocation holding an atomic
// strong-reference count, a pointer to its *Type, an optional instance dict,
// and a type-erased payload. Typed access goes through As[T], an O(1)
// payload check that never loses the original handle.
//
// Types themselves are objects (their payload is *Type, their type is the
// registry's Type type), which makes the two roots of the hierarchy
// mutually self-referential. NewRegistry performs the two-phase bootstrap
// that creates them.
//
// Standard-library adapter modules construct values exclusively through the
// Registry's New* primitives and raise errors through Registry.Raise; they
// never touch the refcount header or MRO machinery directly.
package object
