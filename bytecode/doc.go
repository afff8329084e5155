// Package bytecode defines the compiled representation of Serpent code.
//
// A Code object is a self-contained, immutable description of one compiled
// unit (a module body or a function body): a flat instruction stream with
// inline operands, a constant pool, name tables, parameter metadata, and a
// parallel source-location table used for error reporting.
//
// Code objects are produced once by a compiler (or by a Builder, for tests
// and embedding) and then shared read-only by every invocation of the unit
// they describe. The serialized form produced by Marshal is the sole
// artifact that crosses the compiler/interpreter boundary.
package bytecode
