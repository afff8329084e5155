package object

// Bool is the payload of the two boolean singletons.
type Bool struct {
	value bool
}

func (b *Bool) PayloadKind() string { return "bool" }

// Value returns the underlying bool.
func (b *Bool) Value() bool { return b.value }

func (b *Bool) String() string {
	if b.value {
		return "True"
	}
	return "False"
}

// NoneType is the payload of the None singleton.
type NoneType struct{}

func (NoneType) PayloadKind() string { return "NoneType" }

// EllipsisType is the payload of the Ellipsis singleton.
type EllipsisType struct{}

func (EllipsisType) PayloadKind() string { return "ellipsis" }

// NotImplementedType is the payload of the NotImplemented singleton,
// returned by binary slots to defer to the other operand.
type NotImplementedType struct{}

func (NotImplementedType) PayloadKind() string { return "NotImplementedType" }
