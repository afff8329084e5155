package object

import (
	"fmt"
	"strings"
)

// linearizeMRO computes the C3 linearization for a type with the given
// bases. The result starts with the type itself and merges the bases'
// linearizations with the base list, preserving local precedence order. An
// inconsistent hierarchy yields an error rather than an arbitrary order.
func linearizeMRO(t *Type, bases []*Type) ([]*Type, error) {
	if len(bases) == 0 {
		return []*Type{t}, nil
	}
	seqs := make([][]*Type, 0, len(bases)+1)
	for _, b := range bases {
		mro := make([]*Type, len(b.mro))
		copy(mro, b.mro)
		seqs = append(seqs, mro)
	}
	baseList := make([]*Type, len(bases))
	copy(baseList, bases)
	seqs = append(seqs, baseList)

	result := []*Type{t}
	for {
		seqs = pruneEmpty(seqs)
		if len(seqs) == 0 {
			return result, nil
		}
		head := pickHead(seqs)
		if head == nil {
			return nil, fmt.Errorf(
				"cannot create a consistent method resolution order for bases %s",
				baseNames(bases))
		}
		result = append(result, head)
		for i, seq := range seqs {
			if len(seq) > 0 && seq[0] == head {
				seqs[i] = seq[1:]
			}
		}
	}
}

// pickHead finds the first sequence head that does not appear in the tail
// of any sequence. A nil result means the hierarchy is inconsistent.
func pickHead(seqs [][]*Type) *Type {
	for _, seq := range seqs {
		head := seq[0]
		if !inAnyTail(head, seqs) {
			return head
		}
	}
	return nil
}

func inAnyTail(t *Type, seqs [][]*Type) bool {
	for _, seq := range seqs {
		for _, cand := range seq[1:] {
			if cand == t {
				return true
			}
		}
	}
	return false
}

func pruneEmpty(seqs [][]*Type) [][]*Type {
	out := seqs[:0]
	for _, seq := range seqs {
		if len(seq) > 0 {
			out = append(out, seq)
		}
	}
	return out
}

func baseNames(bases []*Type) string {
	names := make([]string, len(bases))
	for i, b := range bases {
		names[i] = b.name
	}
	return strings.Join(names, ", ")
}
