package bytecode

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/shamaton/msgpack/v2"

	"github.com/deepnoodle-ai/serpent/errz"
	"github.com/deepnoodle-ai/serpent/op"
)

// Wire format: a 4-byte magic token, a format version byte, then a msgpack
// document holding every code object in the tree, flattened parents-first.
// The magic/version pair is the compatibility token required at the
// compiler/interpreter boundary.
var wireMagic = []byte("SNBC")

// WireVersion is the current serialization format version.
const WireVersion byte = 1

// Serialization shapes. Constants are encoded as tagged unions; nested code
// objects are referenced by index into the flattened codes array.

type constantDef struct {
	Type    string        `msgpack:"type"`
	Bool    bool          `msgpack:"bool"`
	Int     string        `msgpack:"int"` // big.Int text
	Float   float64       `msgpack:"float"`
	Real    float64       `msgpack:"real"`
	Imag    float64       `msgpack:"imag"`
	Str     string        `msgpack:"str"`
	Bytes   []byte        `msgpack:"bytes"`
	Items   []constantDef `msgpack:"items"`
	CodeIdx int           `msgpack:"code_idx"`
}

type locationDef struct {
	Line      int    `msgpack:"line"`
	Column    int    `msgpack:"column"`
	SpanStart uint32 `msgpack:"span_start"`
	SpanEnd   uint32 `msgpack:"span_end"`
	Source    string `msgpack:"source"`
}

type paramsDef struct {
	Positional []string `msgpack:"positional"`
	VarArgs    string   `msgpack:"var_args"`
	HasVarArgs bool     `msgpack:"has_var_args"`
	KwOnly     []string `msgpack:"kw_only"`
	KwArgs     string   `msgpack:"kw_args"`
	HasKwArgs  bool     `msgpack:"has_kw_args"`
}

type codeDef struct {
	ID           string         `msgpack:"id"`
	Name         string         `msgpack:"name"`
	Filename     string         `msgpack:"filename"`
	FirstLine    int            `msgpack:"first_line"`
	IsGenerator  bool           `msgpack:"is_generator"`
	Instructions []uint16       `msgpack:"instructions"`
	Constants    []constantDef  `msgpack:"constants"`
	Names        []string       `msgpack:"names"`
	VarNames     []string       `msgpack:"var_names"`
	FreeNames    []string       `msgpack:"free_names"`
	CellNames    []string       `msgpack:"cell_names"`
	Params       paramsDef      `msgpack:"params"`
	Locations    []locationDef  `msgpack:"locations"`
	Labels       map[uint16]int `msgpack:"labels"`
}

type codeState struct {
	Codes []codeDef `msgpack:"codes"`
}

// Marshal converts a Code object into its versioned binary representation.
func Marshal(code *Code) ([]byte, error) {
	state, err := stateFromCode(code)
	if err != nil {
		return nil, err
	}
	payload, err := msgpack.Marshal(state)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(wireMagic)
	buf.WriteByte(WireVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Unmarshal converts a binary representation back into a Code object.
// The magic token and version are checked before any decoding happens.
func Unmarshal(data []byte) (*Code, error) {
	if len(data) < len(wireMagic)+1 {
		return nil, fmt.Errorf("bytecode data too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(wireMagic)], wireMagic) {
		return nil, fmt.Errorf("bad bytecode magic token")
	}
	version := data[len(wireMagic)]
	if version != WireVersion {
		return nil, fmt.Errorf("unsupported bytecode version %d (want %d)", version, WireVersion)
	}
	var state codeState
	if err := msgpack.Unmarshal(data[len(wireMagic)+1:], &state); err != nil {
		return nil, err
	}
	return codeFromState(&state)
}

func stateFromCode(code *Code) (*codeState, error) {
	allCodes := code.Flatten()
	indexByCode := make(map[*Code]int, len(allCodes))
	for i, c := range allCodes {
		indexByCode[c] = i
	}

	state := &codeState{Codes: make([]codeDef, len(allCodes))}
	for i, c := range allCodes {
		constants := make([]constantDef, c.ConstantCount())
		for j := 0; j < c.ConstantCount(); j++ {
			def, err := marshalConstant(c.ConstantAt(j), indexByCode)
			if err != nil {
				return nil, err
			}
			constants[j] = def
		}

		instructions := make([]uint16, c.InstructionCount())
		for j := 0; j < c.InstructionCount(); j++ {
			instructions[j] = uint16(c.InstructionAt(j))
		}

		locations := make([]locationDef, c.LocationCount())
		for j := 0; j < c.LocationCount(); j++ {
			loc := c.LocationAt(j)
			locations[j] = locationDef{
				Line:      loc.Line,
				Column:    loc.Column,
				SpanStart: loc.Span.Start,
				SpanEnd:   loc.Span.End,
				Source:    loc.Source,
			}
		}

		labels := make(map[uint16]int, c.LabelCount())
		for label, offset := range c.Labels() {
			labels[uint16(label)] = offset
		}

		names := make([]string, c.NameCount())
		for j := 0; j < c.NameCount(); j++ {
			names[j] = c.NameAt(j)
		}
		varNames := make([]string, c.LocalCount())
		for j := 0; j < c.LocalCount(); j++ {
			varNames[j] = c.LocalNameAt(j)
		}
		freeNames := make([]string, c.FreeCount())
		for j := 0; j < c.FreeCount(); j++ {
			freeNames[j] = c.FreeNameAt(j)
		}
		cellNames := make([]string, c.CellCount())
		for j := 0; j < c.CellCount(); j++ {
			cellNames[j] = c.CellNameAt(j)
		}

		params := c.Params()
		state.Codes[i] = codeDef{
			ID:           c.ID(),
			Name:         c.Name(),
			Filename:     c.Filename(),
			FirstLine:    c.FirstLine(),
			IsGenerator:  c.IsGenerator(),
			Instructions: instructions,
			Constants:    constants,
			Names:        names,
			VarNames:     varNames,
			FreeNames:    freeNames,
			CellNames:    cellNames,
			Params: paramsDef{
				Positional: params.Positional,
				VarArgs:    params.VarArgs,
				HasVarArgs: params.HasVarArgs,
				KwOnly:     params.KwOnly,
				KwArgs:     params.KwArgs,
				HasKwArgs:  params.HasKwArgs,
			},
			Locations: locations,
			Labels:    labels,
		}
	}
	return state, nil
}

func marshalConstant(c Constant, indexByCode map[*Code]int) (constantDef, error) {
	switch c := c.(type) {
	case IntConst:
		return constantDef{Type: "int", Int: c.Value.Text(10)}, nil
	case FloatConst:
		return constantDef{Type: "float", Float: c.Value}, nil
	case ComplexConst:
		return constantDef{Type: "complex", Real: c.Real, Imag: c.Imag}, nil
	case BoolConst:
		return constantDef{Type: "bool", Bool: c.Value}, nil
	case StrConst:
		return constantDef{Type: "str", Str: c.Value}, nil
	case BytesConst:
		return constantDef{Type: "bytes", Bytes: c.Value}, nil
	case TupleConst:
		items := make([]constantDef, len(c.Items))
		for i, item := range c.Items {
			def, err := marshalConstant(item, indexByCode)
			if err != nil {
				return constantDef{}, err
			}
			items[i] = def
		}
		return constantDef{Type: "tuple", Items: items}, nil
	case CodeConst:
		idx, ok := indexByCode[c.Code]
		if !ok {
			return constantDef{}, fmt.Errorf("code constant %q not in flattened tree", c.Code.Name())
		}
		return constantDef{Type: "code", CodeIdx: idx}, nil
	case NoneConst:
		return constantDef{Type: "none"}, nil
	case EllipsisConst:
		return constantDef{Type: "ellipsis"}, nil
	default:
		return constantDef{}, fmt.Errorf("unsupported constant type: %T", c)
	}
}

func codeFromState(state *codeState) (*Code, error) {
	if len(state.Codes) == 0 {
		return nil, fmt.Errorf("empty code state")
	}
	// Build bottom-up: in the flattened representation children always come
	// after their parent, so reversing builds children first.
	codes := make([]*Code, len(state.Codes))
	for i := len(state.Codes) - 1; i >= 0; i-- {
		def := state.Codes[i]

		constants := make([]Constant, len(def.Constants))
		for j, cdef := range def.Constants {
			c, err := unmarshalConstant(cdef, codes, i)
			if err != nil {
				return nil, err
			}
			constants[j] = c
		}

		instructions := make([]op.Code, len(def.Instructions))
		for j, word := range def.Instructions {
			instructions[j] = op.Code(word)
		}

		locations := make([]errz.SourceLocation, len(def.Locations))
		for j, loc := range def.Locations {
			locations[j] = errz.SourceLocation{
				Line:   loc.Line,
				Column: loc.Column,
				Span:   errz.Span{Start: loc.SpanStart, End: loc.SpanEnd},
				Source: loc.Source,
			}
		}

		labels := make(map[Label]int, len(def.Labels))
		for label, offset := range def.Labels {
			labels[Label(label)] = offset
		}

		codes[i] = NewCode(CodeParams{
			ID:           def.ID,
			Name:         def.Name,
			Filename:     def.Filename,
			FirstLine:    def.FirstLine,
			IsGenerator:  def.IsGenerator,
			Instructions: instructions,
			Constants:    constants,
			Names:        def.Names,
			VarNames:     def.VarNames,
			FreeNames:    def.FreeNames,
			CellNames:    def.CellNames,
			Params: Params{
				Positional: def.Params.Positional,
				VarArgs:    def.Params.VarArgs,
				HasVarArgs: def.Params.HasVarArgs,
				KwOnly:     def.Params.KwOnly,
				KwArgs:     def.Params.KwArgs,
				HasKwArgs:  def.Params.HasKwArgs,
			},
			Locations: locations,
			Labels:    labels,
		})
	}
	return codes[0], nil
}

func unmarshalConstant(def constantDef, codes []*Code, parentIdx int) (Constant, error) {
	switch def.Type {
	case "int":
		value, ok := new(big.Int).SetString(def.Int, 10)
		if !ok {
			return nil, fmt.Errorf("invalid int constant %q", def.Int)
		}
		return IntConst{Value: value}, nil
	case "float":
		return FloatConst{Value: def.Float}, nil
	case "complex":
		return ComplexConst{Real: def.Real, Imag: def.Imag}, nil
	case "bool":
		return BoolConst{Value: def.Bool}, nil
	case "str":
		return StrConst{Value: def.Str}, nil
	case "bytes":
		return BytesConst{Value: def.Bytes}, nil
	case "tuple":
		items := make([]Constant, len(def.Items))
		for i, item := range def.Items {
			c, err := unmarshalConstant(item, codes, parentIdx)
			if err != nil {
				return nil, err
			}
			items[i] = c
		}
		return TupleConst{Items: items}, nil
	case "code":
		if def.CodeIdx <= parentIdx || def.CodeIdx >= len(codes) {
			return nil, fmt.Errorf("code constant index %d out of range", def.CodeIdx)
		}
		child := codes[def.CodeIdx]
		if child == nil {
			return nil, fmt.Errorf("code constant index %d not yet built", def.CodeIdx)
		}
		return CodeConst{Code: child}, nil
	case "none":
		return NoneConst{}, nil
	case "ellipsis":
		return EllipsisConst{}, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %q", def.Type)
	}
}
