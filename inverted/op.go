package inverted

import (
	"fmt"
	"strings"
)

// Op is a set operation over tag bitmaps.
type Op uint8

const (
	// OpAnd intersects all posting sets.
	OpAnd Op = iota
	// OpOr unions all posting sets.
	OpOr
	// OpXor takes the symmetric difference across all posting sets.
	OpXor
	// OpAndNot subtracts the union of the remaining sets from the first.
	OpAndNot
)

func (op Op) String() string {
	switch op {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpXor:
		return "XOR"
	case OpAndNot:
		return "ANDNOT"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// ParseOp parses an operation name, case-insensitively.
func ParseOp(s string) (Op, error) {
	switch strings.ToUpper(s) {
	case "AND":
		return OpAnd, nil
	case "OR":
		return OpOr, nil
	case "XOR":
		return OpXor, nil
	case "ANDNOT":
		return OpAndNot, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", s)
	}
}
