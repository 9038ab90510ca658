package types

// TypeCode identifies the variant held by a Value
type TypeCode int

const (
	TYPE_INT      TypeCode = iota // integer
	TYPE_STR                      // owned (mutable) string
	TYPE_CONSTSTR                 // borrowed string living in the bytecode buffer
	TYPE_REF                      // deferred variable reference
	TYPE_LABEL                    // resolved jump target
	TYPE_ARGMARK                  // argument list boundary
	TYPE_SCRIPT                   // saved script buffer identity
	TYPE_RETINFO                  // saved resumption record
)

// String returns the string representation of the type code
func (t TypeCode) String() string {
	switch t {
	case TYPE_INT:
		return "INT"
	case TYPE_STR:
		return "STR"
	case TYPE_CONSTSTR:
		return "CONSTSTR"
	case TYPE_REF:
		return "REF"
	case TYPE_LABEL:
		return "LABEL"
	case TYPE_ARGMARK:
		return "ARG"
	case TYPE_SCRIPT:
		return "SCRIPT"
	case TYPE_RETINFO:
		return "RETINFO"
	default:
		return "UNKNOWN"
	}
}
