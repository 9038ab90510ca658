package types

import "fmt"

// MaxArrayIndex is the largest index a variable reference can carry
const MaxArrayIndex = 127

// Ref is a deferred reference to a named variable, optionally indexed.
// Encoded as a single integer the index occupies the top 8 bits and the
// symbol ID the low 24 bits.
type Ref struct {
	ID    int
	Index int
}

// Type returns the type code for references
func (r Ref) Type() TypeCode {
	return TYPE_REF
}

// String returns a debug representation
func (r Ref) String() string {
	if r.Index == 0 {
		return fmt.Sprintf("ref(%d)", r.ID)
	}
	return fmt.Sprintf("ref(%d[%d])", r.ID, r.Index)
}

// Encode packs the reference into its integer form
func (r Ref) Encode() int64 {
	return int64(r.Index)<<24 | int64(r.ID&0xFFFFFF)
}

// DecodeRef unpacks the integer form of a reference
func DecodeRef(n int64) Ref {
	return Ref{ID: int(n & 0xFFFFFF), Index: int(n>>24) & 0xFF}
}

// WithIndex returns a copy of r addressing element idx
func (r Ref) WithIndex(idx int) (Ref, error) {
	if idx < 0 || idx > MaxArrayIndex {
		return r, fmt.Errorf("array index %d out of range 0..%d", idx, MaxArrayIndex)
	}
	return Ref{ID: r.ID, Index: idx}, nil
}

// LabelValue is a resolved bytecode position
type LabelValue struct {
	Pos int
}

// Type returns the type code for labels
func (l LabelValue) Type() TypeCode {
	return TYPE_LABEL
}

// String returns a debug representation
func (l LabelValue) String() string {
	return fmt.Sprintf("label(%d)", l.Pos)
}

// ArgMarker delimits the start of a call's argument list on the stack
type ArgMarker struct{}

// Type returns the type code for argument markers
func (ArgMarker) Type() TypeCode {
	return TYPE_ARGMARK
}

// String returns a debug representation
func (ArgMarker) String() string {
	return "arg"
}

// ScriptRef records which compiled program a caller was executing.
// Script holds a *vm.Program; it is an interface{} to avoid an import cycle.
type ScriptRef struct {
	Script interface{}
}

// Type returns the type code for script references
func (ScriptRef) Type() TypeCode {
	return TYPE_SCRIPT
}

// String returns a debug representation
func (ScriptRef) String() string {
	return "script"
}

// ReturnInfo is the resumption record on top of a call frame's linkage
type ReturnInfo struct {
	Pos int
}

// Type returns the type code for return records
func (ReturnInfo) Type() TypeCode {
	return TYPE_RETINFO
}

// String returns a debug representation
func (r ReturnInfo) String() string {
	return fmt.Sprintf("retinfo(%d)", r.Pos)
}
