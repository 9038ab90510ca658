package builtins

import (
	"testing"

	"athena/types"
)

func TestCheckArgs(t *testing.T) {
	tests := []struct {
		sig   string
		count int
		want  bool
	}{
		{"ii", 1, false},
		{"ii", 2, true},
		{"ii", 3, false},
		{"i*i", 0, false},
		{"i*i", 1, true},
		{"i*i", 5, true},
		{"s*", 0, false},
		{"*s", 0, true},
		{"*s", 1, true},
		{"*s", 2, true},
		{"*ss", 1, true},
		{"*ss", 2, true},
		{"", 0, true},
		{"", 1, false},
		{"", 2, false},
	}
	for _, tt := range tests {
		if got := CheckArgs(tt.sig, tt.count); got != tt.want {
			t.Errorf("CheckArgs(%q, %d) = %v, want %v", tt.sig, tt.count, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	id, ok := r.GetID("MES")
	if !ok {
		t.Fatal("mes not registered")
	}
	b, _ := r.At(id)
	if b.Name != "mes" || b.Signature != "s" {
		t.Errorf("got %+v", b)
	}

	again := r.Register("mes", "s*", builtinMes)
	if again != id {
		t.Errorf("re-registering moved id %d to %d", id, again)
	}
	if _, err := r.CallByID(len(r.All()), newFakeScript(), nil); errCode(err) != types.E_FUNC {
		t.Errorf("unknown id: got %v", err)
	}
	if r.Has("nosuchbuiltin") {
		t.Error("Has reported an unregistered builtin")
	}
}
