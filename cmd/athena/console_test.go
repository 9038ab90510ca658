package main

import (
	"bytes"
	"strings"
	"testing"

	"athena/db"
	"athena/types"
	"athena/vm"
)

func TestConsoleDrive(t *testing.T) {
	store := db.NewStore(nil, nil)
	var out bytes.Buffer
	host := newConsoleHost(strings.NewReader("\n42\n2\n"), &out)
	eng, err := vm.NewEngine(vm.Options{Vars: store, Host: host})
	if err != nil {
		t.Fatal(err)
	}
	prog, err := eng.Compile(`{
	mes "Hello";
	next;
	input @n;
	@c = select("Red:Blue");
	close;
}`, 1)
	if err != nil {
		t.Fatal(err)
	}
	st, err := eng.Start(prog, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := host.drive(eng, st); err != nil {
		t.Fatalf("drive: %v", err)
	}
	if st.Status != vm.StatusEnded || st.Err != nil {
		t.Fatalf("status %s err %v", st.Status, st.Err)
	}
	want := "Hello\n[next]\nnumber> 1) Red\n2) Blue\n[close]\n"
	if out.String() != want {
		t.Errorf("output %q, want %q", out.String(), want)
	}
	if v, _ := store.Get(1, "@n", 0); v != types.NewInt(42) {
		t.Errorf("@n = %v", v)
	}
	if v, _ := store.Get(1, "@c", 0); v != types.NewInt(2) {
		t.Errorf("@c = %v", v)
	}
}

func TestConsoleEOFKills(t *testing.T) {
	var out bytes.Buffer
	host := newConsoleHost(strings.NewReader(""), &out)
	eng, err := vm.NewEngine(vm.Options{Host: host})
	if err != nil {
		t.Fatal(err)
	}
	prog, err := eng.Compile("{ input @n; @after = 1; }", 1)
	if err != nil {
		t.Fatal(err)
	}
	st, _ := eng.Start(prog, 1, 0)
	if err := host.drive(eng, st); err != nil {
		t.Fatal(err)
	}
	if st.Status != vm.StatusEnded {
		t.Errorf("status %s after EOF", st.Status)
	}
}
