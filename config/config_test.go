package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"athena/symbols"
	"athena/vm"
)

func TestDefaults(t *testing.T) {
	cfg, err := ParseBytes(nil)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if cfg.Script.ArgCount != "warning" || cfg.Script.MissingComma != "error" {
		t.Errorf("check levels = %q/%q", cfg.Script.ArgCount, cfg.Script.MissingComma)
	}
	if cfg.Script.MaxNesting != 256 || cfg.Script.StackLimit != 65536 || cfg.Script.TickLimit != 100000 {
		t.Errorf("limits = %+v", cfg.Script)
	}
	if cfg.Server.Listen != ":6121" || cfg.Storage.Driver != "memory" {
		t.Errorf("server/storage = %+v %+v", cfg.Server, cfg.Storage)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := ParseBytes([]byte(`
script:
  arg_count: off
  tick_limit: -1
storage:
  driver: sqlite
  dsn: vars.db
  checkpoint: 30s
log:
  level: debug
  development: true
trace:
  enabled: true
  filters: ["guide*"]
`))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if cfg.Script.MissingComma != "error" {
		t.Errorf("unset key lost its default: %q", cfg.Script.MissingComma)
	}
	if cfg.Storage.Checkpoint != 30*time.Second {
		t.Errorf("checkpoint = %v", cfg.Storage.Checkpoint)
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.ArgCount != vm.CheckOff || opts.MissingComma != vm.CheckError || opts.TickLimit != -1 {
		t.Errorf("engine options = %+v", opts)
	}
	if !cfg.Trace.Enabled || len(cfg.Trace.Filters) != 1 {
		t.Errorf("trace = %+v", cfg.Trace)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":        "script:\n  colour: red\n",
		"bad arg_count":      "script:\n  arg_count: loud\n",
		"comma off":          "script:\n  missing_comma: off\n",
		"bad driver":         "storage:\n  driver: redis\n",
		"sqlite without dsn": "storage:\n  driver: sqlite\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseBytes([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "athena.yaml")
	if err := os.WriteFile(path, []byte("server:\n  npcs: npcs.yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Path(cfg.Server.NPCs); got != filepath.Join(dir, "npcs.yaml") {
		t.Errorf("Path = %q", got)
	}
}

func TestConstants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constants.yaml")
	doc := `constants:
  MAX_LEVEL: 99
  Job_Novice: 0
params:
  Zeny: 20
functions:
  F_Double: |
    {
    	return getarg(0) * 2;
    }
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConstants(path)
	if err != nil {
		t.Fatalf("LoadConstants: %v", err)
	}
	if c.Functions["F_Double"].Line != 8 {
		t.Errorf("function line = %d, want 8", c.Functions["F_Double"].Line)
	}

	syms := symbols.NewTable()
	if err := c.Register(syms); err != nil {
		t.Fatalf("Register: %v", err)
	}
	id, ok := syms.Lookup("max_level")
	if !ok || syms.Get(id).Kind != symbols.KindConstant || syms.Get(id).Value != 99 {
		t.Errorf("MAX_LEVEL = %+v", syms.Get(id))
	}
	id, ok = syms.Lookup("Zeny")
	if !ok || syms.Get(id).Kind != symbols.KindParam || syms.Get(id).Value != 20 {
		t.Errorf("Zeny = %+v", syms.Get(id))
	}

	eng, err := vm.NewEngine(vm.Options{Symbols: syms})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.DefineFunctions(eng); err != nil {
		t.Fatalf("DefineFunctions: %v", err)
	}
	if _, ok := eng.Function("f_double"); !ok {
		t.Error("F_Double not registered")
	}
}

func TestLoadNPCs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "smith.txt"), []byte("{ mes \"Clang\"; close; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "npcs.yaml")
	doc := `npcs:
  - name: Guide
    id: 500
    script: |
      {
      	mes "Hi";
      }
  - name: Smith
    id: 501
    file: smith.txt
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	npcs, err := LoadNPCs(path)
	if err != nil {
		t.Fatalf("LoadNPCs: %v", err)
	}
	if len(npcs) != 2 {
		t.Fatalf("got %d npcs", len(npcs))
	}
	if npcs[0].Script.Line != 5 || !strings.Contains(npcs[0].Script.Source, `mes "Hi"`) {
		t.Errorf("Guide script = %+v", npcs[0].Script)
	}
	if npcs[1].Script.Line != 1 || !strings.Contains(npcs[1].Script.Source, "Clang") {
		t.Errorf("Smith script = %+v", npcs[1].Script)
	}
}

func TestLoadNPCsErrors(t *testing.T) {
	tests := map[string]string{
		"no name":      "npcs:\n  - id: 1\n    script: \"{}\"\n",
		"no id":        "npcs:\n  - name: A\n    script: \"{}\"\n",
		"duplicate id": "npcs:\n  - name: A\n    id: 1\n    script: \"{}\"\n  - name: B\n    id: 1\n    script: \"{}\"\n",
		"no script":    "npcs:\n  - name: A\n    id: 1\n",
		"both":         "npcs:\n  - name: A\n    id: 1\n    script: \"{}\"\n    file: a.txt\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "npcs.yaml")
			if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadNPCs(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSampleFiles(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "etc", "athena.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	consts, err := LoadConstants(cfg.Path(cfg.Script.Constants))
	if err != nil {
		t.Fatalf("LoadConstants: %v", err)
	}
	syms := symbols.NewTable()
	if err := consts.Register(syms); err != nil {
		t.Fatalf("Register: %v", err)
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatal(err)
	}
	opts.Symbols = syms
	eng, err := vm.NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := consts.DefineFunctions(eng); err != nil {
		t.Fatalf("DefineFunctions: %v", err)
	}

	npcs, err := LoadNPCs(cfg.Path(cfg.Server.NPCs))
	if err != nil {
		t.Fatalf("LoadNPCs: %v", err)
	}
	if len(npcs) == 0 {
		t.Fatal("no sample npcs")
	}
	for _, npc := range npcs {
		prog, err := eng.CompileNamed(npc.Name, npc.Script.Source, npc.Script.Line)
		if err != nil {
			t.Errorf("%s: %v", npc.Name, err)
			continue
		}
		if len(prog.Warnings) != 0 {
			t.Errorf("%s: warnings %v", npc.Name, prog.Warnings)
		}
	}
}
