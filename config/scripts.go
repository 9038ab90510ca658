package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"athena/symbols"
	"athena/vm"

	"gopkg.in/yaml.v3"
)

// Script is a script body with the file line its first line sits on
type Script struct {
	Source string
	Line   int
}

// UnmarshalYAML records where the scalar's text starts
func (s *Script) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: script must be a string", n.Line)
	}
	s.Source = n.Value
	s.Line = n.Line
	if n.Style == yaml.LiteralStyle || n.Style == yaml.FoldedStyle {
		s.Line++ // block scalars start below the indicator
	}
	return nil
}

// Constants is the constants/params file registered at startup
type Constants struct {
	Constants map[string]int64  `yaml:"constants"`
	Params    map[string]int64  `yaml:"params"`
	Functions map[string]Script `yaml:"functions"` // reached with callfunc
}

// LoadConstants reads a constants file
func LoadConstants(path string) (*Constants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constants: %w", err)
	}
	var c Constants
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Register interns every constant and param into t
func (c *Constants) Register(t *symbols.Table) error {
	for _, name := range sortedKeys(c.Constants) {
		if _, err := t.DefineConstant(name, c.Constants[name]); err != nil {
			return fmt.Errorf("constant %s: %w", name, err)
		}
	}
	for _, name := range sortedKeys(c.Params) {
		if _, err := t.DefineParam(name, c.Params[name]); err != nil {
			return fmt.Errorf("param %s: %w", name, err)
		}
	}
	return nil
}

// DefineFunctions compiles every function and registers it with eng
func (c *Constants) DefineFunctions(eng *vm.Engine) error {
	names := make([]string, 0, len(c.Functions))
	for name := range c.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn := c.Functions[name]
		prog, err := eng.CompileNamed(name, fn.Source, fn.Line)
		if err != nil {
			return fmt.Errorf("function %s: %w", name, err)
		}
		eng.DefineFunction(name, prog)
	}
	return nil
}

// NPCDef describes one NPC a client can talk to
type NPCDef struct {
	Name   string `yaml:"name"`
	ID     int    `yaml:"id"`
	Script Script `yaml:"script"`
	File   string `yaml:"file"` // script file, relative to the NPC file
}

type npcFile struct {
	NPCs []NPCDef `yaml:"npcs"`
}

// LoadNPCs reads the NPC definitions at path. Scripts given by file are
// read in, and start at line 1 of that file.
func LoadNPCs(path string) ([]NPCDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read npcs: %w", err)
	}
	var f npcFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	seen := make(map[int]string)
	for i := range f.NPCs {
		d := &f.NPCs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("%s: npc %d has no name", path, i)
		}
		if d.ID <= 0 {
			return nil, fmt.Errorf("%s: npc %s needs a positive id", path, d.Name)
		}
		if other, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("%s: npc %s reuses id %d of %s", path, d.Name, d.ID, other)
		}
		seen[d.ID] = d.Name

		switch {
		case d.File != "" && d.Script.Source != "":
			return nil, fmt.Errorf("%s: npc %s has both script and file", path, d.Name)
		case d.File != "":
			file := d.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(filepath.Dir(path), file)
			}
			src, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("npc %s: %w", d.Name, err)
			}
			d.Script = Script{Source: string(src), Line: 1}
		case d.Script.Source == "":
			return nil, fmt.Errorf("%s: npc %s has no script", path, d.Name)
		}
	}
	return f.NPCs, nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
