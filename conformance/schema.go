package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Constants   map[string]int64  `yaml:"constants,omitempty"`
	Params      map[string]int64  `yaml:"params,omitempty"`
	Functions   map[string]string `yaml:"functions,omitempty"` // reached with callfunc
	Options     Options           `yaml:"options,omitempty"`
	Tests       []TestCase        `yaml:"tests"`
}

// Options tunes the engine a test runs on
type Options struct {
	ArgCount     string `yaml:"arg_count,omitempty"`
	MissingComma string `yaml:"missing_comma,omitempty"`
	TickLimit    int    `yaml:"tick_limit,omitempty"`
	StackLimit   int    `yaml:"stack_limit,omitempty"`
}

// TestCase represents a single script run
type TestCase struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Skip        interface{}            `yaml:"skip,omitempty"` // bool or string
	Script      string                 `yaml:"script"`
	Actor       *int                   `yaml:"actor,omitempty"` // default 1; 0 runs without an actor
	Params      map[int64]int64        `yaml:"params,omitempty"`
	Vars        map[string]interface{} `yaml:"vars,omitempty"`   // "name" or "name[i]" set before the run
	Inputs      []interface{}          `yaml:"inputs,omitempty"` // one per suspension; null resumes a yield
	Options     *Options               `yaml:"options,omitempty"`
	Expect      Expectation            `yaml:"expect"`
}

// Expectation defines what a run must produce
type Expectation struct {
	Output       []string               `yaml:"output,omitempty"` // dialogue transcript
	Vars         map[string]interface{} `yaml:"vars,omitempty"`
	State        string                 `yaml:"state,omitempty"` // default ended
	Error        string                 `yaml:"error,omitempty"` // E_DIV, E_LABEL, etc.
	CompileError string                 `yaml:"compile_error,omitempty"`
	Warnings     []string               `yaml:"warnings,omitempty"`
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		return true, v
	}
	return false, ""
}

// merged returns the suite options overridden by the test's
func (o Options) merged(override *Options) Options {
	if override == nil {
		return o
	}
	if override.ArgCount != "" {
		o.ArgCount = override.ArgCount
	}
	if override.MissingComma != "" {
		o.MissingComma = override.MissingComma
	}
	if override.TickLimit != 0 {
		o.TickLimit = override.TickLimit
	}
	if override.StackLimit != 0 {
		o.StackLimit = override.StackLimit
	}
	return o
}
