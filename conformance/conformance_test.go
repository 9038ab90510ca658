package conformance

import (
	"testing"
)

func TestConformance(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("No tests loaded")
	}

	runner := NewRunner(nil)
	results := runner.RunAll(tests)

	fileGroups := make(map[string][]TestResult)
	var files []string
	for _, result := range results {
		if _, ok := fileGroups[result.Test.File]; !ok {
			files = append(files, result.Test.File)
		}
		fileGroups[result.Test.File] = append(fileGroups[result.Test.File], result)
	}

	for _, file := range files {
		fileResults := fileGroups[file]
		t.Run(file, func(t *testing.T) {
			for _, result := range fileResults {
				result := result
				t.Run(result.Test.Test.Name, func(t *testing.T) {
					if result.Skipped {
						t.Skipf("Skipped: %s", result.SkipReason)
					} else if !result.Passed {
						t.Errorf("Test failed: %v", result.Error)
					}
				})
			}
		})
	}

	t.Logf("%s", FormatStats(ComputeStats(results)))
}

func TestLoadAllTests(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}

	files := make(map[string]bool)
	for _, test := range tests {
		files[test.File] = true
		if test.Test.Script == "" {
			t.Errorf("%s: %s has no script", test.File, test.Test.Name)
		}
	}
	if len(files) < 5 {
		t.Errorf("found %d suite files, want at least 5", len(files))
	}
}

func TestSplitVar(t *testing.T) {
	tests := []struct {
		key   string
		name  string
		index int
	}{
		{"gold", "gold", 0},
		{"@arr[3]", "@arr", 3},
		{"$names$[127]", "$names$", 127},
		{"odd[x]", "odd[x]", 0},
	}
	for _, tt := range tests {
		name, index := splitVar(tt.key)
		if name != tt.name || index != tt.index {
			t.Errorf("splitVar(%q) = %q, %d", tt.key, name, index)
		}
	}
}

func TestRunnerReportsFailures(t *testing.T) {
	suite := &TestSuite{Name: "self"}
	tests := []TestCase{
		{Name: "wrong var", Script: "{ @x = 1; }", Expect: Expectation{Vars: map[string]interface{}{"@x": 2}}},
		{Name: "wrong state", Script: "{ next; }"},
		{Name: "unexpected error", Script: "{ @x = 1 / 0; }"},
		{Name: "missing compile error", Script: "{ }", Expect: Expectation{CompileError: "boom"}},
		{Name: "extra input", Script: "{ }", Inputs: []interface{}{1}},
	}
	runner := NewRunner(nil)
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			res := runner.Run(LoadedTest{File: "inline", Suite: suite, Test: tc})
			if res.Passed {
				t.Error("expected a failure")
			}
		})
	}
}
