package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"scrape", "dispatch", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatalf("expected persistent --config flag")
	}
	scrape, _, _ := root.Find([]string{"scrape"})
	if scrape.Flags().Lookup("workspace") == nil {
		t.Fatalf("expected --workspace flag on scrape")
	}
}

func TestArgumentValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"dispatch without id", []string{"dispatch"}, "accepts 1 arg"},
		{"scrape with positional", []string{"scrape", "extra"}, "unknown command"},
		{"migrate with positional", []string{"migrate", "extra"}, "unknown command"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tc.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]int{"inserted": 3}); err != nil {
		t.Fatalf("printJSON: %v", err)
	}
	if got := buf.String(); got != "{\n  \"inserted\": 3\n}\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
