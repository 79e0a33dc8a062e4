// Package main provides tests for the leaplineage CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaplineage/internal/cli"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "leaplineage") {
		t.Errorf("version output should contain 'leaplineage', got: %s", output)
	}
}

func TestHelpListsCommands(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help error = %v", err)
	}

	for _, want := range []string{"graph", "layout", "trace", "serve", "import", "history"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("help should mention %q", want)
		}
	}
}

func TestAdaptersRegistered(t *testing.T) {
	for _, name := range []string{"duckdb", "postgres", "sqlite"} {
		if !adapter.IsRegistered(name) {
			t.Errorf("adapter %q should be registered by main's imports", name)
		}
	}
}
