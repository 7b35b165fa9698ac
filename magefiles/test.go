//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the
// per-function summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// Bench runs the storage benchmarks.
func (Test) Bench() error {
	return sh.RunV(binGo, "test", "-run", "^$", "-bench", ".", "-benchmem", "./internal/sqlite/")
}

// Smoke builds the binary and drives it through a short session in a
// scratch directory.
func (Test) Smoke() error {
	mg.Deps(Build)

	scratch, err := os.MkdirTemp("", "interfold-smoke-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	bin, err := filepath.Abs(binaryPath())
	if err != nil {
		return err
	}
	run := func(args ...string) (string, error) {
		full := append([]string{
			"--config-dir", filepath.Join(scratch, "config"),
			"--data-dir", filepath.Join(scratch, "data"),
			"--user", "smoke",
		}, args...)
		return sh.Output(bin, full...)
	}

	steps := [][]string{
		{"init"},
		{"set", "add", "Go"},
		{"set", "add", "Concurrency"},
		{"intersection", "create", "Go", "Concurrency", "--content", "channels"},
		{"intersection", "find", "Go", "--exact"},
		{"outline", "add", "Reading list"},
		{"outline", "show"},
		{"export", filepath.Join(scratch, "dump")},
	}
	for _, step := range steps {
		out, err := run(step...)
		if err != nil {
			return fmt.Errorf("interfold %s: %w", strings.Join(step, " "), err)
		}
		fmt.Printf("$ interfold %s\n%s\n", strings.Join(step, " "), out)
	}
	return nil
}
