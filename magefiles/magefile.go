//go:build mage

// Package main provides build targets for the interfold project using Mage.
//
// Usage:
//
//	mage build          Compile the interfold binary to bin/
//	mage install        Install interfold to GOPATH/bin
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Write a coverage profile to bin/coverage.out
//	mage test:bench     Run the storage benchmarks
//	mage test:smoke     Build and drive the binary end to end
//	mage lint           Check gofmt, then run golangci-lint
//	mage clean          Remove build artifacts
//	mage stats          Print Go LOC and documentation word counts
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binGofmt   = "gofmt"
	binLint    = "golangci-lint"
	binaryName = "interfold"
	binaryDir  = "bin"
	cmdDir     = "./cmd/interfold"
	versionVar = "github.com/mesh-intelligence/interfold/internal/cli.Version"
)

// sourceDirs are the trees checked by gofmt; the reference pack is left out.
var sourceDirs = []string{"cmd", "internal", "pkg", "magefiles"}

// Build compiles the interfold binary to bin/. VERSION, when set, is
// stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", binaryPath()}
	if v := os.Getenv("VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), binaryPath())
}

// Lint fails on unformatted sources, then runs golangci-lint.
func Lint() error {
	out, err := sh.Output(binGofmt, append([]string{"-l"}, sourceDirs...)...)
	if err != nil {
		return err
	}
	if out != "" {
		return fmt.Errorf("files need gofmt:\n%s", out)
	}
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

func binaryPath() string {
	return filepath.Join(binaryDir, binaryName)
}
