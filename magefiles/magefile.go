//go:build mage

// Package main provides build targets for vending-ledger using Mage.
//
// Usage:
//
//	mage build            Compile server and vendctl to bin/
//	mage test             Run all tests
//	mage testUnit         Run tests with -short, skipping external stores
//	mage stress           Run the concurrent withdraw check against Redis
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo     = "go"
	binaryDir = "bin"
)

var binaries = map[string]string{
	"vending-server": "./cmd/server",
	"vendctl":        "./cmd/vendctl",
}

// Build compiles the server and vendctl binaries to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	for name, dir := range binaries {
		if err := sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, name), dir); err != nil {
			return err
		}
	}
	return nil
}

// Test runs all tests. Redis, MySQL and Mongo tests skip when unreachable.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// TestUnit runs tests with -short, which skips Redis, MySQL and Mongo.
func TestUnit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Stress runs cmd/stress_test against REDIS_ADDR.
func Stress() error {
	mg.Deps(Build)
	return sh.RunV(binGo, "run", "./cmd/stress_test")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
