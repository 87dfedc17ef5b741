//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "xcforge"

var Default = Build

// Build compiles the xcforge binary into bin/.
func Build() error {
	mg.Deps(Generate)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := fmt.Sprintf("-s -w -X github.com/dosanma1/xcforge/internal/cmd.Version=%s", version)
	return sh.RunV("go", "build", "-trimpath", "-ldflags", ldflags, "-o", filepath.Join("bin", binary), "./cmd/xcforge")
}

// Generate runs go generate.
func Generate() error {
	return sh.RunV("go", "generate", "./...")
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs vet and tests.
func Check() {
	mg.SerialDeps(Vet, Test)
}

// Install copies the binary into GOBIN.
func Install() error {
	mg.Deps(Build)
	gobin := os.Getenv("GOBIN")
	if gobin == "" {
		gopath, err := sh.Output("go", "env", "GOPATH")
		if err != nil {
			return err
		}
		gobin = filepath.Join(gopath, "bin")
	}
	return sh.Copy(filepath.Join(gobin, binary), filepath.Join("bin", binary))
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}
