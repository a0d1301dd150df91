//go:build mage

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	modulePath = "github.com/dkoosis/mdreport"
	binPath    = "bin/mdreport"
)

// Default target - build the binary
var Default = Build

// Build builds the mdreport binary with version metadata.
func Build() error {
	version := gitOutput("dev", "describe", "--tags", "--always", "--dirty", "--match=v*")
	commit := gitOutput("unknown", "rev-parse", "--short", "HEAD")
	date := time.Now().UTC().Format(time.RFC3339)

	ldflags := fmt.Sprintf("-s -w -X '%[1]s/internal/version.Version=%[2]s' -X '%[1]s/internal/version.CommitHash=%[3]s' -X '%[1]s/internal/version.BuildDate=%[4]s'",
		modulePath, version, commit, date)

	fmt.Println("Building mdreport...")
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath, "./cmd/mdreport"); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	fmt.Printf("Built: %s\n", binPath)
	return nil
}

// Test runs the test suite with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Report runs the tests and writes bin/report.md with the freshly built binary.
func Report() error {
	mg.Deps(Build)

	out, testErr := sh.Output("go", "test", "-json", "-count=1", "./...")
	cmd := exec.Command(binPath, "--md", "bin/report.md", "--format", "gotest")
	cmd.Stdin = strings.NewReader(out + "\n")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// A failing suite still gets a report; the test error wins.
	return errors.Join(testErr, cmd.Run())
}

// QA runs formatting, vet and lint checks.
func QA() error {
	if err := sh.RunV("go", "fmt", "./..."); err != nil {
		return fmt.Errorf("format check failed: %w", err)
	}
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return fmt.Errorf("vet failed: %w", err)
	}
	if err := sh.RunV("golangci-lint", "run", "--timeout=5m", "./..."); err != nil {
		if isCommandNotFound(err) {
			fmt.Println("golangci-lint not found (install: go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest)")
			return nil
		}
		return fmt.Errorf("golangci-lint failed: %w", err)
	}
	return nil
}

// Clean removes build artifacts
func Clean() error {
	if err := sh.Rm("bin"); err != nil {
		return err
	}
	return sh.Run("go", "clean", "-cache")
}

func gitOutput(fallback string, args ...string) string {
	out, err := sh.Output("git", args...)
	if err != nil || out == "" {
		return fallback
	}
	return strings.TrimSpace(out)
}

func isCommandNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || strings.Contains(err.Error(), "executable file not found")
}
