//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"c": Clean,
	"s": Smoke,
}

const binDir = "bin"

// binaries maps each installed command to its main package.
var binaries = []struct{ name, pkg string }{
	{"flightlog", "./cmd/flightlog"},
	{"fcsimd", "./cmd/fcsimd"},
}

func exe(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// All runs the complete build pipeline.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Build compiles flightlog and the fcsimd daemon. flightlog starts fcsimd
// from its own directory, so both land in bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}

	for _, b := range binaries {
		output := filepath.Join(binDir, exe(b.name))
		if err := sh.RunV("go", "build", "-ldflags", buildLdflags(b.pkg), "-o", output, b.pkg); err != nil {
			return fmt.Errorf("building %s: %w", b.name, err)
		}
	}
	return nil
}

// Install builds and installs both binaries to the user's GOBIN or /usr/local/bin.
func Install() error {
	st.Deps(Build)

	bin, err := installDir()
	if err != nil {
		return err
	}
	for _, b := range binaries {
		src := filepath.Join(binDir, exe(b.name))
		dst := filepath.Join(bin, exe(b.name))
		if st.Verbose() {
			fmt.Printf("Installing %s to %s\n", src, dst)
		}
		if err := sh.Copy(dst, src); err != nil {
			return err
		}
	}
	return nil
}

// installDir resolves GOBIN, then GOPATH/bin, then /usr/local/bin.
func installDir() (string, error) {
	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin == "" {
		gopath, err := sh.Output(gocmd, "env", "GOPATH")
		if err != nil {
			return "", fmt.Errorf("determining GOPATH: %w", err)
		}
		if gopath != "" {
			bin = filepath.Join(gopath, "bin")
		} else {
			// Fallback to /usr/local/bin if GOPATH is not set.
			bin = "/usr/local/bin"
		}
	}
	return bin, nil
}

// Uninstall removes the installed binaries, stopping a running fcsimd first.
func Uninstall() error {
	bin, err := installDir()
	if err != nil {
		return err
	}

	cli := filepath.Join(bin, exe("flightlog"))
	if _, err := os.Stat(cli); err == nil {
		_ = sh.Run(cli, "link", "stop")
	}

	for _, b := range binaries {
		target := filepath.Join(bin, exe(b.name))
		if _, err := os.Stat(target); os.IsNotExist(err) {
			if st.Verbose() {
				fmt.Printf("Binary not found at %s, nothing to uninstall\n", target)
			}
			continue
		}
		if st.Verbose() {
			fmt.Printf("Removing %s\n", target)
		}
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	return nil
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Smoke builds flightlog and runs a retrieve and a CSV export against the
// in-process simulated link, using throwaway cache and history paths.
func Smoke() error {
	st.Deps(Build)

	dir, err := os.MkdirTemp("", "flightlog-smoke-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	for k, v := range map[string]string{
		"FLIGHTLOG_LINK_MODE":    "sim",
		"FLIGHTLOG_CACHE_PATH":   filepath.Join(dir, "cache"),
		"FLIGHTLOG_HISTORY_PATH": filepath.Join(dir, "history"),
	} {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	cli := filepath.Join(binDir, exe("flightlog"))
	steps := [][]string{
		{"retrieve", "-n"},
		{"flights", "-o", "plain"},
		{"export", filepath.Join(dir, "smoke.csv")},
		{"history", "-o", "plain"},
	}
	for _, args := range steps {
		if err := sh.RunV(cli, args...); err != nil {
			return fmt.Errorf("flightlog %s: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if st.Verbose() {
		fmt.Printf("Removing %s/\n", binDir)
	}
	return sh.Rm(binDir + "/")
}

// Fmt formats all Go code.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	return sh.Run("goimports", "-w", ".")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// buildLdflags returns ldflags for version injection into mainPkg.
func buildLdflags(mainPkg string) string {
	version := "dev"
	commit := "unknown"
	date := time.Now().Format(time.RFC3339)

	if v, err := sh.Output("git", "describe", "--tags", "--always"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}

	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}

	pkg := "github.com/jamesainslie/flightlog/" + strings.TrimPrefix(mainPkg, "./")
	return fmt.Sprintf(
		"-X %s.version=%s -X %s.commit=%s -X %s.date=%s",
		pkg, version, pkg, commit, pkg, date,
	)
}
