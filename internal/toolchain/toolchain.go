// Package toolchain inspects the local Rust toolchain: the cargo version and
// the rustup targets installed.
package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/conneroisu/wasmreload/internal/build"
)

// MinimumCargo is the oldest cargo known to build wasm32-unknown-unknown
// projects with the flags wasmreload passes.
const MinimumCargo = ">= 1.60.0"

// Inspector runs toolchain queries through a build.Runner.
type Inspector struct {
	runner build.Runner
	cargo  string
}

// NewInspector creates an inspector. An empty cargo means "cargo" and a nil
// runner means build.ExecRunner.
func NewInspector(runner build.Runner, cargo string) *Inspector {
	if runner == nil {
		runner = build.ExecRunner{}
	}
	if cargo == "" {
		cargo = "cargo"
	}

	return &Inspector{runner: runner, cargo: cargo}
}

// CargoVersion runs `cargo --version` and parses the result.
func (i *Inspector) CargoVersion(ctx context.Context) (*semver.Version, error) {
	out, err := i.runner.Run(ctx, "", i.cargo, "--version")
	if err != nil {
		return nil, fmt.Errorf("%s --version: %w", i.cargo, err)
	}

	return ParseCargoVersion(string(out))
}

// ParseCargoVersion extracts the version from output such as
// "cargo 1.78.0 (54d8815d0 2024-03-26)".
func ParseCargoVersion(output string) (*semver.Version, error) {
	fields := strings.Fields(output)
	if len(fields) < 2 || fields[0] != "cargo" {
		return nil, fmt.Errorf("unrecognised cargo version output %q", strings.TrimSpace(output))
	}

	v, err := semver.NewVersion(fields[1])
	if err != nil {
		return nil, fmt.Errorf("parse cargo version %q: %w", fields[1], err)
	}

	return v, nil
}

// CheckMinimum reports whether v satisfies constraint. Pre-release builds
// such as nightlies are compared by their release version.
func CheckMinimum(v *semver.Version, constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}

	if v.Prerelease() != "" {
		release, err := v.SetPrerelease("")
		if err != nil {
			return false, err
		}
		v = &release
	}

	return c.Check(v), nil
}

// InstalledTargets runs `rustup target list --installed`.
func (i *Inspector) InstalledTargets(ctx context.Context) ([]string, error) {
	out, err := i.runner.Run(ctx, "", "rustup", "target", "list", "--installed")
	if err != nil {
		return nil, fmt.Errorf("rustup target list: %w", err)
	}

	var targets []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if t := strings.TrimSpace(sc.Text()); t != "" {
			targets = append(targets, t)
		}
	}

	return targets, sc.Err()
}

// HasTarget reports whether target is installed.
func (i *Inspector) HasTarget(ctx context.Context, target string) (bool, error) {
	targets, err := i.InstalledTargets(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range targets {
		if t == target {
			return true, nil
		}
	}

	return false, nil
}

// PortAvailable reports whether addr can be bound right now.
func PortAvailable(addr string) bool {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = l.Close()

	return true
}
