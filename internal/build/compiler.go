// Package build runs the external wasm toolchain and serializes builds.
//
// Compiler knows how to invoke cargo and where it leaves the artifact.
// Coordinator owns the single builder goroutine: every build goes through
// it, and concurrent requests for the same project share one build.
package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/wasmreload/internal/config"
	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

// Artifact is the output of a successful build.
type Artifact struct {
	Path string
}

// Builder produces an artifact for a project directory.
type Builder interface {
	Build(ctx context.Context, dir string) (Artifact, error)
}

// Compiler invokes `cargo build --target <target>` in a project directory.
type Compiler struct {
	command string
	target  string
	profile string
	runner  Runner
}

// NewCompiler creates a compiler from the build configuration. A nil runner
// means ExecRunner.
func NewCompiler(cfg config.BuildConfig, runner Runner) *Compiler {
	if runner == nil {
		runner = ExecRunner{}
	}

	defaults := config.Defaults().Build
	c := &Compiler{
		command: cfg.Command,
		target:  cfg.Target,
		profile: cfg.Profile,
		runner:  runner,
	}
	if c.command == "" {
		c.command = defaults.Command
	}
	if c.target == "" {
		c.target = defaults.Target
	}
	if c.profile == "" {
		c.profile = defaults.Profile
	}

	return c
}

// Command returns the toolchain binary.
func (c *Compiler) Command() string {
	return c.command
}

// Args returns the arguments passed to the toolchain.
func (c *Compiler) Args() []string {
	args := []string{"build", "--target", c.target}

	switch c.profile {
	case "debug", "dev":
	case "release":
		args = append(args, "--release")
	default:
		args = append(args, "--profile", c.profile)
	}

	return args
}

// Build runs the toolchain to completion in dir and returns the artifact it
// produced. A non-zero exit yields a BuildError carrying the toolchain
// output; a clean exit without an artifact yields ERR_ARTIFACT_MISSING.
func (c *Compiler) Build(ctx context.Context, dir string) (Artifact, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Artifact{}, apperrors.ErrInvalidPath(dir, err.Error())
	}

	output, err := c.runner.Run(ctx, absDir, c.command, c.Args()...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Artifact{}, apperrors.NewBuildError(apperrors.ErrCodeBuildFailed,
				"build interrupted", output, ctxErr)
		}
		return Artifact{}, apperrors.NewBuildError(apperrors.ErrCodeBuildFailed,
			c.command+" build failed", output, err)
	}

	path, ok := findArtifact(absDir, c.target, c.profile)
	if !ok {
		return Artifact{}, apperrors.ErrArtifactMissing(path)
	}

	return Artifact{Path: path}, nil
}

// ArtifactPath returns where cargo leaves the wasm file for the crate named
// after dir: <dir>/target/<target>/<profile>/<base>.wasm.
func ArtifactPath(dir, target, profile string) string {
	return filepath.Join(dir, "target", target, profileDir(profile), filepath.Base(dir)+".wasm")
}

// findArtifact checks ArtifactPath and then the same name with hyphens
// replaced by underscores, which is how cargo names library artifacts.
func findArtifact(dir, target, profile string) (string, bool) {
	primary := ArtifactPath(dir, target, profile)
	if fileExists(primary) {
		return primary, true
	}

	base := filepath.Base(dir)
	if strings.Contains(base, "-") {
		alt := filepath.Join(filepath.Dir(primary), strings.ReplaceAll(base, "-", "_")+".wasm")
		if fileExists(alt) {
			return alt, true
		}
	}

	return primary, false
}

func profileDir(profile string) string {
	switch profile {
	case "", "dev":
		return "debug"
	default:
		return profile
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
