package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

// ProjectPrompt asks for the project directory on an interactive stream.
type ProjectPrompt struct {
	reader   *bufio.Reader
	out      io.Writer
	attempts int
}

// NewProjectPrompt creates a prompt reading from in and writing to out. An
// invalid answer is asked again until attempts answers have been rejected.
func NewProjectPrompt(in io.Reader, out io.Writer, attempts int) *ProjectPrompt {
	if attempts < 1 {
		attempts = 1
	}

	return &ProjectPrompt{
		reader:   bufio.NewReader(in),
		out:      out,
		attempts: attempts,
	}
}

// AskProjectDir returns the absolute path of an existing directory entered
// by the user.
func (p *ProjectPrompt) AskProjectDir() (string, error) {
	var lastErr error

	for i := 0; i < p.attempts; i++ {
		fmt.Fprint(p.out, "Project directory: ")

		input, err := p.reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if err != nil && input == "" {
			if err == io.EOF {
				return "", apperrors.ErrInvalidPath("", "no project directory given")
			}
			return "", apperrors.NewIOError(apperrors.ErrCodeInvalidPath, "failed to read project directory", err)
		}

		dir, err := ResolveProjectDir(input)
		if err == nil {
			return dir, nil
		}

		lastErr = err
		fmt.Fprintf(p.out, "❌ %v\n", err)
	}

	return "", fmt.Errorf("no valid project directory after %d attempts: %w", p.attempts, lastErr)
}

// ResolveProjectDir expands a leading ~, makes path absolute and checks that
// it names an existing directory.
func ResolveProjectDir(path string) (string, error) {
	if path == "" {
		return "", apperrors.ErrInvalidPath(path, "empty path")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperrors.ErrInvalidPath(path, err.Error())
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.ErrInvalidPath(path, err.Error())
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.ErrInvalidPath(abs, "does not exist")
		}
		return "", apperrors.ErrInvalidPath(abs, err.Error())
	}
	if !info.IsDir() {
		return "", apperrors.ErrInvalidPath(abs, "not a directory")
	}

	return abs, nil
}
