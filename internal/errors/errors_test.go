package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "code and message",
			err:      NewConfigError(ErrCodeConfigInvalid, "port out of range"),
			expected: "[ERR_CONFIG_INVALID] port out of range",
		},
		{
			name:     "with path and cause",
			err:      ErrScanFailed("/src/lib.rs", os.ErrPermission),
			expected: "[ERR_SCAN_FAILED] /src/lib.rs scan failed: permission denied",
		},
		{
			name:     "message only",
			err:      &AppError{Message: "plain"},
			expected: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppErrorUnwrapAndIs(t *testing.T) {
	err := ErrScanFailed("/src", os.ErrNotExist)

	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, errors.Is(err, &AppError{Type: ErrorTypeIO, Code: ErrCodeScanFailed}))
	assert.False(t, errors.Is(err, &AppError{Type: ErrorTypeBuild, Code: ErrCodeBuildFailed}))

	wrapped := fmt.Errorf("poll: %w", err)
	var ae *AppError
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, "/src", ae.FilePath)
}

func TestRecoverability(t *testing.T) {
	assert.True(t, IsRecoverable(ErrScanFailed("/src", os.ErrPermission)))
	assert.False(t, IsRecoverable(NewBuildError(ErrCodeBuildFailed, "cargo failed", nil, nil)))
	assert.False(t, IsRecoverable(ErrAssetsInvalid("missing index.html", nil)))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestBuildErrorOutput(t *testing.T) {
	err := NewBuildError(ErrCodeBuildFailed, "cargo build failed", []byte("error[E0425]: cannot find value"), errors.New("exit status 101"))
	wrapped := fmt.Errorf("serve artifact: %w", err)

	assert.True(t, IsBuildError(wrapped))
	assert.Equal(t, "error[E0425]: cannot find value", BuildOutput(wrapped))
	assert.Contains(t, wrapped.Error(), "exit status 101")
	assert.Empty(t, BuildOutput(errors.New("other")))
}

func TestErrArtifactMissing(t *testing.T) {
	err := ErrArtifactMissing("/p/target/wasm32-unknown-unknown/debug/p.wasm")

	assert.True(t, IsBuildError(err))
	assert.True(t, errors.Is(err, &AppError{Type: ErrorTypeBuild, Code: ErrCodeArtifactMissing}))
	assert.Contains(t, err.Error(), "p.wasm")
}

func TestWithContext(t *testing.T) {
	err := ErrInvalidPath("/nope", "does not exist").WithContext("attempt", 3)

	assert.Equal(t, 3, err.Context["attempt"])
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.True(t, err.Recoverable)
}
