package toolchain

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner map[string]struct {
	out []byte
	err error
}

func (s stubRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	r, ok := s[key]
	if !ok {
		return nil, errors.New("executable file not found in $PATH")
	}
	return r.out, r.err
}

func TestParseCargoVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{"stable", "cargo 1.78.0 (54d8815d0 2024-03-26)\n", "1.78.0", false},
		{"nightly", "cargo 1.80.0-nightly (b1feb75d0 2024-05-10)", "1.80.0-nightly", false},
		{"garbage", "command not found", "", true},
		{"empty", "", "", true},
		{"bad version", "cargo one.two", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseCargoVersion(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestCheckMinimum(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"cargo 1.78.0 (x)", true},
		{"cargo 1.60.0 (x)", true},
		{"cargo 1.59.0 (x)", false},
		{"cargo 1.80.0-nightly (x)", true},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			v, err := ParseCargoVersion(tt.output)
			require.NoError(t, err)

			ok, err := CheckMinimum(v, MinimumCargo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	v, _ := ParseCargoVersion("cargo 1.78.0")
	_, err := CheckMinimum(v, "not a constraint")
	assert.Error(t, err)
}

func TestInspector(t *testing.T) {
	runner := stubRunner{
		"cargo --version":                {out: []byte("cargo 1.78.0 (54d8815d0 2024-03-26)\n")},
		"rustup target list --installed": {out: []byte("x86_64-unknown-linux-gnu\nwasm32-unknown-unknown\n\n")},
	}
	i := NewInspector(runner, "")

	v, err := i.CargoVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.78.0", v.String())

	targets, err := i.InstalledTargets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x86_64-unknown-linux-gnu", "wasm32-unknown-unknown"}, targets)

	ok, err := i.HasTarget(context.Background(), "wasm32-unknown-unknown")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = i.HasTarget(context.Background(), "wasm32-wasip1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInspectorMissingTools(t *testing.T) {
	i := NewInspector(stubRunner{}, "cargo")

	_, err := i.CargoVersion(context.Background())
	assert.ErrorContains(t, err, "cargo --version")

	_, err = i.HasTarget(context.Background(), "wasm32-unknown-unknown")
	assert.ErrorContains(t, err, "rustup target list")
}

func TestPortAvailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()

	assert.False(t, PortAvailable(addr))
	require.NoError(t, l.Close())
	assert.True(t, PortAvailable(addr))
}
