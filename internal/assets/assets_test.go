package assets

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

const indexHTML = `<!DOCTYPE html><html><head>
<link rel="stylesheet" href="/assets/index-abc.css">
<script type="module" src="/assets/index-def.js"></script>
</head><body></body></html>`

func TestEmbeddedBundle(t *testing.T) {
	b, err := Embedded()
	require.NoError(t, err)

	assert.Equal(t, "index-4f2a9c1e.js", b.JSName)
	assert.Equal(t, "index-7b3d0e55.css", b.CSSName)
	assert.Contains(t, string(b.Index), "<!DOCTYPE html>")
	assert.Contains(t, string(b.JS), "/current.wasm")
	assert.NotEmpty(t, b.CSS)
	assert.Empty(t, b.Warnings)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":              {Data: []byte(indexHTML)},
		"assets/index-def.js":     {Data: []byte("console.log(1)")},
		"assets/index-abc.css":    {Data: []byte("body{}")},
		"assets/index-def.js.map": {Data: []byte("{}")},
		"assets/logo.svg":         {Data: []byte("<svg/>")},
	}

	b, err := Load(fsys)
	require.NoError(t, err)

	assert.Equal(t, "index-def.js", b.JSName)
	assert.Equal(t, "console.log(1)", string(b.JS))
	assert.Equal(t, "index-abc.css", b.CSSName)
	assert.Equal(t, "body{}", string(b.CSS))
	assert.Empty(t, b.Warnings)
}

func TestLoadWarnsOnUnreferencedAsset(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":      {Data: []byte(`<html><head><script src="/assets/other.js"></script></head></html>`)},
		"assets/main.js":  {Data: []byte("x")},
		"assets/main.css": {Data: []byte("y")},
	}

	b, err := Load(fsys)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"index.html does not reference assets/main.js",
		"index.html does not reference assets/main.css",
	}, b.Warnings)
}

func TestLoadRejectsInvalidBundles(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		msg  string
	}{
		{
			name: "missing index",
			fsys: fstest.MapFS{"assets/a.js": {}, "assets/a.css": {}},
			msg:  "index.html not found",
		},
		{
			name: "missing assets dir",
			fsys: fstest.MapFS{"index.html": {Data: []byte(indexHTML)}},
			msg:  "assets directory not found",
		},
		{
			name: "no js",
			fsys: fstest.MapFS{"index.html": {}, "assets/a.css": {}},
			msg:  "no .js file",
		},
		{
			name: "two css",
			fsys: fstest.MapFS{"index.html": {}, "assets/a.js": {}, "assets/a.css": {}, "assets/b.css": {}},
			msg:  "more than one .css file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)

			var ae *apperrors.AppError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperrors.ErrCodeAssetsInvalid, ae.Code)
			assert.False(t, ae.Recoverable)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "index-def.js"), []byte("js"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "index-abc.css"), []byte("css"), 0644))

	b, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "index-def.js", b.JSName)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	_, err = LoadDir(filepath.Join(dir, "index.html"))
	assert.ErrorContains(t, err, "not a directory")
}
