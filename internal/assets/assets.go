// Package assets loads the static front-end bundle served next to the wasm
// artifact: one index.html plus exactly one .js and one .css file under
// assets/.
package assets

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

//go:embed dist
var dist embed.FS

// Content types the bundle is served with.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJS   = "application/javascript"
	ContentTypeCSS  = "text/css; charset=utf-8"
)

// Bundle is the loaded front-end. The JS and CSS are addressed by their
// base names under /assets/.
type Bundle struct {
	Index   []byte
	JSName  string
	JS      []byte
	CSSName string
	CSS     []byte
	// Warnings lists problems that do not stop the bundle from being
	// served, such as index.html not referencing an asset.
	Warnings []string
}

// Embedded returns the bundle compiled into the binary.
func Embedded() (*Bundle, error) {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		return nil, apperrors.ErrAssetsInvalid("embedded bundle missing", err)
	}

	return Load(sub)
}

// LoadDir loads a bundle from a directory on disk, typically the output
// directory of the front-end build.
func LoadDir(dir string) (*Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperrors.ErrAssetsInvalid("cannot open assets directory", err).WithPath(dir)
	}
	if !info.IsDir() {
		return nil, apperrors.ErrAssetsInvalid("assets path is not a directory", nil).WithPath(dir)
	}

	return Load(os.DirFS(dir))
}

// Load reads index.html and the single .js and .css file under assets/
// from fsys.
func Load(fsys fs.FS) (*Bundle, error) {
	index, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		return nil, apperrors.ErrAssetsInvalid("index.html not found", err)
	}

	entries, err := fs.ReadDir(fsys, "assets")
	if err != nil {
		return nil, apperrors.ErrAssetsInvalid("assets directory not found", err)
	}

	var jsNames, cssNames []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		switch strings.ToLower(path.Ext(e.Name())) {
		case ".js":
			jsNames = append(jsNames, e.Name())
		case ".css":
			cssNames = append(cssNames, e.Name())
		}
	}

	if err := exactlyOne("js", jsNames); err != nil {
		return nil, err
	}
	if err := exactlyOne("css", cssNames); err != nil {
		return nil, err
	}

	b := &Bundle{
		Index:   index,
		JSName:  jsNames[0],
		CSSName: cssNames[0],
	}
	if b.JS, err = fs.ReadFile(fsys, path.Join("assets", b.JSName)); err != nil {
		return nil, apperrors.ErrAssetsInvalid("cannot read "+b.JSName, err)
	}
	if b.CSS, err = fs.ReadFile(fsys, path.Join("assets", b.CSSName)); err != nil {
		return nil, apperrors.ErrAssetsInvalid("cannot read "+b.CSSName, err)
	}

	refs, err := references(index)
	if err != nil {
		return nil, apperrors.ErrAssetsInvalid("index.html is not valid HTML", err)
	}
	for _, name := range []string{b.JSName, b.CSSName} {
		if !refs[name] {
			b.Warnings = append(b.Warnings, "index.html does not reference assets/"+name)
		}
	}

	return b, nil
}

func exactlyOne(kind string, names []string) error {
	switch len(names) {
	case 1:
		return nil
	case 0:
		return apperrors.ErrAssetsInvalid("no ."+kind+" file under assets/", nil)
	default:
		sort.Strings(names)
		return apperrors.ErrAssetsInvalid("more than one ."+kind+" file under assets/", nil).
			WithContext("files", names)
	}
}

// references returns the base names of every script src and stylesheet
// href in the document.
func references(doc []byte) (map[string]bool, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}

	refs := make(map[string]bool)
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				if src := attr(n, "src"); src != "" {
					refs[path.Base(src)] = true
				}
			case "link":
				if href := attr(n, "href"); href != "" {
					refs[path.Base(href)] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)

	return refs, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
