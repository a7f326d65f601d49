package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

// BuildErrorPage is the HTML served from /current.wasm when the build fails.
type BuildErrorPage struct {
	Project     string
	Message     string
	Output      string
	Diagnostics []*apperrors.ParsedError
}

// Title is the project directory name in title case, e.g. "my-game" becomes
// "My Game".
func (p BuildErrorPage) Title() string {
	name := strings.NewReplacer("-", " ", "_", " ").Replace(filepath.Base(p.Project))
	return cases.Title(language.English).String(name)
}

// Component renders the page.
func (p BuildErrorPage) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(p.Title())

		if _, err := fmt.Fprintf(w, errorPageHead, title); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "<h1>%s: build failed</h1>\n<p class=\"message\">%s</p>\n",
			title, templ.EscapeString(p.Message)); err != nil {
			return err
		}

		if diags := apperrors.Errors(p.Diagnostics); len(diags) > 0 {
			if _, err := io.WriteString(w, "<ul class=\"diagnostics\">\n"); err != nil {
				return err
			}
			for _, d := range diags {
				if err := writeDiagnostic(w, d); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</ul>\n"); err != nil {
				return err
			}
		}

		if p.Output != "" {
			if _, err := fmt.Fprintf(w, "<h2>Toolchain output</h2>\n<pre class=\"output\">%s</pre>\n",
				templ.EscapeString(p.Output)); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "<p class=\"hint\">Fix the error and save; the page reloads on the next successful build.</p>\n</body>\n</html>\n")
		return err
	})
}

// Handler serves the page with status.
func (p BuildErrorPage) Handler(status int) http.Handler {
	return templ.Handler(p.Component(), templ.WithStatus(status))
}

func writeDiagnostic(w io.Writer, d *apperrors.ParsedError) error {
	code := ""
	if d.Code != "" {
		code = "[" + d.Code + "]"
	}

	if _, err := fmt.Fprintf(w, "<li><span class=\"severity\">%s%s</span> %s",
		d.Severity, templ.EscapeString(code), templ.EscapeString(d.Message)); err != nil {
		return err
	}
	if loc := d.Location(); loc != "" {
		if _, err := fmt.Fprintf(w, " <span class=\"location\">%s</span>", templ.EscapeString(loc)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</li>\n")
	return err
}

const errorPageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>%s: build failed</title>
<style>
body { font-family: ui-monospace, monospace; margin: 2rem; background: #1e1e1e; color: #eee; }
h1 { color: #ff6b6b; }
.message { color: #ccc; }
.diagnostics li { margin: 0.5rem 0; border-left: 4px solid #ff4444; padding-left: 0.5rem; list-style: none; }
.severity { font-weight: bold; color: #ff6b6b; }
.location { color: #88ccff; }
.output { background: #111; padding: 1rem; overflow-x: auto; white-space: pre-wrap; }
.hint { color: #88ff88; }
</style>
</head>
<body>
`
