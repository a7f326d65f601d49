package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorSeverity classifies a toolchain diagnostic.
type ErrorSeverity int

const (
	ErrorSeverityError ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityNote
)

// String returns the severity as rustc prints it.
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityNote:
		return "note"
	default:
		return "error"
	}
}

// ParsedError is one diagnostic extracted from toolchain output.
type ParsedError struct {
	Severity ErrorSeverity `json:"severity"`
	Code     string        `json:"code,omitempty"`
	File     string        `json:"file,omitempty"`
	Line     int           `json:"line,omitempty"`
	Column   int           `json:"column,omitempty"`
	Message  string        `json:"message"`
	Context  []string      `json:"context,omitempty"`
}

// Location renders file:line:column, omitting the parts that are unknown.
func (pe *ParsedError) Location() string {
	if pe.File == "" {
		return ""
	}
	loc := pe.File
	if pe.Line > 0 {
		loc += ":" + strconv.Itoa(pe.Line)
		if pe.Column > 0 {
			loc += ":" + strconv.Itoa(pe.Column)
		}
	}
	return loc
}

// FormatError formats a parsed error for terminal display.
func (pe *ParsedError) FormatError() string {
	var b strings.Builder

	b.WriteString(pe.Severity.String())
	if pe.Code != "" {
		fmt.Fprintf(&b, "[%s]", pe.Code)
	}
	b.WriteString(": ")
	b.WriteString(pe.Message)
	if loc := pe.Location(); loc != "" {
		fmt.Fprintf(&b, "\n  --> %s", loc)
	}
	for _, line := range pe.Context {
		fmt.Fprintf(&b, "\n  %s", line)
	}

	return b.String()
}

var (
	// error[E0425]: cannot find value `x` in this scope
	headerPattern = regexp.MustCompile(`^(error|warning)(?:\[([A-Za-z0-9]+)\])?: (.+)$`)
	//  --> src/lib.rs:3:5
	locationPattern = regexp.MustCompile(`^\s*-->\s+(.+?):(\d+):(\d+)\s*$`)
	// Summary lines cargo prints after the diagnostics.
	summaryPattern = regexp.MustCompile(`^(error: could not compile|warning: .+ generated \d+ warnings?|error: aborting due to)`)
)

// maxContextLines bounds how much of a diagnostic's snippet is kept.
const maxContextLines = 6

// ErrorParser extracts rustc diagnostics from cargo output.
type ErrorParser struct{}

// NewErrorParser creates a new error parser.
func NewErrorParser() *ErrorParser {
	return &ErrorParser{}
}

// ParseError returns the diagnostics found in output in the order they
// appear. Cargo's own summary lines are dropped. Output with no recognisable
// diagnostic yields nil.
func (ep *ErrorParser) ParseError(output string) []*ParsedError {
	var (
		parsed  []*ParsedError
		current *ParsedError
	)

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")

		if summaryPattern.MatchString(line) {
			current = nil
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			current = &ParsedError{
				Severity: severityOf(m[1]),
				Code:     m[2],
				Message:  m[3],
			}
			parsed = append(parsed, current)
			continue
		}

		if current == nil {
			continue
		}

		if strings.TrimSpace(line) == "" {
			current = nil
			continue
		}

		if current.File == "" {
			if m := locationPattern.FindStringSubmatch(line); m != nil {
				current.File = m[1]
				current.Line, _ = strconv.Atoi(m[2])
				current.Column, _ = strconv.Atoi(m[3])
				continue
			}
		}

		if len(current.Context) < maxContextLines {
			current.Context = append(current.Context, line)
		}
	}

	return parsed
}

// Errors returns only the error-severity entries of parsed.
func Errors(parsed []*ParsedError) []*ParsedError {
	var out []*ParsedError
	for _, pe := range parsed {
		if pe.Severity == ErrorSeverityError {
			out = append(out, pe)
		}
	}
	return out
}

func severityOf(s string) ErrorSeverity {
	if s == "warning" {
		return ErrorSeverityWarning
	}
	return ErrorSeverityError
}
