// Package envfile reads and rewrites the STOCK_LIST watchlist held in a
// key=value environment file.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Key is the variable holding the watchlist.
const Key = "STOCK_LIST"

// PathEnv overrides the default env file location.
const PathEnv = "ENV_FILE"

// DefaultPath is used when neither a path nor ENV_FILE is given.
const DefaultPath = ".env"

var (
	keyLine   = regexp.MustCompile(`(?m)^[ \t]*` + Key + `[ \t]*=[ \t]*`)
	separator = regexp.MustCompile(`[,\r\n]+`)
)

// Editor edits one env file on disk.
type Editor struct {
	Path string
}

// New returns an editor for path, falling back to ENV_FILE and then .env.
func New(path string) *Editor {
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}
	return &Editor{Path: path}
}

// ReadText returns the file contents. A missing file reads as empty.
func (e *Editor) ReadText() (string, error) {
	data, err := os.ReadFile(e.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read env file: %w", err)
	}
	return string(data), nil
}

// WriteText replaces the file contents.
func (e *Editor) WriteText(text string) error {
	if err := os.WriteFile(e.Path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// StockList returns the current watchlist value.
func (e *Editor) StockList() (string, error) {
	text, err := e.ReadText()
	if err != nil {
		return "", err
	}
	return ExtractStockList(text), nil
}

// SetStockList normalizes value, writes it and returns the normalized form.
func (e *Editor) SetStockList(value string) (string, error) {
	normalized := NormalizeStockList(value)
	if err := e.SetStockListRaw(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// SetStockListRaw writes value verbatim, quoting it when it spans lines.
func (e *Editor) SetStockListRaw(value string) error {
	text, err := e.ReadText()
	if err != nil {
		return err
	}
	return e.WriteText(UpdateStockList(text, value))
}

// Filename returns the base name of the env file.
func (e *Editor) Filename() string {
	return filepath.Base(e.Path)
}

// assignment locates the first STOCK_LIST assignment in text.
type assignment struct {
	start      int // start of the key line
	valueStart int // first byte of the value, after any opening quote
	valueEnd   int // end of the value, before any closing quote
	end        int // end of the assignment, excluding trailing blanks
}

func findAssignment(text string) (assignment, bool) {
	loc := keyLine.FindStringIndex(text)
	if loc == nil {
		return assignment{}, false
	}
	a := assignment{start: loc[0], valueStart: loc[1]}
	rest := text[loc[1]:]

	if rest != "" && (rest[0] == '"' || rest[0] == '\'') {
		if end, ok := closingQuote(rest, rest[0]); ok {
			a.valueStart = loc[1] + 1
			a.valueEnd = loc[1] + end
			a.end = a.valueEnd + 1
			return a, true
		}
	}

	lineEnd := strings.IndexByte(rest, '\n')
	if lineEnd < 0 {
		lineEnd = len(rest)
	}
	a.valueEnd = loc[1] + len(strings.TrimRight(rest[:lineEnd], " \t\r"))
	a.end = a.valueEnd
	return a, true
}

// closingQuote finds the first quote after the opening one that is followed
// only by blanks up to the end of its line.
func closingQuote(rest string, quote byte) (int, bool) {
	for i := 1; i < len(rest); i++ {
		if rest[i] != quote {
			continue
		}
		tail := rest[i+1:]
		if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
			tail = tail[:nl]
		}
		if strings.TrimSpace(tail) == "" {
			return i, true
		}
	}
	return 0, false
}

// ExtractStockList returns the trimmed STOCK_LIST value, or "" when absent.
// Single-line and quoted multi-line values are supported.
func ExtractStockList(text string) string {
	a, ok := findAssignment(text)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text[a.valueStart:a.valueEnd])
}

// NormalizeStockList splits on commas and newlines, drops empty items and
// joins the rest with commas.
func NormalizeStockList(value string) string {
	var parts []string
	for _, p := range separator.Split(value, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ",")
}

// UpdateStockList replaces the STOCK_LIST value in text, or appends an
// assignment when there is none. Values containing newlines are quoted.
func UpdateStockList(text, value string) string {
	rendered := value
	if strings.Contains(value, "\n") {
		rendered = `"` + value + `"`
	}

	if a, ok := findAssignment(text); ok {
		prefixEnd := a.valueStart
		if a.quoted() {
			prefixEnd--
		}
		prefix := text[a.start:prefixEnd]
		return text[:a.start] + prefix + rendered + text[a.end:]
	}

	sep := ""
	if text != "" && !strings.HasSuffix(text, "\n") {
		sep = "\n"
	}
	return text + sep + Key + "=" + rendered + "\n"
}

func (a assignment) quoted() bool {
	return a.end > a.valueEnd
}

// ParseCodes extracts instrument codes from a watchlist value, ignoring any
// "|name|sector|type" annotation and surrounding quotes.
func ParseCodes(value string) []string {
	value = strings.Trim(strings.TrimSpace(value), `"'`)
	var codes []string
	for _, item := range separator.Split(value, -1) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, _, _ := strings.Cut(item, "|")
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
