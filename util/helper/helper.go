// functions with side effect
package helper

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/go-sprout/sprout"
	"github.com/go-sprout/sprout/group/all"
	"github.com/gobwas/glob"
)

var handler *sprout.DefaultHandler

// sprout provided template funcs
var templateFuncs map[string]any

func init() {
	handler = sprout.New()
	handler.AddGroups(all.RegistryGroup())
	templateFuncs = handler.Build()
}

// Simple wrapper on Go text template.Template.
type Template struct {
	*template.Template
}

// Execute Go text template and return rendered string.
// The result string is trim spaced.
func (t *Template) Exec(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Get a Go text template instance from tpl string.
// If tpl starts with "@" char, treat it (the rest part after @) as a file name
// and read template contents from it instead.
func GetTemplate(tpl string, strict bool) (*Template, error) {
	if strings.HasPrefix(tpl, "@") {
		contents, err := os.ReadFile(tpl[1:])
		if err != nil {
			return nil, err
		}
		tpl = string(contents)
	}
	templateInstance := template.New("template").Funcs(templateFuncs)
	if strict {
		templateInstance = templateInstance.Option("missingkey=error")
	}
	t, err := templateInstance.Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{Template: t}, nil
}

// ParseGlobFilenames expands a shell-like glob pattern (e.g. "*.jpg") into
// matching filenames on disk, sorted lexicographically. If there are no
// matches (or the pattern is invalid), returns an empty slice. For relative
// patterns, results are relative to the current working dir.
func ParseGlobFilenames(pattern string) []string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	patSlash := filepath.ToSlash(pattern)
	g, err := glob.Compile(patSlash, '/')
	if err != nil {
		return nil
	}

	walkRoot := computeWalkRoot(pattern)
	isAbs := filepath.IsAbs(pattern)

	var matches []string
	_ = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		var target string
		if isAbs {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil
			}
			target = filepath.ToSlash(abs)
		} else {
			rel, err := filepath.Rel(".", path)
			if err != nil {
				return nil
			}
			target = filepath.ToSlash(rel)
		}
		if g.Match(target) {
			matches = append(matches, filepath.Clean(filepath.FromSlash(target)))
		}
		return nil
	})

	sort.Strings(matches)
	return matches
}

func computeWalkRoot(pattern string) string {
	// the longest prefix before any glob metachar
	const metas = "*?[{"

	prefix := pattern
	for i := 0; i < len(pattern); i++ {
		if strings.ContainsRune(metas, rune(pattern[i])) {
			prefix = pattern[:i]
			break
		}
	}

	prefixDir := prefix
	lastSep := strings.LastIndexAny(prefixDir, `/\`)
	if lastSep >= 0 {
		prefixDir = prefixDir[:lastSep+1]
	}

	if prefixDir == "" {
		return "."
	}
	return filepath.Clean(prefixDir)
}
