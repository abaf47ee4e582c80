package tasks

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

const (
	tmplTenders  = "tenders.tmpl"
	tmplProjects = "projects.tmpl"
	tmplIndustry = "industry.tmpl"
	tmplSite     = "site.tmpl"
)

var promptFuncs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
}

var (
	defaultOnce      sync.Once
	defaultTemplates *template.Template
	defaultErr       error
)

// DefaultTemplates returns the embedded prompt templates.
func DefaultTemplates() (*template.Template, error) {
	defaultOnce.Do(func() {
		defaultTemplates, defaultErr = template.New("prompts").Funcs(promptFuncs).ParseFS(promptFS, "prompts/*.tmpl")
	})
	return defaultTemplates, defaultErr
}

// LoadTemplates returns the embedded prompts with any *.tmpl files in dir
// parsed on top. A file named like an embedded prompt replaces it, and
// files may redefine the "context" and "rules" blocks. An empty or missing
// dir yields the embedded prompts.
func LoadTemplates(dir string) (*template.Template, error) {
	base, err := DefaultTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse embedded prompts: %w", err)
	}
	if dir == "" {
		return base, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("list prompt overrides: %w", err)
	}
	if len(matches) == 0 {
		return base, nil
	}
	tmpl, err := base.Clone()
	if err != nil {
		return nil, err
	}
	for _, path := range matches {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt override %s: %w", path, err)
		}
		if _, err := tmpl.New(filepath.Base(path)).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse prompt override %s: %w", path, err)
		}
	}
	return tmpl, nil
}
