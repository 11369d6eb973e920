package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"sync"
)

const baseFilename = "base.html"

const (
	PageThankYou = "thank-you"
	PageError    = "error"
)

// Renderer renders an HTML page made of base.html and {name}.html.
// Parsed views are cached per name.
type Renderer struct {
	fs fs.FS

	mu    sync.RWMutex
	views map[string]*template.Template
}

func NewRenderer(viewFS fs.FS) *Renderer {
	return &Renderer{
		fs:    viewFS,
		views: make(map[string]*template.Template),
	}
}

// Render executes the named page with data and returns the markup.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	tmpl, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render view %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.views[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := parse(r.fs, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.views[name] = tmpl
	r.mu.Unlock()

	return tmpl, nil
}

func parse(viewFS fs.FS, name string) (*template.Template, error) {
	// Names become file names, so no path separators or dots.
	if err := validateName(name); err != nil {
		return nil, err
	}

	tmpl, err := template.New(baseFilename).ParseFS(viewFS, baseFilename, name+".html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse view %s: %w", name, err)
	}

	return tmpl, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty view name")
	}
	for _, c := range name {
		if !validViewRune(c) {
			return fmt.Errorf("invalid character %q in view name: %s", c, name)
		}
	}
	return nil
}

func validViewRune(r rune) bool {
	return r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
