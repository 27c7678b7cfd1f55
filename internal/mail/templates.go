package mail

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrUnknownTemplate = errors.New("unknown mail template")

// Renderer renders the embedded HTML templates by name, without extension.
type Renderer struct {
	set *template.Template
}

func NewRenderer() (*Renderer, error) {
	set, err := template.New("mail").Option("missingkey=error").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{set: set}, nil
}

func (r *Renderer) Render(name string, data map[string]string) (string, error) {
	t := r.set.Lookup(strings.TrimSpace(name) + ".html")
	if t == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: render %s: %v", ErrMalformedTask, name, err)
	}
	return buf.String(), nil
}
