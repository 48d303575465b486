package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Message kinds with a template under templates/.
const (
	KindWelcome = "welcome"
)

// MessageData is the template input.
type MessageData struct {
	StoreName string
	Name      string
	Email     string
	BaseURL   string
	CreatedAt time.Time
}

// Renderer renders notification bodies from embedded templates.
type Renderer struct {
	templates map[string]*template.Template
	subjects  map[string]string
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"greeting":   greeting,
		"formatTime": formatTime,
	}

	r := &Renderer{
		templates: make(map[string]*template.Template),
		subjects: map[string]string{
			KindWelcome: "Welcome to %s",
		},
	}

	for kind := range r.subjects {
		filename := fmt.Sprintf("templates/%s.tmpl", kind)
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(kind).Funcs(funcMap).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", kind, err)
		}
		r.templates[kind] = tmpl
	}

	return r, nil
}

// Render returns subject and body for the given kind.
func (r *Renderer) Render(kind string, data MessageData) (subject, body string, err error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", kind, err)
	}

	return fmt.Sprintf(r.subjects[kind], data.StoreName), strings.TrimSpace(buf.String()), nil
}

var titleCaser = cases.Title(language.English)

// greeting title-cases a display name, falling back to "there".
func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "there"
	}
	return titleCaser.String(name)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}
