package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	texttemplate "text/template"
)

// TemplateElement identifies one rendered part of an email.
type TemplateElement string

const (
	ElementSubject TemplateElement = "subject"
	ElementText    TemplateElement = "text"
)

// Renderer turns a named email template into a Message body.
//
// Each email consists of two files in the template FS:
// {name}.tmpl with "subject" and "text" blocks (text/template), and
// {name}.html with the HTML alternative (html/template).
type Renderer struct {
	fs fs.FS
}

func NewRenderer(templates fs.FS) *Renderer {
	return &Renderer{fs: templates}
}

// Rendered is the output of Render, still missing the envelope addresses.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

func (r *Renderer) Render(name string, data any) (*Rendered, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	textTmpl, err := texttemplate.New(name).ParseFS(r.fs, name+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse %s.tmpl: %w", name, err)
	}

	subject, err := executeText(textTmpl, ElementSubject, data)
	if err != nil {
		return nil, err
	}

	text, err := executeText(textTmpl, ElementText, data)
	if err != nil {
		return nil, err
	}

	htmlTmpl, err := htmltemplate.New(name+".html").ParseFS(r.fs, name+".html")
	if err != nil {
		return nil, fmt.Errorf("parse %s.html: %w", name, err)
	}

	var html bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render %s.html: %w", name, err)
	}

	return &Rendered{
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func executeText(tmpl *texttemplate.Template, element TemplateElement, data any) (string, error) {
	t := tmpl.Lookup(string(element))
	if t == nil {
		return "", fmt.Errorf("missing %s template", element)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", element, err)
	}

	return buf.String(), nil
}

// validateName keeps template names to alphanumerics, dashes and underscores
// since they are turned into file names.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty template name")
	}
	for _, c := range name {
		if c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return fmt.Errorf("invalid character %q in template name: %s", c, name)
	}
	return nil
}
