package assets

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed emails/*
var emailFS embed.FS

var (
	// TemplateFS holds the HTML pages rendered by the web layer.
	TemplateFS fs.FS
	// EmailFS holds the confirmation email templates.
	EmailFS fs.FS
)

func init() {
	var err error

	TemplateFS, err = fs.Sub(templateFS, "templates")
	if err != nil {
		panic("failed to subtree template FS " + err.Error())
	}

	EmailFS, err = fs.Sub(emailFS, "emails")
	if err != nil {
		panic("failed to subtree email FS " + err.Error())
	}
}
