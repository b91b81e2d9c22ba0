package email

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateCartReminder      = "cart_reminder"
)

// Renderer renders named email templates. Every template defines a
// "<name>.subject" and a "<name>.body" block.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("email").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(name string, data map[string]any) (subject, body string, err error) {
	if r.tmpl.Lookup(name+".subject") == nil {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	subject, err = r.execute(name+".subject", data)
	if err != nil {
		return "", "", err
	}
	body, err = r.execute(name+".body", data)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject), strings.TrimSpace(body), nil
}

func (r *Renderer) execute(name string, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), nil
}
