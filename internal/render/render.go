// Package render turns stored message templates into send-ready content.
package render

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rzbill/courier/internal/store"
)

// Message is rendered content ready to hand to a sender.
type Message struct {
	Title string
	Body  string
}

// Renderer produces a Message for a template and a set of variables.
type Renderer interface {
	Render(ctx context.Context, templateID int64, vars map[string]string) (Message, error)
}

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// TemplateRenderer loads templates from the store and substitutes
// {{name}} placeholders. Placeholders with no matching variable are left
// intact so a missing variable is visible in the delivered message rather
// than silently blanked.
type TemplateRenderer struct {
	store *store.Store
}

// NewTemplateRenderer builds a store-backed renderer.
func NewTemplateRenderer(s *store.Store) *TemplateRenderer {
	return &TemplateRenderer{store: s}
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(ctx context.Context, templateID int64, vars map[string]string) (Message, error) {
	mt, err := r.store.Template(ctx, templateID)
	if err != nil {
		return Message{}, fmt.Errorf("render: %w", err)
	}
	return Message{
		Title: substitute(mt.Title, vars),
		Body:  substitute(mt.Body, vars),
	}, nil
}

func substitute(s string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}
