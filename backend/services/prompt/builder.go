package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/upb/butterfly-chat/backend/models"
)

// templateData is what the template body can reference
type templateData struct {
	Domain   string
	Context  string
	Question string
}

// Builder renders the system message for one request. It is immutable after
// construction and safe for concurrent use.
type Builder struct {
	tmpl     *template.Template
	domain   string
	language string
}

// NewBuilder parses t once. A body that does not parse or does not reference
// both the context and the question is rejected.
func NewBuilder(t Template) (*Builder, error) {
	if strings.TrimSpace(t.Body) == "" {
		return nil, fmt.Errorf("prompt template body is empty")
	}
	if strings.TrimSpace(t.Domain) == "" {
		return nil, fmt.Errorf("prompt template domain is empty")
	}
	for _, field := range []string{".Context", ".Question"} {
		if !strings.Contains(t.Body, field) {
			return nil, fmt.Errorf("prompt template must reference {{%s}}", field)
		}
	}

	name := t.Name
	if name == "" {
		name = "system"
	}
	parsed, err := template.New(name).Option("missingkey=error").Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}

	return &Builder{
		tmpl:     parsed,
		domain:   t.Domain,
		language: t.Language,
	}, nil
}

// Build renders the system message. Empty context or question are passed
// through verbatim.
func (b *Builder) Build(context, question string) (models.Message, error) {
	var sb strings.Builder
	err := b.tmpl.Execute(&sb, templateData{
		Domain:   b.domain,
		Context:  context,
		Question: question,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	return models.NewSystemMessage(sb.String()), nil
}

// Domain returns the subject the prompt restricts answers to
func (b *Builder) Domain() string {
	return b.domain
}

// Language returns the language tag of the template
func (b *Builder) Language() string {
	return b.language
}
