// Package prompt renders the instruction prompt sent to the generative model.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"eventbot/internal/domain"
)

// DefaultTemplate has exactly two substitution points: the retrieved context
// and the user's question.
const DefaultTemplate = `You are a friendly Event Information Assistant. Your purpose is to answer questions about the event described in the context below. Follow these guidelines:

1. You may answer basic greetings such as "hi", "hello" or "how are you" warmly.
2. For event information, only give details that are present in the context.
3. If the information is not in the context, say "I'm sorry, I don't have that specific information about the event".
4. Keep answers concise but conversational.
5. Do not make assumptions beyond what the context states.
6. Prioritise factual accuracy while keeping a helpful tone.
7. Do not introduce information that is not in the context.
8. If you are unsure, acknowledge the uncertainty rather than guess.
9. You may suggest a few general questions the user could ask about the event.
10. Keep a warm, friendly tone.
11. Refer to yourself as "Event Bot".
12. Do not greet the user unless the user greeted you.

Your main role is giving accurate information about this specific event based on the context provided.

Context information about the event:
{{.Context}}
--------

Now, please answer this question about the event: {{.Question}}
`

// Builder fills the prompt template.
type Builder struct {
	tmpl *template.Template
}

type data struct {
	Context  string
	Question string
}

// New parses text as the prompt template. Both placeholders must be present.
func New(text string) (*Builder, error) {
	for _, p := range []string{"{{.Context}}", "{{.Question}}"} {
		if !strings.Contains(text, p) {
			return nil, domain.Configf("prompt template is missing %s", p)
		}
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &domain.ConfigError{Msg: "parsing prompt template", Err: err}
	}
	return &Builder{tmpl: tmpl}, nil
}

// Load returns the builder for path, or for DefaultTemplate when path is empty.
func Load(path string) (*Builder, error) {
	if path == "" {
		return New(DefaultTemplate)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Msg: "reading prompt template", Err: err}
	}
	return New(string(raw))
}

// Build substitutes context and question verbatim. An empty context is allowed.
func (b *Builder) Build(context, question string) (string, error) {
	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, data{Context: context, Question: question}); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}
