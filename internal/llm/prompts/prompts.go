// Package prompts renders the LLM prompts used for question and distractor
// generation from embedded text templates.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

// MaxTextRunes caps the source text placed into a prompt.
const MaxTextRunes = 10000

//go:embed templates/*.txt
var embedded embed.FS

var sourceTagRegex = regexp.MustCompile(`(?i)</?\s*source-text\b[^>]*>`)

// Kind names a prompt template.
type Kind string

const (
	KindGenerate    Kind = "generate"
	KindDistractors Kind = "distractors"
)

var kinds = []Kind{KindGenerate, KindDistractors}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Kind]*template.Template
)

// GenerateData holds template data for question generation prompts.
type GenerateData struct {
	Text  string
	Count int
}

// DistractorData holds template data for distractor prompts.
type DistractorData struct {
	Question string
	Answer   string
	Context  string
	Count    int
}

// Load parses the prompt templates from fsys. Only the first call has an
// effect; later calls return the first result.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		parsed := make(map[Kind]*template.Template, len(kinds))
		for _, k := range kinds {
			name := "templates/" + string(k) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(k)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			parsed[k] = tmpl
		}
		templates = parsed
	})
	return loadErr
}

func render(k Kind, data any) (string, error) {
	if err := Load(embedded); err != nil {
		return "", err
	}
	tmpl, ok := templates[k]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", k)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", k, err)
	}
	return buf.String(), nil
}

// BuildGeneratePrompt returns the system prompt asking for count questions about text.
func BuildGeneratePrompt(text string, count int) (string, error) {
	if count < 1 {
		count = 1
	}
	return render(KindGenerate, GenerateData{Text: Sanitize(text), Count: count})
}

// BuildDistractorPrompt returns the system prompt asking for count wrong
// options for a question.
func BuildDistractorPrompt(question, answer, context string, count int) (string, error) {
	if count < 1 {
		count = 1
	}
	return render(KindDistractors, DistractorData{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
		Context:  Sanitize(context),
		Count:    count,
	})
}

// Sanitize strips source-text delimiters from user-supplied text and
// truncates it to MaxTextRunes.
func Sanitize(text string) string {
	text = sourceTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[No text provided]"
	}

	if utf8.RuneCountInString(text) > MaxTextRunes {
		runes := []rune(text)
		text = string(runes[:MaxTextRunes]) + "\n\n[Text truncated due to length]"
	}
	return text
}
