package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	// UnavailableResponse is returned without invoking the model when no
	// grounding context was retrieved.
	UnavailableResponse = "## Information Not Available\n\nThe answer to this question was not found in the ingested documents. Try rephrasing the question, or verify that the relevant document has been ingested."

	// SystemErrorResponse is returned when the model invocation fails.
	SystemErrorResponse = "## System Error\n\nWe encountered an error while generating the answer. Please try again."

	// InitializingResponse is returned while storage is not ready yet.
	InitializingResponse = "## Please Wait\n\nThe system is initializing. Please try again in a few moments."
)

const promptTemplate = `You are a documentation assistant. Answer the question using ONLY the context below.

Rules:
1. Use only information found in the context. Never answer from general knowledge.
2. If the question is unrelated to the documents, or the context is insufficient, reply with a "## Information Not Available" heading followed by one sentence explaining that the answer is not in the documents.
3. Structure every in-scope answer with markdown: open with a "## " heading, use "- " bullets for enumerations, and **bold** for key terms.
4. Do not mention page numbers; they are reported separately.

Context:
%s

Conversation so far:
%s

Question: %s

Answer:`

// Model is the single-shot generation model. No retries here: retrying, if
// wanted at all, belongs to the transport layer.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Generator struct {
	model Model
}

func NewGenerator(model Model) *Generator {
	return &Generator{model: model}
}

// Generate produces the answer text for a question. The model is never
// invoked without grounding context; that boundary is enforced here, not
// just in the prompt.
func (g *Generator) Generate(ctx context.Context, contextText, history, question string) string {
	if strings.TrimSpace(contextText) == "" {
		return UnavailableResponse
	}

	if strings.TrimSpace(history) == "" {
		history = "(none)"
	}

	prompt := fmt.Sprintf(promptTemplate, contextText, history, question)

	raw, err := g.model.Generate(ctx, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "generation model invocation failed", "error", err)
		return SystemErrorResponse
	}

	return postProcess(raw)
}

// FormatHistory renders prior successful turns, oldest first, as paired
// lines for the prompt.
func FormatHistory(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("User: ")
		b.WriteString(t.QuestionRaw)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.AnswerText)
		b.WriteString("\n")
	}
	return b.String()
}

var (
	excessBlankRe = regexp.MustCompile(`\n{4,}`)
	parenPageRe   = regexp.MustCompile(`\s*\((?:[Pp]age|[Pp]g\.?)\s*\d+(?:\s*[-,]\s*\d+)*\)`)
	trailPageRe   = regexp.MustCompile(`(?m)[ \t]*(?:[Oo]n|[Ss]ee)?[ \t]*[Pp]age[ \t]+\d+[ \t]*\.?[ \t]*$`)
)

// postProcess cleans raw model output: block spacing, blank-line collapse,
// trim, then page-reference stripping. Page numbers are surfaced out of
// band, so inline "Page N" fragments are noise.
func postProcess(raw string) string {
	out := normalizeBlockSpacing(raw)
	out = excessBlankRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)
	out = parenPageRe.ReplaceAllString(out, "")
	out = trailPageRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// normalizeBlockSpacing makes sure headings and bullet runs are separated
// from surrounding prose by blank lines.
func normalizeBlockSpacing(s string) string {
	lines := strings.Split(s, "\n")
	var out []string

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		heading := strings.HasPrefix(trimmed, "#")
		bullet := isBullet(trimmed)

		if len(out) > 0 {
			prev := strings.TrimSpace(out[len(out)-1])
			if heading && prev != "" {
				out = append(out, "")
			}
			if bullet && prev != "" && !isBullet(prev) {
				out = append(out, "")
			}
		}

		out = append(out, line)

		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if heading && next != "" {
				out = append(out, "")
			}
			if bullet && next != "" && !isBullet(next) {
				out = append(out, "")
			}
		}
	}

	return strings.Join(out, "\n")
}

func isBullet(trimmed string) bool {
	return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ")
}
