package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fieldjudge/internal/judge"
	"fieldjudge/internal/work"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func testUnit() work.Unit {
	return work.Unit{
		RecordID: "rec-1",
		Field:    "title",
		Value:    "Software Engineer",
		Evidence: "We are hiring a Software Engineer to join our team",
	}
}

func TestJudgeClassify(t *testing.T) {
	stub := &stubGenerator{response: `{"classification": "match", "explanation": "The evidence names the title verbatim."}`}
	j := NewJudge(stub, zap.NewNop(), 0)

	raw, err := j.Classify(context.Background(), testUnit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw.Label != "match" {
		t.Fatalf("unexpected label: %q", raw.Label)
	}
	if raw.Explanation == "" {
		t.Fatalf("expected explanation to be populated")
	}

	if !strings.Contains(stub.lastPrompt, "Field name: title") {
		t.Fatalf("expected field name in prompt, got: %s", stub.lastPrompt)
	}
	if !strings.Contains(stub.lastPrompt, "Field value: Software Engineer") {
		t.Fatalf("expected field value in prompt, got: %s", stub.lastPrompt)
	}
	if !strings.Contains(stub.lastPrompt, "We are hiring a Software Engineer") {
		t.Fatalf("expected evidence in prompt, got: %s", stub.lastPrompt)
	}
	if strings.Contains(stub.lastPrompt, "{{") {
		t.Fatalf("expected all substitution points to be filled, got: %s", stub.lastPrompt)
	}
}

func TestJudgeClassifyFencedJSON(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"classification\": \"unsure\", \"explanation\": \"no explicit salary figure in evidence\"}\n```"}
	j := NewJudge(stub, zap.NewNop(), 0)

	raw, err := j.Classify(context.Background(), testUnit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Label != "unsure" {
		t.Fatalf("unexpected label: %q", raw.Label)
	}
}

func TestJudgeClassifyTransportError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("connection reset")}
	j := NewJudge(stub, zap.NewNop(), 0)

	_, err := j.Classify(context.Background(), testUnit())
	var transport *judge.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestJudgeClassifySchemaErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
	}{
		{"not json", "the field matches the evidence"},
		{"missing label", `{"explanation": "looks fine"}`},
		{"missing explanation", `{"classification": "match"}`},
		{"invalid utf8", "{\"classification\": \"match\", \"explanation\": \"\xff\xfe\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubGenerator{response: tt.response}
			j := NewJudge(stub, zap.NewNop(), 0)

			_, err := j.Classify(context.Background(), testUnit())
			var schema *judge.SchemaError
			if !errors.As(err, &schema) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
		})
	}
}

func TestJudgeCustomTemplate(t *testing.T) {
	stub := &stubGenerator{response: `{"classification": "match", "explanation": "ok"}`}
	j := NewJudge(stub, zap.NewNop(), 0)
	j.RegisterTemplate("salary", "Check {{FIELD_NAME}}={{FIELD_VALUE}} against: {{EVIDENCE}}")

	unit := testUnit()
	unit.Template = "salary"

	if _, err := j.Classify(context.Background(), unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(stub.lastPrompt, "Check title=Software Engineer") {
		t.Fatalf("expected custom template to be used, got: %s", stub.lastPrompt)
	}
}

func TestJudgeUnknownTemplateFallsBack(t *testing.T) {
	stub := &stubGenerator{response: `{"classification": "match", "explanation": "ok"}`}
	j := NewJudge(stub, zap.NewNop(), 0)

	unit := testUnit()
	unit.Template = "does-not-exist"

	if _, err := j.Classify(context.Background(), unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stub.lastPrompt, "Field name: title") {
		t.Fatalf("expected fallback to the default template, got: %s", stub.lastPrompt)
	}
}

func TestSanitizeTemplate(t *testing.T) {
	dirty := "line\u00A0one\u2007here\r\nline\u202Ftwo\uFEFF"
	clean := sanitizeTemplate(dirty)

	if strings.ContainsAny(clean, "\u00A0\u2007\u202F\uFEFF\r") {
		t.Fatalf("expected unicode whitespace and CRLF to be normalized, got %q", clean)
	}
	if clean != "line one here\nline two " {
		t.Fatalf("unexpected sanitization result: %q", clean)
	}
}
