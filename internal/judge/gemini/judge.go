package gemini

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	_ "embed"

	"fieldjudge/internal/judge"
	"fieldjudge/internal/utils"
	"fieldjudge/internal/work"

	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Judge validates field values against evidence through a Gemini model.
type Judge struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	templates map[string]string
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultTemplateName = "default"
	defaultMaxLogLength = 200
)

func NewJudge(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Judge{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		templates: map[string]string{defaultTemplateName: promptTemplate},
	}
}

// RegisterTemplate adds or replaces a named prompt template.
func (j *Judge) RegisterTemplate(name, text string) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(text) == "" {
		return
	}
	j.templates[name] = text
}

// Classify renders the prompt for the unit, invokes the model and parses the
// response against the expected schema.
func (j *Judge) Classify(ctx context.Context, unit work.Unit) (*judge.RawVerdict, error) {
	prompt := j.buildPrompt(unit)

	j.logger.Debug("gemini classify request",
		zap.String("record_id", unit.RecordID),
		zap.String("field", unit.Field),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, &judge.TransportError{Op: "generate content", Err: err}
	}

	j.logger.Debug("gemini classify response",
		zap.String("record_id", unit.RecordID),
		zap.String("field", unit.Field),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
	)

	return parseResponse(raw)
}

func (j *Judge) buildPrompt(unit work.Unit) string {
	name := strings.TrimSpace(unit.Template)
	if name == "" {
		name = defaultTemplateName
	}

	template, ok := j.templates[name]
	if !ok {
		j.logger.Debug("unknown prompt template, using default", zap.String("template", name))
		template = j.templates[defaultTemplateName]
	}

	template = sanitizeTemplate(template)

	prompt := strings.ReplaceAll(template, "{{FIELD_NAME}}", unit.Field)
	prompt = strings.ReplaceAll(prompt, "{{FIELD_VALUE}}", unit.Value)
	prompt = strings.ReplaceAll(prompt, "{{EVIDENCE}}", unit.Evidence)
	return prompt
}

// badWhitespace lists Unicode spaces that break block formatting when templates
// pass through editors like Word or Notion.
var badWhitespace = []string{
	"\u00A0", // NO-BREAK SPACE
	"\u2007", // FIGURE SPACE
	"\u202F", // NARROW NO-BREAK SPACE
	"\uFEFF", // BOM
}

func sanitizeTemplate(text string) string {
	for _, ch := range badWhitespace {
		text = strings.ReplaceAll(text, ch, " ")
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

type response struct {
	Classification string `json:"classification"`
	Explanation    string `json:"explanation"`
}

func parseResponse(raw string) (*judge.RawVerdict, error) {
	if !utf8.ValidString(raw) {
		return nil, &judge.SchemaError{Reason: "response is not valid UTF-8", Raw: raw}
	}

	cleaned := extractJSON(raw)

	var parsed response
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &judge.SchemaError{Reason: "response is not valid JSON", Raw: raw, Err: err}
	}

	label := strings.TrimSpace(parsed.Classification)
	if label == "" {
		return nil, &judge.SchemaError{Reason: "classification label is missing", Raw: raw}
	}

	explanation := strings.TrimSpace(parsed.Explanation)
	if explanation == "" {
		return nil, &judge.SchemaError{Reason: "explanation is missing", Raw: raw}
	}

	return &judge.RawVerdict{
		Label:       label,
		Explanation: explanation,
		Raw:         raw,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

var _ judge.Judge = (*Judge)(nil)

// Model reports the underlying model name when the generator exposes it.
func (j *Judge) Model() string {
	if m, ok := j.generator.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
