// Package hosted implements an intent classifier backed by a hosted chat
// model. The model is asked for a JSON object and its reply is validated
// against a JSON Schema whose intent field is an enum of the closed label
// set; anything else is rejected as a classification fault.
package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/message"
)

const schemaURL = "voicedesk://intent.schema.json"

// Classifier asks an llm.Completer to pick one label.
type Classifier struct {
	completer llm.Completer
	schema    *jsonschema.Schema
	system    string
}

// New compiles the reply schema for the current label set.
func New(completer llm.Completer) (*Classifier, error) {
	schema, err := compileSchema(intent.Labels())
	if err != nil {
		return nil, fmt.Errorf("compiling intent schema: %w", err)
	}
	return &Classifier{
		completer: completer,
		schema:    schema,
		system:    buildSystemPrompt(intent.Labels()),
	}, nil
}

// Name returns the classifier identifier.
func (c *Classifier) Name() string { return "hosted:" + c.completer.Name() }

// Classify returns the model's label and rationale.
func (c *Classifier) Classify(ctx context.Context, u message.Utterance) (*intent.Result, error) {
	const op = "hosted.classify"

	raw, err := c.completer.Complete(ctx, llm.Request{
		System:      c.system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: u.Text()}},
		JSON:        true,
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, fault.E(fault.KindClassification, op, err)
	}

	reply, err := c.decode(raw)
	if err != nil {
		slog.Warn("model reply rejected", "provider", c.completer.Name(), "error", err, "reply", truncate(raw, 200))
		return nil, fault.E(fault.KindClassification, op, err)
	}

	label, err := intent.Parse(reply.Intent)
	if err != nil {
		return nil, fault.E(fault.KindClassification, op, err)
	}

	return &intent.Result{
		Utterance: u,
		Label:     label,
		Rationale: strings.TrimSpace(reply.Rationale),
		Source:    intent.SourceHosted,
	}, nil
}

type reply struct {
	Intent    string `json:"intent"`
	Rationale string `json:"rationale"`
}

// decode strips an optional markdown fence, then validates before
// unmarshalling into the typed reply.
func (c *Classifier) decode(raw string) (*reply, error) {
	text := llm.StripFences(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("reply is not JSON: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("reply does not match schema: %w", err)
	}

	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return &r, nil
}

// --- Internal helpers ---

func compileSchema(labels []intent.Label) (*jsonschema.Schema, error) {
	enum := make([]string, len(labels))
	for i, l := range labels {
		enum[i] = string(l)
	}
	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"intent", "rationale"},
		"properties": map[string]any{
			"intent":    map[string]any{"type": "string", "enum": enum},
			"rationale": map[string]any{"type": "string", "maxLength": 500},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(string(data))); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
}

func buildSystemPrompt(labels []intent.Label) string {
	var sb strings.Builder
	sb.WriteString("You classify customer messages sent to a bank's help desk.\n")
	sb.WriteString("Messages may be in English, Hindi or a mix of both (Hinglish).\n")
	sb.WriteString("Pick exactly one category from this list, spelled exactly as shown:\n")
	for _, l := range labels {
		sb.WriteString("- " + string(l) + "\n")
	}
	sb.WriteString("\nIf nothing fits, use \"" + string(intent.GeneralQuery) + "\".\n")
	sb.WriteString("Respond ONLY with a JSON object, no markdown:\n")
	sb.WriteString(`{"intent": "<category>", "rationale": "<one short sentence>"}` + "\n")
	return sb.String()
}

// truncate caps s at n bytes without splitting a character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
