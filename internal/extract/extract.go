// Package extract turns free-text exercise descriptions into candidate
// simulation parameter sets by prompting a language model and parsing
// its structured reply.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dverner/edusim/internal/llm"
	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/template"
)

// Response is the documented reply schema the model must produce.
type Response struct {
	SimulationType string           `json:"simulation_type"`
	Parameters     params.Candidate `json:"parameters"`
	Objects        []ResponseObject `json:"objects"`
}

// ResponseObject is the model's sketch of a scene object. It is
// informational; the authoritative object list comes from the template.
type ResponseObject struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Radius   float64        `json:"radius"`
	Position template.Point `json:"position"`
}

// Result is a parsed extraction: the candidate parameter set plus the
// simulation type the model identified.
type Result struct {
	SimulationType string
	Candidate      params.Candidate
	Objects        []ResponseObject
}

// Extractor prompts a Generator and parses the reply. It performs no
// retries and never guesses missing values; retry policy belongs to
// the caller.
type Extractor struct {
	gen llm.Generator
}

func New(gen llm.Generator) *Extractor {
	return &Extractor{gen: gen}
}

// RenderPrompt substitutes the exercise text into the template's
// prompt. The template prompt documents the reply schema inline.
func RenderPrompt(tpl *template.Template, exerciseText string) string {
	return strings.ReplaceAll(tpl.Prompt, template.PromptSlot, exerciseText)
}

// Extract runs one synchronous extraction. Model invocation failure
// maps to ErrUnavailable; a reply that does not match the schema maps
// to ErrParse. Either way the exercise degrades to manual entry rather
// than failing the session.
func (e *Extractor) Extract(ctx context.Context, tpl *template.Template, exerciseText string) (*Result, error) {
	prompt := RenderPrompt(tpl, exerciseText)

	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	slog.Debug("extraction parsed",
		"template", tpl.ID,
		"simulation_type", res.SimulationType,
		"parameters", len(res.Candidate))
	return res, nil
}

// parseResponse locates the first JSON object in the reply and decodes
// it strictly against the documented schema. Models often wrap JSON in
// prose or code fences; everything outside the outermost braces is
// ignored.
func parseResponse(raw string) (*Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrParse)
	}

	var resp Response
	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %.200s)", ErrParse, err, raw)
	}
	if resp.SimulationType == "" {
		return nil, fmt.Errorf("%w: missing simulation_type", ErrParse)
	}
	if len(resp.Parameters) == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrParse)
	}

	return &Result{
		SimulationType: resp.SimulationType,
		Candidate:      resp.Parameters,
		Objects:        resp.Objects,
	}, nil
}

// Outcome is the completion signal of an asynchronous extraction.
type Outcome struct {
	Result *Result
	Err    error
}

// ExtractAsync runs Extract on a background goroutine and delivers the
// outcome on a one-shot buffered channel, so the interactive loop stays
// responsive while the model call is outstanding. Cancelling ctx makes
// the pending extraction stop waiting and discard its result; nothing
// is delivered in that case beyond the context error.
func (e *Extractor) ExtractAsync(ctx context.Context, tpl *template.Template, exerciseText string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		res, err := e.Extract(ctx, tpl, exerciseText)
		ch <- Outcome{Result: res, Err: err}
		close(ch)
	}()
	return ch
}
