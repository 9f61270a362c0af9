// Package llmclient assembles per-entry-kind prompts and calls the local
// LLM HTTP endpoint (spec.md §4.D). There is deliberately no application
// -level request timeout: per spec.md §7, a stuck LLM call should fail from
// the underlying transport (the runner's own cancellation still applies
// through the context it passes in), not from a client-side clock this
// package would otherwise have to guess at.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/errors"
	"github.com/jrnl/voicejournal/internal/logging"
	"github.com/jrnl/voicejournal/internal/privacy"
)

var serviceLogger = logging.ForService("llmclient")

const (
	generateTemperature = 0.7
	generateNumPredict  = 4096
)

// Result is what Generate returns: exactly one of Content (brain-dump) or
// Reflection (daily-reflection) is populated, matching which kind was
// requested.
type Result struct {
	Content    string
	Reflection string
}

// Config points the client at a running local LLM endpoint (typically
// Ollama) and names the model to invoke.
type Config struct {
	BaseURL string
	Model   string
}

// Client drives prompt assembly and the HTTP call for one entry.
type Client struct {
	Config     Config
	HTTPClient *http.Client
}

// New builds a Client. The HTTP client carries no Timeout field, since an
// application-level deadline is explicitly out of scope; cancellation
// flows only through the context passed to Generate.
func New(cfg Config) *Client {
	return &Client{Config: cfg, HTTPClient: &http.Client{}}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate is the public operation: generate(transcript, promptAnswers,
// kind) -> {content?, reflection?}. brain-dump and daily-reflection each
// assemble their own prompt shape and populate the matching Result field;
// quick-note makes no call and returns an empty Result, since a quick-note
// entry never reaches the generating stage in the first place.
func (c *Client) Generate(ctx context.Context, kind, transcript string, answers datastore.JSONMap[datastore.PromptAnswer]) (*Result, error) {
	var prompt string
	switch kind {
	case datastore.KindBrainDump:
		prompt = buildBrainDumpPrompt(transcript)
	case datastore.KindDailyReflection:
		prompt = buildDailyReflectionPrompt(answers)
	case datastore.KindQuickNote:
		return &Result{}, nil
	default:
		return nil, errors.Newf("llmclient: unsupported kind %q", kind).
			Component("llmclient").
			Category(errors.CategoryValidation).
			Build()
	}

	serviceLogger.Debug("generating", "kind", kind, "model", c.Config.Model, "prompt", privacy.ScrubText(prompt))

	raw, err := c.callGenerate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	serviceLogger.Debug("generated", "kind", kind, "response", privacy.ScrubText(raw))

	result := &Result{}
	switch kind {
	case datastore.KindBrainDump:
		result.Content = raw
	case datastore.KindDailyReflection:
		result.Reflection = raw
	}
	return result, nil
}

// callGenerate posts to {base_url}/api/generate and extracts the response
// field. Non-2xx and transport errors both surface as a retriable runtime
// failure (CategoryLLM): the job runner decides whether and how to retry,
// this client just reports what happened.
func (c *Client) callGenerate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.Config.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: generateTemperature,
			NumPredict:  generateNumPredict,
		},
	})
	if err != nil {
		return "", errors.New(err).
			Component("llmclient").
			Category(errors.CategoryLLM).
			Context("operation", "marshal_request").
			Build()
	}

	url := c.Config.BaseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.New(err).
			Component("llmclient").
			Category(errors.CategoryLLM).
			Context("operation", "build_request").
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.New(err).
			Component("llmclient").
			Category(errors.CategoryLLM).
			Context("operation", "do_request").
			Context("url", url).
			Build()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.New(err).
			Component("llmclient").
			Category(errors.CategoryLLM).
			Context("operation", "read_response").
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Newf("llm endpoint returned status %d", resp.StatusCode).
			Component("llmclient").
			Category(errors.CategoryLLM).
			Context("operation", "do_request").
			Context("status_code", resp.StatusCode).
			Context("url", url).
			Context("body", privacy.ScrubText(string(respBody))).
			Build()
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.New(err).
			Component("llmclient").
			Category(errors.CategoryLLM).
			Context("operation", "decode_response").
			Context("body", privacy.ScrubText(string(respBody))).
			Build()
	}

	return parsed.Response, nil
}
