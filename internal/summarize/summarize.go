// Package summarize produces document summaries with a local LLM.
//
// Summaries are an enrichment: when the model cannot be reached the caller
// stores Unavailable(err) in place of a summary and carries on.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/amanread/internal/config"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

const (
	// DefaultModel is a small instruction model that runs on a laptop.
	DefaultModel = "llama3.2:3b"

	// DefaultTimeout bounds one summary request.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxContentLength caps the characters sent to the model.
	DefaultMaxContentLength = 50000

	// MaxTokens caps the generated summary.
	MaxTokens = 300

	// Temperature keeps summaries close to the source.
	Temperature = 0.3

	probeTimeout = 2 * time.Second
)

// Summarizer turns a document into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text, title string) (string, error)
	Available(ctx context.Context) bool
}

// Unavailable is the summary stored when summarization failed.
func Unavailable(err error) string {
	reason := "summarizer unavailable"
	if err != nil {
		reason = err.Error()
	}
	return fmt.Sprintf("[Summary unavailable: %s]", reason)
}

// Disabled never summarizes.
type Disabled struct{}

var _ Summarizer = Disabled{}

func (Disabled) Summarize(context.Context, string, string) (string, error) {
	return "", amerrors.New(amerrors.ErrCodeSummaryFailed, "summarization is disabled", nil)
}

func (Disabled) Available(context.Context) bool { return false }

// OllamaConfig configures the Ollama summarizer.
type OllamaConfig struct {
	Host             string
	Model            string
	Timeout          time.Duration
	MaxContentLength int
}

// ConfigFrom maps the summarizer section of the configuration.
func ConfigFrom(cfg config.SummarizerConfig) OllamaConfig {
	return OllamaConfig{
		Host:             cfg.OllamaHost,
		Model:            cfg.Model,
		Timeout:          cfg.Timeout,
		MaxContentLength: cfg.MaxContentLength,
	}
}

// New returns the summarizer the configuration asks for.
func New(cfg config.SummarizerConfig) Summarizer {
	if !cfg.Enabled {
		return Disabled{}
	}
	return NewOllama(ConfigFrom(cfg))
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Ollama summarizes through /api/generate. A circuit breaker stops every
// enrichment worker from waiting out the full timeout while Ollama is down.
type Ollama struct {
	client  *http.Client
	config  OllamaConfig
	breaker *amerrors.CircuitBreaker
}

var _ Summarizer = (*Ollama)(nil)

// NewOllama creates an Ollama summarizer, filling zero fields with defaults.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.Host == "" {
		cfg.Host = config.DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	return &Ollama{
		client:  &http.Client{},
		config:  cfg,
		breaker: amerrors.NewCircuitBreaker("ollama-generate", amerrors.WithMaxFailures(3)),
	}
}

// Summarize asks the model for a two to three paragraph summary.
func (o *Ollama) Summarize(ctx context.Context, text, title string) (string, error) {
	start := time.Now()
	summary, err := amerrors.Call(o.breaker, func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
		return o.generate(callCtx, buildPrompt(truncate(text, o.config.MaxContentLength), title))
	})
	if err != nil {
		if errors.Is(err, amerrors.ErrCircuitOpen) {
			return "", amerrors.New(amerrors.ErrCodeSummaryFailed, "summarizer circuit open", err)
		}
		return "", err
	}

	slog.Debug("summary_generated",
		slog.String("model", o.config.Model),
		slog.Int("chars", len(summary)),
		slog.Duration("duration", time.Since(start)))
	return summary, nil
}

func (o *Ollama) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  MaxTokens,
			Temperature: Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", amerrors.New(amerrors.ErrCodeNetworkTimeout, "summary request timed out", err)
		}
		return "", amerrors.NetworkError("summary request failed", err).WithDetail("host", o.config.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", amerrors.New(amerrors.ErrCodeSummaryFailed,
			fmt.Sprintf("summary failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", amerrors.New(amerrors.ErrCodeSummaryFailed, "failed to decode summary response", err)
	}
	summary := strings.TrimSpace(result.Response)
	if summary == "" {
		return "", amerrors.New(amerrors.ErrCodeSummaryFailed, "model returned an empty summary", nil)
	}
	return summary, nil
}

// Available reports whether Ollama answers /api/tags.
func (o *Ollama) Available(ctx context.Context) bool {
	if !o.breaker.Allow() {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, o.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func buildPrompt(content, title string) string {
	return fmt.Sprintf(`Summarize the following article in 2-3 concise paragraphs.
Focus on the key points, main arguments, and conclusions.

Title: %s

Article:
%s

Summary:`, title, content)
}

// truncate cuts text to n runes and marks the cut.
func truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}
