package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general-purpose text embedding model.
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides detection (0 = detect from the first embedding).
	Dimensions int

	// BatchSize caps texts per request (default: 32).
	BatchSize int

	// Timeout bounds each request attempt (default: 30s).
	Timeout time.Duration

	// Retry is applied to each request. Zero value uses DefaultRetryConfig.
	Retry amerrors.RetryConfig

	// SkipHealthCheck skips the model check in the constructor (for tests).
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      DefaultOllamaHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     amerrors.DefaultRetryConfig(),
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings through Ollama's /api/embed.
// Requests are retried with backoff and guarded by a circuit breaker so a
// stopped server costs one fast failure per call instead of a full timeout.
type OllamaEmbedder struct {
	client  *http.Client
	config  OllamaConfig
	breaker *amerrors.CircuitBreaker

	mu     sync.RWMutex
	model  string
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder and, unless SkipHealthCheck is set,
// verifies the model is installed and detects its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = amerrors.DefaultRetryConfig()
	}

	// Per-attempt timeouts come from the context, not the client.
	e := &OllamaEmbedder{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}},
		config:  cfg,
		breaker: amerrors.NewCircuitBreaker("ollama-embed", amerrors.WithMaxFailures(3)),
		model:   cfg.Model,
		dims:    cfg.Dimensions,
	}

	if cfg.SkipHealthCheck {
		return e, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	model, err := e.findModel(probeCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	e.model = model

	if e.dims == 0 {
		vec, err := e.Embed(ctx, "dimension detection")
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.setDims(len(vec))
	}

	slog.Debug("ollama_embedder_ready",
		slog.String("model", e.model),
		slog.Int("dimensions", e.Dimensions()))
	return e, nil
}

// findModel resolves the configured model against the installed ones,
// accepting a match on the name without its tag.
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	names, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, name := range names {
		lower := strings.ToLower(name)
		if lower == want || strings.Split(lower, ":")[0] == wantBase {
			return name, nil
		}
	}
	return "", amerrors.New(amerrors.ErrCodeEmbeddingFailed,
		fmt.Sprintf("embedding model %s is not installed", e.config.Model), nil).
		WithSuggestion(fmt.Sprintf("Run: ollama pull %s", e.config.Model))
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, amerrors.NetworkError("failed to connect to Ollama", err).
			WithDetail("host", e.config.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, amerrors.NetworkError(
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// Embed generates the embedding for a single text.
// Blank text yields a zero vector without a request.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.Dimensions()), nil
	}

	vecs, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, amerrors.New(amerrors.ErrCodeEmbeddingFailed, "no embedding returned", nil)
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize requests. Blank texts get zero
// vectors and are not sent.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))
	var idx []int
	var pending []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))
		vecs, err := e.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vecs) != end-start {
			return nil, amerrors.New(amerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("expected %d embeddings, got %d", end-start, len(vecs)), nil)
		}
		for j, vec := range vecs {
			results[idx[start+j]] = vec
		}
	}

	for i := range results {
		if results[i] == nil {
			results[i] = make([]float32, e.Dimensions())
		}
	}
	return results, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	return amerrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
		return amerrors.Call(e.breaker, func() ([][]float32, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()
			return e.doEmbed(attemptCtx, texts)
		})
	})
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.ModelName(), Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, amerrors.New(amerrors.ErrCodeNetworkTimeout, "embedding request timed out", err)
		}
		return nil, amerrors.NetworkError("embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("embedding failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode >= 500 {
			return nil, amerrors.NetworkError(msg, nil)
		}
		return nil, amerrors.New(amerrors.ErrCodeEmbeddingFailed, msg, nil)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeEmbeddingFailed, "failed to decode embedding response", err)
	}

	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vecs[i] = normalizeVector(vec)
	}
	if len(vecs) > 0 && e.Dimensions() == 0 {
		e.setDims(len(vecs[0]))
	}
	return vecs, nil
}

func (e *OllamaEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

func (e *OllamaEmbedder) setDims(n int) {
	e.mu.Lock()
	e.dims = n
	e.mu.Unlock()
}

// Dimensions returns the embedding dimension, 0 until known.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the resolved model name.
func (e *OllamaEmbedder) ModelName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Available reports whether Ollama answers and the breaker is not open.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.checkOpen() != nil || !e.breaker.Allow() {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	_, err := e.listModels(probeCtx)
	return err == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
