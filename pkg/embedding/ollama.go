package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
)

// Default connection settings for a local Ollama instance.
const (
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultOllamaTimeout = 30 * time.Second
	DefaultCacheSize     = 4096
)

// ollamaEmbedRequest is the Ollama /api/embed request body. Input accepts a
// single string or a batch; this provider always sends one string at a
// time so batching concurrency is controlled by BaseProvider.EmbedBatch
// rather than left to the server.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaProvider embeds text via a local or remote Ollama server's
// /api/embed endpoint. Requests are wrapped in a circuit breaker so a
// degraded model server fails fast instead of piling up blocked
// classification requests, and responses are cached by exact text in a
// bounded LRU, so Embed serves a repeated text from the cache until it is
// evicted. EmbedBatch does not consult the cache, though it fills it.
type OllamaProvider struct {
	client    *http.Client
	host      string
	model     string
	dim       int
	breaker   *gobreaker.CircuitBreaker
	cache     *lru.Cache[string, []float32]
	base      BaseProvider
}

// OllamaConfig configures an OllamaProvider.
type OllamaConfig struct {
	Host      string
	Model     string
	Dimension int
	Timeout   time.Duration
	CacheSize int
}

// NewOllamaProvider builds an OllamaProvider. It does not contact the
// server; the first Embed call establishes whether it is reachable, and
// the circuit breaker tracks subsequent health.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOllamaTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding: ollama provider requires a known dimension")
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding: building cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ollama-embed:" + cfg.Model,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	p := &OllamaProvider{
		client:  &http.Client{Timeout: cfg.Timeout},
		host:    cfg.Host,
		model:   cfg.Model,
		dim:     cfg.Dimension,
		breaker: breaker,
		cache:   cache,
	}
	p.base = NewBaseProvider(cfg.Dimension, MakeDescriptor(cfg.Model, cfg.Dimension), p.embedUncached)
	return p, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if cached, ok := p.cache.Get(text); ok {
		return cached, nil
	}
	return p.base.Embed(ctx, text)
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.EmbedBatch(ctx, texts)
}

func (p *OllamaProvider) Dimension() int { return p.dim }

func (p *OllamaProvider) Descriptor() string { return p.base.Descriptor() }

func (p *OllamaProvider) embedUncached(ctx context.Context, text string) ([]float32, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.callEmbed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, err
	}

	vec := result.([]float32)
	p.cache.Add(text, vec)
	return vec, nil
}

func (p *OllamaProvider) callEmbed(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{Model: p.model, Input: text}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: calling ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding: ollama returned no embeddings")
	}

	raw := result.Embeddings[0]
	if len(raw) != p.dim {
		return nil, fmt.Errorf("embedding: ollama returned dimension %d, expected %d", len(raw), p.dim)
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return normalizeVector(vec), nil
}
