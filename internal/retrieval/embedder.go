package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"taedam/internal/shared/jsonx"
	"taedam/internal/xerrors"
)

// EmbedderConfig configures the embedding backend.
type EmbedderConfig struct {
	Model     string // default text-embedding-3-small
	APIKey    string
	BaseURL   string // default OpenAI
	CacheSize int    // LRU entries, default 4096
}

// Embedder generates text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// openaiEmbedder calls an OpenAI-compatible embeddings endpoint with an LRU
// cache in front. Evidence queries repeat heavily across turns.
type openaiEmbedder struct {
	config     EmbedderConfig
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
}

// NewEmbedder constructs the default HTTP embedder.
func NewEmbedder(config EmbedderConfig) (Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.CacheSize == 0 {
		config.CacheSize = 4096
	}
	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &openaiEmbedder{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	body, err := jsonx.Marshal(map[string]any{
		"model": e.config.Model,
		"input": []string{text},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("embeddings request: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embeddings status %d", resp.StatusCode)
		if xerrors.TransientHTTPStatus(resp.StatusCode) {
			return nil, xerrors.Transient(err, resp.StatusCode)
		}
		return nil, xerrors.Permanent(err, resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := jsonx.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings returned no data")
	}

	e.cache.Add(text, parsed.Data[0].Embedding)
	return parsed.Data[0].Embedding, nil
}
