package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taedam/internal/logging"
	"taedam/internal/shared/jsonx"
	"taedam/internal/xerrors"
)

// openaiClient speaks the OpenAI-compatible chat completions API.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     logging.Logger
}

// NewOpenAIClient constructs a client for the given model and endpoint.
func NewOpenAIClient(model string, config Config) Client {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := 60 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	return &openaiClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		headers:    config.Headers,
		logger:     logging.NewComponentLogger("llm-openai"),
	}
}

func (c *openaiClient) Model() string { return c.model }

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, xerrors.Permanent(fmt.Errorf("empty message list"), 0)
	}

	oaiReq := oaiRequest{
		Model:       c.model,
		Messages:    make([]oaiMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		oaiReq.Messages = append(oaiReq.Messages, oaiMessage{Role: m.Role, Content: m.Content})
	}

	body, err := jsonx.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("POST %s model=%s messages=%d", endpoint, c.model, len(req.Messages))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("llm request: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("read llm response: %w", err), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("llm status %d: %s", resp.StatusCode, truncate(string(raw), 300))
		if xerrors.TransientHTTPStatus(resp.StatusCode) {
			return nil, xerrors.Transient(err, resp.StatusCode)
		}
		return nil, xerrors.Permanent(err, resp.StatusCode)
	}

	var parsed oaiResponse
	if err := jsonx.Unmarshal(raw, &parsed); err != nil {
		return nil, xerrors.Transient(fmt.Errorf("decode llm response: %w", err), resp.StatusCode)
	}
	if parsed.Error != nil {
		return nil, xerrors.Permanent(fmt.Errorf("llm error: %s", parsed.Error.Message), resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, xerrors.Transient(fmt.Errorf("llm returned no choices"), resp.StatusCode)
	}

	choice := parsed.Choices[0]
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
