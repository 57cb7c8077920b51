package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIBase     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxRetries  = 3
)

// OpenAIProvider speaks the OpenAI-compatible chat completions API. It also
// works against local gateways that mirror it.
type OpenAIProvider struct {
	name       string
	apiKey     string
	apiBase    string
	model      string
	maxRetries int
	retryBase  time.Duration
	client     *http.Client
	log        *zap.Logger
}

type OpenAIConfig struct {
	// Name labels the provider in logs and metrics. Defaults to "openai".
	Name    string
	APIKey  string
	APIBase string
	Model   string
	// MaxRetries is the number of retries on transient errors. Negative disables them.
	MaxRetries int
	// RetryBase is the first backoff step. Defaults to one second.
	RetryBase time.Duration
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &OpenAIProvider{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		client:     &http.Client{Timeout: cfg.Timeout},
		log:        cfg.Logger.With(zap.String("provider", cfg.Name)),
	}
}

func (o *OpenAIProvider) Name() string { return o.name }

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Model   string      `json:"model"`
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	var msgs []oaiMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, oaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, oaiMessage{Role: "user", Content: req.UserPrompt})

	body := oaiRequest{Model: o.model, Messages: msgs}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}
		return httpReq, nil
	}

	resp, err := doWithRetry(ctx, o.client, o.maxRetries, o.retryBase, buildReq, o.log)
	if err != nil {
		return Response{}, fmt.Errorf("%s request: %w", o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("%s %d: %s", o.name, resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return Response{}, fmt.Errorf("decode: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return Response{}, fmt.Errorf("%s: no choices in response", o.name)
	}

	model := oaiResp.Model
	if model == "" {
		model = o.model
	}
	return Response{Text: oaiResp.Choices[0].Message.Content, Model: model}, nil
}
