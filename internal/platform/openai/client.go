package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/unravel-backend/internal/platform/httpx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type ChatRequest struct {
	Model  string
	System string
	User   string
}

// ChatStream yields content deltas until io.EOF.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

type Client interface {
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	DefaultModel() string
}

type client struct {
	log *logger.Logger
	cfg Config
	api *goopenai.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	return newClient(log, cfg, nil)
}

func newClient(log *logger.Logger, cfg Config, transport http.RoundTripper) (*client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := validate(cfg, "api key", "base url"); err != nil {
		return nil, err
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if transport == nil {
		// Bound time-to-headers only; a streamed body may legitimately run long.
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = cfg.ConnectTimeout
		transport = t
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{
		Transport: &attributionTransport{
			base:    transport,
			siteURL: cfg.SiteURL,
			appName: cfg.AppName,
		},
	}

	return &client{
		log: log.With("client", "OpenAIClient", "base_url", apiCfg.BaseURL),
		cfg: cfg,
		api: goopenai.NewClientWithConfig(apiCfg),
	}, nil
}

func (c *client) DefaultModel() string { return c.cfg.DefaultModel }

// StreamChat opens a streaming chat completion. Only the open is retried;
// once fragments flow, failures surface through Recv.
func (c *client) StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.DefaultModel
	}
	apiReq := goopenai.ChatCompletionRequest{
		Model:  model,
		Stream: true,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.User},
		},
	}

	var stream *goopenai.ChatCompletionStream
	err := c.withRetry(ctx, "chat_stream", func(attemptCtx context.Context) error {
		s, err := c.api.CreateChatCompletionStream(attemptCtx, apiReq)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open chat stream (model=%s): %w", model, err)
	}
	return &chatStream{stream: stream}, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp goopenai.EmbeddingResponse
	err := c.withRetry(ctx, "embeddings", func(attemptCtx context.Context) error {
		r, err := c.api.CreateEmbeddings(attemptCtx, goopenai.EmbeddingRequest{
			Input: clean,
			Model: goopenai.EmbeddingModel(c.cfg.EmbeddingModel),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings (model=%s): %w", c.cfg.EmbeddingModel, err)
	}

	out := make([][]float32, len(clean))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		if idx < len(out) {
			out[idx] = d.Embedding
		}
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("embeddings missing index %d: requested=%d returned=%d", i, len(clean), len(resp.Data))
		}
	}
	return out, nil
}

func (c *client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := c.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= c.cfg.MaxRetries || !isRetryable(err) {
			return err
		}
		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("OpenAI request retrying",
			"op", op,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

// statusCoded adapts go-openai's error types to httpx.HTTPStatusCoder.
type statusCoded struct {
	status int
	err    error
}

func (e *statusCoded) Error() string       { return e.err.Error() }
func (e *statusCoded) Unwrap() error       { return e.err }
func (e *statusCoded) HTTPStatusCode() int { return e.status }

func isRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return httpx.IsRetryableError(&statusCoded{status: apiErr.HTTPStatusCode, err: err})
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return httpx.IsRetryableError(&statusCoded{status: reqErr.HTTPStatusCode, err: err})
	}
	return httpx.IsRetryableError(err)
}

type chatStream struct {
	stream *goopenai.ChatCompletionStream
}

// Recv skips role-only and empty deltas so callers only see content.
func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		var b strings.Builder
		for _, choice := range resp.Choices {
			b.WriteString(choice.Delta.Content)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}

type attributionTransport struct {
	base    http.RoundTripper
	siteURL string
	appName string
}

func (t *attributionTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.siteURL == "" && t.appName == "" {
		return t.base.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	if t.siteURL != "" {
		r.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.appName != "" {
		r.Header.Set("X-Title", t.appName)
	}
	return t.base.RoundTrip(r)
}
