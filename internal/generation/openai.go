package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/openai"
)

// OpenAI streams from an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client  openai.Client
	metrics *observability.Metrics
}

func NewOpenAI(client openai.Client, metrics *observability.Metrics) *OpenAI {
	return &OpenAI{client: client, metrics: metrics}
}

func (g *OpenAI) Open(ctx context.Context, req Request) (Stream, error) {
	model := req.Model
	if model == "" {
		model = g.client.DefaultModel()
	}
	start := time.Now()
	s, err := g.client.StreamChat(ctx, openai.ChatRequest{
		Model:  model,
		System: req.System,
		User:   req.Prompt,
	})
	if err != nil {
		g.metrics.ObserveLLMStream(model, "open_error", time.Since(start))
		return nil, fmt.Errorf("open stream (model=%s): %w", model, err)
	}
	return &meteredStream{inner: s, model: model, start: start, metrics: g.metrics}, nil
}

// meteredStream reports one status per stream: ok at EOF, error on a
// failed Recv, aborted when closed early.
type meteredStream struct {
	inner   openai.ChatStream
	model   string
	start   time.Time
	metrics *observability.Metrics
	once    sync.Once
}

func (s *meteredStream) Recv() (string, error) {
	frag, err := s.inner.Recv()
	switch {
	case errors.Is(err, io.EOF):
		s.report("ok")
	case err != nil:
		s.report("error")
	}
	return frag, err
}

func (s *meteredStream) Close() error {
	s.report("aborted")
	return s.inner.Close()
}

func (s *meteredStream) report(status string) {
	s.once.Do(func() {
		s.metrics.ObserveLLMStream(s.model, status, time.Since(s.start))
	})
}
