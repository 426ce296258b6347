package generation

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/openai"
)

type fakeChatClient struct {
	req     openai.ChatRequest
	openErr error
	stream  *sliceStream
}

func (f *fakeChatClient) StreamChat(ctx context.Context, req openai.ChatRequest) (openai.ChatStream, error) {
	f.req = req
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func (f *fakeChatClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (f *fakeChatClient) DefaultModel() string { return "default/model" }

func TestOpenAIUsesDefaultModelAndPassesPrompts(t *testing.T) {
	fc := &fakeChatClient{stream: &sliceStream{frags: []string{"a", "b"}}}
	g := NewOpenAI(fc, observability.New())
	s, err := g.Open(context.Background(), Request{System: "sys", Prompt: "user"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fc.req.Model != "default/model" || fc.req.System != "sys" || fc.req.User != "user" {
		t.Fatalf("request: got=%+v", fc.req)
	}
	full, err := Tee(context.Background(), s, func(string) error { return nil })
	if err != nil || full != "ab" {
		t.Fatalf("Tee: full=%q err=%v", full, err)
	}
}

func TestOpenAIOpenError(t *testing.T) {
	fc := &fakeChatClient{openErr: errors.New("401")}
	if _, err := NewOpenAI(fc, nil).Open(context.Background(), Request{Model: "m"}); err == nil {
		t.Fatalf("want open error")
	}
}

func TestMeteredStreamReportsOnce(t *testing.T) {
	s := &meteredStream{inner: &sliceStream{}, model: "m", metrics: nil}
	if _, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("Recv: want EOF got=%v", err)
	}
	_ = s.Close()
	_ = s.Close()
}
