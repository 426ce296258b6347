package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/unravel-backend/internal/observability"
)

// Instrumented records latency and outcome per provider.
type Instrumented struct {
	provider string
	next     Retriever
	metrics  *observability.Metrics
}

func NewInstrumented(provider string, next Retriever, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{provider: provider, next: next, metrics: metrics}
}

func (r *Instrumented) Retrieve(ctx context.Context, q Query) ([]Passage, error) {
	start := time.Now()
	passages, err := r.next.Retrieve(ctx, q)
	r.metrics.ObserveRetrieval(r.provider, outcomeLabel(passages, err), time.Since(start))
	return passages, err
}

func outcomeLabel(passages []Passage, err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case err != nil:
		return "error"
	case len(passages) == 0:
		return "empty"
	default:
		return "ok"
	}
}
