package retrieval

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const DefaultTimeout = 30 * time.Second

var ErrTimeout = errors.New("retrieval timed out")

type outcome struct {
	passages []Passage
	err      error
}

// Bounded never fails. Errors and timeouts degrade to an empty result.
type Bounded struct {
	log     *logger.Logger
	next    Retriever
	timeout time.Duration
}

func NewBounded(log *logger.Logger, next Retriever, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bounded{log: log.With("component", "BoundedRetriever"), next: next, timeout: timeout}
}

// Retrieve races the backend against the timer and the caller's context.
// Whichever writes the outcome slot first decides the result; later
// writers are dropped.
func (b *Bounded) Retrieve(ctx context.Context, q Query) ([]Passage, error) {
	var slot atomic.Pointer[outcome]
	done := make(chan struct{})
	decide := func(o *outcome) {
		if slot.CompareAndSwap(nil, o) {
			close(done)
		}
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		passages, err := b.next.Retrieve(rctx, q)
		decide(&outcome{passages: passages, err: err})
	}()
	timer := time.AfterFunc(b.timeout, func() { decide(&outcome{err: ErrTimeout}) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { decide(&outcome{err: ctx.Err()}) })
	defer stop()

	<-done
	o := slot.Load()
	if o.err != nil {
		b.log.Warn("retrieval failed; continuing without context",
			"project_id", q.ProjectID.String(),
			"timeout", b.timeout.String(),
			"error", o.err,
		)
		return []Passage{}, nil
	}
	return rank(o.passages, q.topK()), nil
}

// rank sorts by descending score and keeps at most k.
func rank(in []Passage, k int) []Passage {
	out := make([]Passage, 0, len(in))
	out = append(out, in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
