package generation

import (
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Sink receives each fragment as soon as it arrives. A blocking sink is the
// backpressure on the upstream stream.
type Sink func(fragment string) error

// Tee forwards every fragment to sink while accumulating the full text. It
// closes stream before returning. On a stream error, a sink error or ctx
// cancellation the partial text is discarded and the error returned.
func Tee(ctx context.Context, stream Stream, sink Sink) (string, error) {
	defer stream.Close()

	g, gctx := errgroup.WithContext(ctx)
	// Unblock a pending Recv once either side gives up.
	stop := context.AfterFunc(gctx, func() { _ = stream.Close() })
	defer stop()

	frags := make(chan string)
	g.Go(func() error {
		defer close(frags)
		for {
			frag, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
			select {
			case frags <- frag:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var buf strings.Builder
	g.Go(func() error {
		for frag := range frags {
			if err := sink(frag); err != nil {
				return err
			}
			buf.WriteString(frag)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
