package generation

import "context"

type Request struct {
	System string
	Prompt string
	Model  string
}

// Stream is a single-pass fragment sequence. Recv returns io.EOF after the
// last fragment. Close may be called more than once and concurrently with
// a blocked Recv.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Generator interface {
	Open(ctx context.Context, req Request) (Stream, error)
}
