// Package embeddings converts note text into fixed-length vector
// representations via a remote model server.
//
// The model handle is an explicitly constructed, injected dependency: the
// engine receives an Embedder at startup and fails fast if none is available,
// rather than reaching for ambient global state.
package embeddings

import "context"

// Embedder converts plain text into a fixed-length embedding vector.
// Implementations are expected to have meaningful latency (model inference)
// and must honor context cancellation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to the Embedder interface. Handy for tests.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
