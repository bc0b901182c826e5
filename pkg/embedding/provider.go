// Package embedding converts weave unit text and pattern descriptions into
// fixed-dimension float32 vectors. Every Provider produces unit-normalized
// vectors so the Vector Index can use plain dot product as cosine
// similarity (see pkg/vectorindex). The one exception is StaticProvider on
// a text that yields no tokens or n-grams (a lone stop word, say), for
// which it returns the all-zero vector.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyText is returned by Embed when called with an empty string.
var ErrEmptyText = errors.New("embedding: empty text provided")

// ErrProviderUnavailable is returned when a Provider cannot currently serve
// requests (e.g. the backing model server is unreachable or the circuit
// breaker is open).
var ErrProviderUnavailable = errors.New("embedding: provider unavailable")

// Provider turns text into a vector of a fixed dimension, and can describe
// itself well enough for the Index Loader to reject artifacts built
// against a different model.
type Provider interface {
	// Embed converts a single text into a unit-normalized vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call. Implementations may
	// parallelize; BaseProvider supplies a goroutine-fanout default.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of vectors this provider produces.
	Dimension() int

	// Descriptor uniquely identifies the model, its dimension, and the
	// text-concatenation policy used to build embeddings, so the Loader
	// can refuse to publish a snapshot built against a different one.
	Descriptor() string
}

// BaseProvider supplies a default EmbedBatch on top of a single-text embed
// function, fanning the batch out across goroutines the way sqvect's
// BaseEmbedder does, and a default Descriptor/Dimension pair.
type BaseProvider struct {
	embedFn    func(ctx context.Context, text string) ([]float32, error)
	dimension  int
	descriptor string
}

// NewBaseProvider builds a BaseProvider around embedFn.
func NewBaseProvider(dimension int, descriptor string, embedFn func(ctx context.Context, text string) ([]float32, error)) BaseProvider {
	return BaseProvider{embedFn: embedFn, dimension: dimension, descriptor: descriptor}
}

func (b BaseProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return b.embedFn(ctx, text)
}

// EmbedBatch embeds every text concurrently and preserves input order. It
// returns the first error encountered, by input index, once every goroutine
// has reported back.
func (b BaseProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	type outcome struct {
		idx int
		vec []float32
		err error
	}

	results := make([][]float32, len(texts))
	ch := make(chan outcome, len(texts))

	for i, text := range texts {
		go func(idx int, t string) {
			vec, err := b.Embed(ctx, t)
			ch <- outcome{idx: idx, vec: vec, err: err}
		}(i, text)
	}

	var firstErr error
	firstErrIdx := len(texts)
	for range texts {
		o := <-ch
		if o.err != nil {
			if o.idx < firstErrIdx {
				firstErr = o.err
				firstErrIdx = o.idx
			}
			continue
		}
		results[o.idx] = o.vec
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (b BaseProvider) Dimension() int { return b.dimension }

func (b BaseProvider) Descriptor() string { return b.descriptor }

// MakeDescriptor assembles the model descriptor string recorded alongside
// every published snapshot: model name, dimension, and the fixed
// embedding-text policy that determines exactly what string was hashed or
// sent to the model for each pattern.
func MakeDescriptor(modelName string, dimension int) string {
	return fmt.Sprintf("%s;dim=%d;policy=description+sample_texts,newline-joined", modelName, dimension)
}
