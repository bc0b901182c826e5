package embedding

import (
	"context"
	"math"
	"testing"
)

func TestStaticProviderEmbedIsDeterministic(t *testing.T) {
	p := NewStaticProvider(64)

	a, err := p.Embed(context.Background(), "toddler will not nap in the crib")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := p.Embed(context.Background(), "toddler will not nap in the crib")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings for identical text differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStaticProviderUnitNorm(t *testing.T) {
	p := NewStaticProvider(32)

	vec, err := p.Embed(context.Background(), "early morning nap resistance")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Fatalf("expected unit norm, got %v", norm)
	}
}

func TestStaticProviderEmptyText(t *testing.T) {
	p := NewStaticProvider(16)

	if _, err := p.Embed(context.Background(), "   "); err != ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestStaticProviderDimension(t *testing.T) {
	p := NewStaticProvider(48)
	if p.Dimension() != 48 {
		t.Fatalf("Dimension() = %d, want 48", p.Dimension())
	}
	vec, err := p.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 48 {
		t.Fatalf("embedding length = %d, want 48", len(vec))
	}
}

func TestStaticProviderDistinctTextsDiffer(t *testing.T) {
	p := NewStaticProvider(64)

	a, err := p.Embed(context.Background(), "child refuses afternoon nap")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := p.Embed(context.Background(), "parent reports evening tantrum")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	identical := true
	for i := range a {
		if a[i] != b[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Fatalf("expected distinct texts to produce distinct vectors")
	}
}

func TestStaticProviderEmbedBatch(t *testing.T) {
	p := NewStaticProvider(32)

	texts := []string{"first sample", "second sample", "third sample"}
	batch, err := p.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("EmbedBatch() returned %d vectors, want %d", len(batch), len(texts))
	}

	for i, text := range texts {
		single, err := p.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		for j := range single {
			if single[j] != batch[i][j] {
				t.Fatalf("batch result for %q diverged from single embed at index %d", text, j)
			}
		}
	}
}

func TestStaticProviderDescriptorEncodesDimension(t *testing.T) {
	p := NewStaticProvider(128)
	if p.Descriptor() == "" {
		t.Fatal("expected non-empty descriptor")
	}
	other := NewStaticProvider(64)
	if p.Descriptor() == other.Descriptor() {
		t.Fatal("expected descriptors for different dimensions to differ")
	}
}
