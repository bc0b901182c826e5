package loader

import (
	"context"
	"fmt"
	"math"

	"github.com/phaiel/weaveclassify/pkg/catalogue"
	"github.com/phaiel/weaveclassify/pkg/embedding"
	"github.com/phaiel/weaveclassify/pkg/vectorindex"
	"github.com/phaiel/weaveclassify/pkg/weave"
)

// normTolerance is the maximum allowed deviation of a vector's L2 norm
// from 1.0 before the Loader rejects it as not actually unit-normalized.
// Embedding providers and the artifact-build path both work in float32,
// so drift on the order of 1e-3 is expected and tolerated.
const normTolerance = 1e-3

// Publisher receives a validated snapshot and catalogue. *classifier.Classifier
// satisfies this without the loader package importing it directly,
// avoiding an import cycle between loader and classifier.
type Publisher interface {
	Publish(snapshot *vectorindex.Snapshot, cat *catalogue.Catalogue)
}

// Loader reads artifacts from an ArtifactSource, validates them against an
// Embedding Provider, and publishes the result to a Publisher.
type Loader struct {
	source    ArtifactSource
	provider  embedding.Provider
	publisher Publisher
}

// New builds a Loader.
func New(source ArtifactSource, provider embedding.Provider, publisher Publisher) *Loader {
	return &Loader{source: source, provider: provider, publisher: publisher}
}

// Reload reads the artifact, validates it, builds a new snapshot and
// catalogue, and publishes them. On any validation failure the currently
// published snapshot is left untouched and a *weave.Error with
// KindLoadFailure is returned.
func (l *Loader) Reload(ctx context.Context) error {
	raw, err := l.source.Load(ctx)
	if err != nil {
		return weave.Wrap(weave.KindLoadFailure, "loader.reload", err)
	}

	snapshot, cat, err := l.build(ctx, raw)
	if err != nil {
		return weave.Wrap(weave.KindLoadFailure, "loader.reload", err)
	}

	l.publisher.Publish(snapshot, cat)
	return nil
}

func (l *Loader) build(ctx context.Context, raw RawArtifact) (*vectorindex.Snapshot, *catalogue.Catalogue, error) {
	if len(raw.Patterns) == 0 {
		return nil, nil, fmt.Errorf("artifact has no patterns")
	}

	expectedDescriptor := l.provider.Descriptor()
	if raw.Precomputed && raw.ModelDescriptor != "" && raw.ModelDescriptor != expectedDescriptor {
		return nil, nil, fmt.Errorf("artifact model descriptor %q does not match running provider %q", raw.ModelDescriptor, expectedDescriptor)
	}

	dimension := raw.Dimension
	if dimension == 0 {
		dimension = l.provider.Dimension()
	}

	seen := make(map[weave.PatternID]bool, len(raw.Patterns))
	ids := make([]weave.PatternID, 0, len(raw.Patterns))
	vectors := make([][]float32, 0, len(raw.Patterns))

	for _, p := range raw.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, nil, err
		}
		if seen[p.ID] {
			return nil, nil, fmt.Errorf("%w: %s", weave.ErrDuplicateID, p.ID)
		}
		seen[p.ID] = true

		vec, err := l.resolveVector(ctx, raw, p)
		if err != nil {
			return nil, nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		if len(vec) != dimension {
			return nil, nil, fmt.Errorf("%w: pattern %s has dimension %d, expected %d", weave.ErrDimMismatch, p.ID, len(vec), dimension)
		}
		if err := validateNorm(vec); err != nil {
			return nil, nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}

		ids = append(ids, p.ID)
		vectors = append(vectors, vec)
	}

	descriptor := expectedDescriptor
	if raw.Precomputed && raw.ModelDescriptor != "" {
		descriptor = raw.ModelDescriptor
	}

	snapshot, err := vectorindex.NewSnapshot(descriptor, dimension, ids, vectors)
	if err != nil {
		return nil, nil, err
	}

	return snapshot, catalogue.New(raw.Patterns), nil
}

// resolveVector returns the pattern's vector: the artifact's precomputed
// one when present, or a freshly embedded one otherwise. Whether
// precomputed vectors are trusted as-is or always re-embedded is an
// explicit artifact-level choice (the Precomputed flag), not an implicit
// inference from field presence, so a reload's cost is predictable.
func (l *Loader) resolveVector(ctx context.Context, raw RawArtifact, p weave.Pattern) ([]float32, error) {
	if raw.Precomputed {
		vec, ok := raw.Vectors[p.ID]
		if !ok {
			return nil, fmt.Errorf("precomputed artifact missing vector")
		}
		return vec, nil
	}
	return l.provider.Embed(ctx, p.EmbeddingText())
}

func validateNorm(vector []float32) error {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if math.Abs(norm-1.0) > normTolerance {
		return fmt.Errorf("vector norm %.6f outside tolerance of 1.0 +/- %.g", norm, normTolerance)
	}
	return nil
}
