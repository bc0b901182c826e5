// Package loader implements the Index Loader: reading a pattern-catalogue
// artifact (JSON blob or a frozen SQLite file), validating it against the
// running Embedding Provider, and atomically publishing the resulting
// snapshot to a Classifier.
package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite" // driver registration, read-only artifact access

	"github.com/phaiel/weaveclassify/internal/vectorcodec"
	"github.com/phaiel/weaveclassify/pkg/weave"
)

// RawArtifact is the fully decoded, not-yet-validated contents of a
// pattern-catalogue artifact: the model it was built against, whether its
// vectors are already embedded, and the patterns themselves.
type RawArtifact struct {
	ModelDescriptor string
	Dimension       int
	Precomputed     bool
	Patterns        []weave.Pattern
	Vectors         map[weave.PatternID][]float32
}

// ArtifactSource reads a RawArtifact from wherever it is stored. Two
// implementations are provided: JSONArtifactSource for a single blob file,
// and SQLiteArtifactSource for a frozen, read-only SQLite file built by the
// cold path. Both are read paths only — the artifact is a build output, not
// a live database the classifier writes to.
type ArtifactSource interface {
	Load(ctx context.Context) (RawArtifact, error)
}

// jsonArtifact is the on-disk shape for JSONArtifactSource.
type jsonArtifact struct {
	ModelDescriptor string            `json:"modelDescriptor"`
	Dimension       int               `json:"dimension"`
	Precomputed     bool              `json:"precomputed"`
	Patterns        []jsonPattern     `json:"patterns"`
}

type jsonPattern struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Domain      string            `json:"domain"`
	Area        string            `json:"area"`
	Topic       string            `json:"topic"`
	Theme       string            `json:"theme"`
	Focus       string            `json:"focus"`
	Form        string            `json:"form"`
	Mixins      []string          `json:"mixins"`
	SampleTexts []string          `json:"sampleTexts"`
	Metadata    map[string]string `json:"metadata"`
	Vector      []float32         `json:"vector,omitempty"`
}

// JSONArtifactSource reads a RawArtifact from a single JSON file.
type JSONArtifactSource struct {
	Path string
}

// Load implements ArtifactSource.
func (s JSONArtifactSource) Load(ctx context.Context) (RawArtifact, error) {
	if err := ctx.Err(); err != nil {
		return RawArtifact{}, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return RawArtifact{}, fmt.Errorf("loader: opening %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return RawArtifact{}, fmt.Errorf("loader: reading %s: %w", s.Path, err)
	}

	var doc jsonArtifact
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawArtifact{}, fmt.Errorf("loader: parsing %s: %w", s.Path, err)
	}

	raw := RawArtifact{
		ModelDescriptor: doc.ModelDescriptor,
		Dimension:       doc.Dimension,
		Precomputed:     doc.Precomputed,
		Patterns:        make([]weave.Pattern, len(doc.Patterns)),
		Vectors:         make(map[weave.PatternID][]float32, len(doc.Patterns)),
	}
	for i, p := range doc.Patterns {
		id := weave.PatternID(p.ID)
		mixins := make([]weave.Mixin, len(p.Mixins))
		for j, m := range p.Mixins {
			mixins[j] = weave.Mixin(m)
		}
		raw.Patterns[i] = weave.Pattern{
			ID:          id,
			Description: p.Description,
			Domain:      p.Domain,
			Area:        p.Area,
			Topic:       p.Topic,
			Theme:       p.Theme,
			Focus:       p.Focus,
			Form:        p.Form,
			Mixins:      mixins,
			SampleTexts: p.SampleTexts,
			Metadata:    p.Metadata,
		}
		if doc.Precomputed {
			raw.Vectors[id] = p.Vector
		}
	}

	return raw, nil
}

// SQLiteArtifactSource reads a RawArtifact from a frozen SQLite file built
// ahead of time by an offline embedding step. It is opened read-only and
// is never written to by the running service: this is a pre-built,
// versioned artifact file, not a live mutable store, and is treated as
// such end to end.
type SQLiteArtifactSource struct {
	Path string
}

// Load implements ArtifactSource.
func (s SQLiteArtifactSource) Load(ctx context.Context) (RawArtifact, error) {
	db, err := sql.Open("sqlite", "file:"+s.Path+"?mode=ro&_query_only=true")
	if err != nil {
		return RawArtifact{}, fmt.Errorf("loader: opening %s: %w", s.Path, err)
	}
	defer func() { _ = db.Close() }()

	var raw RawArtifact
	row := db.QueryRowContext(ctx, `SELECT model_descriptor, dimension, precomputed FROM artifact_meta LIMIT 1`)
	if err := row.Scan(&raw.ModelDescriptor, &raw.Dimension, &raw.Precomputed); err != nil {
		return RawArtifact{}, fmt.Errorf("loader: reading artifact_meta from %s: %w", s.Path, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT id, description, domain, area, topic, theme, focus, form, mixins, sample_texts, metadata, vector FROM patterns`)
	if err != nil {
		return RawArtifact{}, fmt.Errorf("loader: querying patterns from %s: %w", s.Path, err)
	}
	defer func() { _ = rows.Close() }()

	raw.Vectors = make(map[weave.PatternID][]float32)
	for rows.Next() {
		var (
			id, description, domain, area, topic, theme, focus, form string
			mixinsJSON, sampleTextsJSON, metadataJSON                string
			vectorBlob                                               []byte
		)
		if err := rows.Scan(&id, &description, &domain, &area, &topic, &theme, &focus, &form, &mixinsJSON, &sampleTextsJSON, &metadataJSON, &vectorBlob); err != nil {
			return RawArtifact{}, fmt.Errorf("loader: scanning pattern row: %w", err)
		}

		var mixinStrs, sampleTexts []string
		var metadata map[string]string
		if err := json.Unmarshal([]byte(mixinsJSON), &mixinStrs); err != nil {
			return RawArtifact{}, fmt.Errorf("loader: decoding mixins for %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(sampleTextsJSON), &sampleTexts); err != nil {
			return RawArtifact{}, fmt.Errorf("loader: decoding sample_texts for %s: %w", id, err)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return RawArtifact{}, fmt.Errorf("loader: decoding metadata for %s: %w", id, err)
			}
		}

		mixins := make([]weave.Mixin, len(mixinStrs))
		for i, m := range mixinStrs {
			mixins[i] = weave.Mixin(m)
		}

		patternID := weave.PatternID(id)
		raw.Patterns = append(raw.Patterns, weave.Pattern{
			ID:          patternID,
			Description: description,
			Domain:      domain,
			Area:        area,
			Topic:       topic,
			Theme:       theme,
			Focus:       focus,
			Form:        form,
			Mixins:      mixins,
			SampleTexts: sampleTexts,
			Metadata:    metadata,
		})

		if raw.Precomputed && len(vectorBlob) > 0 {
			vec, err := vectorcodec.Decode(vectorBlob)
			if err != nil {
				return RawArtifact{}, fmt.Errorf("loader: decoding vector for %s: %w", id, err)
			}
			raw.Vectors[patternID] = vec
		}
	}
	if err := rows.Err(); err != nil {
		return RawArtifact{}, fmt.Errorf("loader: iterating patterns from %s: %w", s.Path, err)
	}

	return raw, nil
}
