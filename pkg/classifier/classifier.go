// Package classifier implements the hot path: turning a WeaveUnit into a
// ranked PatternMatch by embedding its text and searching the currently
// published vectorindex.Snapshot. It supports a full top-k classification
// with alternatives, confidence scoring, and atomic hot-reload, so a
// Publish from a concurrent reload never blocks or partially exposes
// itself to an in-flight Classify call.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/phaiel/weaveclassify/pkg/catalogue"
	"github.com/phaiel/weaveclassify/pkg/embedding"
	"github.com/phaiel/weaveclassify/pkg/vectorindex"
	"github.com/phaiel/weaveclassify/pkg/weave"
)

// live is the paired snapshot/catalogue published together so a Classify
// call always sees a vector index and its matching metadata from the same
// load, never a stale catalogue against a fresh index or vice versa.
type live struct {
	snapshot  *vectorindex.Snapshot
	catalogue *catalogue.Catalogue
}

// Classifier holds the currently published snapshot and serves Classify
// calls against it. Publish swaps the snapshot atomically so a reload never
// blocks, and never partially exposes, an in-flight search.
type Classifier struct {
	provider embedding.Provider
	current  atomic.Pointer[live]

	defaultMaxAlternatives int
	defaultThreshold       float64
}

// Option configures a Classifier at construction.
type Option func(*Classifier)

// WithDefaults sets the maxAlternatives and confidenceThreshold used when a
// Request does not specify its own.
func WithDefaults(maxAlternatives int, confidenceThreshold float64) Option {
	return func(c *Classifier) {
		c.defaultMaxAlternatives = maxAlternatives
		c.defaultThreshold = confidenceThreshold
	}
}

// New builds a Classifier with no snapshot published yet; Classify reports
// an index_empty Response until Publish is called at least once.
func New(provider embedding.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider:               provider,
		defaultMaxAlternatives: 3,
		defaultThreshold:       0.5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish atomically swaps in a new snapshot/catalogue pair. Any Classify
// call already in flight keeps using the snapshot it started with; the
// next call sees the new one.
func (c *Classifier) Publish(snapshot *vectorindex.Snapshot, cat *catalogue.Catalogue) {
	c.current.Store(&live{snapshot: snapshot, catalogue: cat})
}

// Snapshot returns the currently published snapshot, or nil if none has
// been published yet.
func (c *Classifier) Snapshot() *vectorindex.Snapshot {
	l := c.current.Load()
	if l == nil {
		return nil
	}
	return l.snapshot
}

// Classify embeds req.WeaveUnit.Text and searches the published snapshot
// for the best-matching pattern plus up to maxAlternatives runner-ups. It
// implements the classification algorithm in full:
//
//  1. start a processing timer and assign a request id
//  2. fail fast with an index_empty Response if nothing has been published
//  3. reject empty/whitespace-only text with an empty_text Response
//  4. embed the text with the published model (embedding_failure on error)
//  5. search for maxAlternatives+1 candidates so the best match and its
//     alternatives come from one pass
//  6. if filter_by_domain is set, build a predicate from the Catalogue's
//     Pattern.Domain and apply it during search
//  7. map cosine similarity to confidence via vectorindex.Confidence
//  8. treat zero results as a no-match response, not an error
//  9. if the best match's confidence is below threshold, report no_match
//     but still surface up to maxAlternatives candidates as alternatives
//  10. hydrate the match and alternatives from the Catalogue
//  11. record processing time in milliseconds
//  12. return a fully populated Response
//
// Every outcome anticipated by the algorithm above — an empty index, empty
// text, a deadline that elapsed (checked before embedding, after embedding
// and after search), a model or search failure — is
// returned as a Response with Status StatusError and the matching
// ErrorMessage code, never as a Go error. A non-nil error return means
// something the algorithm did not anticipate happened (a Catalogue left out
// of sync with its Snapshot), and the caller should treat it as unexpected.
func (c *Classifier) Classify(ctx context.Context, req weave.Request) (weave.Response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	l := c.current.Load()
	if l == nil || l.snapshot.Size() == 0 {
		return c.errorResponse(requestID, start, weave.ErrorCodeIndexEmpty), nil
	}

	text := strings.TrimSpace(req.WeaveUnit.Text)
	if text == "" {
		return c.errorResponse(requestID, start, weave.ErrorCodeEmptyText), nil
	}

	if err := ctx.Err(); err != nil {
		return c.errorResponse(requestID, start, weave.ErrorCodeDeadlineExceeded), nil
	}

	query, err := c.provider.Embed(ctx, text)
	if ctx.Err() != nil {
		return c.errorResponse(requestID, start, weave.ErrorCodeDeadlineExceeded), nil
	}
	if err != nil {
		return c.errorResponse(requestID, start, weave.ErrorCodeEmbeddingFailure), nil
	}

	maxAlternatives := req.MaxAlternatives
	if maxAlternatives <= 0 {
		maxAlternatives = c.defaultMaxAlternatives
	}
	threshold := req.ConfidenceThreshold
	if threshold <= 0 {
		threshold = c.defaultThreshold
	}

	var predicate func(weave.PatternID) bool
	if domain := req.FilterByDomain; domain != "" {
		cat := l.catalogue
		predicate = func(id weave.PatternID) bool {
			p, err := cat.Lookup(id)
			return err == nil && p.Domain == domain
		}
	}

	results, err := l.snapshot.Search(query, maxAlternatives+1, predicate)
	if err != nil {
		return c.errorResponse(requestID, start, weave.ErrorCodeSearchFailure), nil
	}
	if ctx.Err() != nil {
		return c.errorResponse(requestID, start, weave.ErrorCodeDeadlineExceeded), nil
	}

	elapsed := elapsedMs(start)

	if len(results) == 0 {
		return weave.Response{
			RequestID:        requestID,
			Status:           weave.StatusNoMatch,
			ProcessingTimeMs: elapsed,
		}, nil
	}

	matches, err := c.hydrate(l.catalogue, results)
	if err != nil {
		return weave.Response{}, fmt.Errorf("classifier: classify: %w", err)
	}

	best := matches[0]
	alternatives := matches[1:]

	if best.Confidence < threshold {
		if len(matches) > maxAlternatives {
			matches = matches[:maxAlternatives]
		}
		return weave.Response{
			RequestID:        requestID,
			Status:           weave.StatusNoMatch,
			Alternatives:     matches,
			ProcessingTimeMs: elapsed,
		}, nil
	}

	return weave.Response{
		RequestID:        requestID,
		Match:            &best,
		Alternatives:     alternatives,
		Status:           weave.StatusSuccess,
		ProcessingTimeMs: elapsed,
	}, nil
}

// errorResponse builds the Response for an expected failure condition,
// carrying the processing time spent before the condition was detected.
func (c *Classifier) errorResponse(requestID string, start time.Time, code string) weave.Response {
	return weave.Response{
		RequestID:        requestID,
		Status:           weave.StatusError,
		ErrorMessage:     code,
		ProcessingTimeMs: elapsedMs(start),
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func (c *Classifier) hydrate(cat *catalogue.Catalogue, results []vectorindex.ScoredMatch) ([]weave.PatternMatch, error) {
	matches := make([]weave.PatternMatch, len(results))
	for i, r := range results {
		pattern, err := cat.Lookup(r.PatternID)
		if err != nil {
			return nil, fmt.Errorf("classifier: hydrating %q: %w", r.PatternID, err)
		}
		matches[i] = weave.PatternMatch{
			PatternID:  r.PatternID,
			Confidence: vectorindex.Confidence(r.Similarity),
			Metadata:   pattern.Metadata,
		}
	}
	return matches, nil
}
