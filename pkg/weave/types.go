// Package weave defines the domain model shared by every component of the
// classification engine: patterns, weave units, matches, and the
// request/response pair the Classifier produces. These types have no
// dependency on how they are transported (see pkg/gateway for the wire
// shapes) or how they are stored (see pkg/loader for the artifact format).
package weave

import (
	"strings"
	"time"
)

// PatternID is a slash-delimited path of 2-6 non-empty segments, e.g.
// "child_development/sleep/nap/crib/early_am/single_entry". It is
// case-sensitive and, once created by the cold path, never mutated.
type PatternID string

// Segments splits the id on "/".
func (p PatternID) Segments() []string {
	return strings.Split(string(p), "/")
}

// Valid reports whether the id has between 2 and 6 non-empty segments.
func (p PatternID) Valid() bool {
	if p == "" {
		return false
	}
	segs := p.Segments()
	if len(segs) < 2 || len(segs) > 6 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// Mixin is a domain tag attached to a pattern.
type Mixin string

// Recognised mixin tags. The cold path may emit others; the core treats an
// unrecognised mixin as an opaque string rather than rejecting the pattern.
const (
	MixinTime      Mixin = "time"
	MixinEmotion   Mixin = "emotion"
	MixinLocation  Mixin = "location"
	MixinPerson    Mixin = "person"
	MixinActivity  Mixin = "activity"
	MixinHealth    Mixin = "health"
	MixinDevelop   Mixin = "development"
)

// Pattern is a named, hierarchically-identified concept in the taxonomy.
// It is built by the cold path and is read-only within the core.
type Pattern struct {
	ID          PatternID
	Description string
	Domain      string
	Area        string
	Topic       string
	Theme       string
	Focus       string
	Form        string
	Mixins      []Mixin
	SampleTexts []string
	Metadata    map[string]string
}

// Validate checks the minimal structural requirements the Index Loader
// enforces on every pattern before it is allowed into a snapshot.
func (p Pattern) Validate() error {
	if !p.ID.Valid() {
		return &Error{Kind: KindLoadFailure, Op: "pattern.validate", Err: errInvalidPatternID(p.ID)}
	}
	if len(p.SampleTexts) == 0 {
		return &Error{Kind: KindLoadFailure, Op: "pattern.validate", Err: errNoSampleTexts(p.ID)}
	}
	return nil
}

// EmbeddingText reproduces the text the Embedding Provider is run over at
// index-build time: the description followed by every sample text, each on
// its own line. This concatenation policy is fixed and recorded in the
// model descriptor so cross-policy artifacts are rejected rather than
// silently misclassified.
func (p Pattern) EmbeddingText() string {
	parts := make([]string, 0, len(p.SampleTexts)+1)
	parts = append(parts, p.Description)
	parts = append(parts, p.SampleTexts...)
	return strings.Join(parts, "\n")
}

// WeaveUnit is a single input observation submitted for classification.
type WeaveUnit struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Timestamp *time.Time
}

// PatternMatch is a single ranked classification result.
type PatternMatch struct {
	PatternID  PatternID
	Confidence float64
	Metadata   map[string]string
}

// Status is the outcome of a classification request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoMatch Status = "no_match"
	StatusError   Status = "error"
)

// Request is the internal (transport-agnostic) classification request.
type Request struct {
	WeaveUnit          WeaveUnit
	MaxAlternatives    int
	ConfidenceThreshold float64
	FilterByDomain     string
}

// Response is the internal (transport-agnostic) classification response.
type Response struct {
	RequestID        string
	Match            *PatternMatch
	Alternatives     []PatternMatch
	ProcessingTimeMs float64
	Status           Status
	ErrorMessage     string
}
