// Package catalogue holds the pattern metadata (description, domain,
// mixins, sample texts) that rides alongside a vectorindex.Snapshot. The
// Vector Index only knows pattern ids and vectors; the Catalogue is what
// turns an id back into something a caller can read.
package catalogue

import (
	"github.com/phaiel/weaveclassify/pkg/weave"
)

// Catalogue is an immutable lookup from PatternID to Pattern, built once
// per snapshot and never mutated afterward.
type Catalogue struct {
	patterns map[weave.PatternID]weave.Pattern
}

// New builds a Catalogue from a slice of patterns. It does not validate the
// patterns; the Loader calls weave.Pattern.Validate on each one before
// this point, so a Catalogue only ever holds well-formed patterns.
func New(patterns []weave.Pattern) *Catalogue {
	m := make(map[weave.PatternID]weave.Pattern, len(patterns))
	for _, p := range patterns {
		m[p.ID] = p
	}
	return &Catalogue{patterns: m}
}

// Lookup returns the pattern for id, or weave.ErrUnknownID if the snapshot
// does not contain it. This should not happen for an id produced by a
// vectorindex.Snapshot built from the same artifact, so a caller seeing
// this error likely has a Catalogue and Snapshot built from different
// loads.
func (c *Catalogue) Lookup(id weave.PatternID) (weave.Pattern, error) {
	if c == nil {
		return weave.Pattern{}, weave.ErrUnknownID
	}
	p, ok := c.patterns[id]
	if !ok {
		return weave.Pattern{}, weave.ErrUnknownID
	}
	return p, nil
}

// Size returns the number of patterns in the catalogue.
func (c *Catalogue) Size() int {
	if c == nil {
		return 0
	}
	return len(c.patterns)
}

// IDs returns every pattern id in the catalogue, in no particular order.
func (c *Catalogue) IDs() []weave.PatternID {
	if c == nil {
		return nil
	}
	ids := make([]weave.PatternID, 0, len(c.patterns))
	for id := range c.patterns {
		ids = append(ids, id)
	}
	return ids
}
