// Package gateway exposes the classification engine over HTTP: /health,
// /status, /classify, and /reload-patterns. The /metrics scrape route is
// mounted beside this router by the serve command, not by the Gateway.
// Wire shapes use camelCase JSON, independent of the Go-idiomatic
// internal types in pkg/weave.
package gateway

import (
	"time"

	"github.com/phaiel/weaveclassify/pkg/weave"
)

type weaveUnitDTO struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

type classifyRequestDTO struct {
	WeaveUnit           weaveUnitDTO `json:"weaveUnit"`
	MaxAlternatives     int          `json:"maxAlternatives,omitempty"`
	ConfidenceThreshold float64      `json:"confidenceThreshold,omitempty"`
	FilterByDomain      string       `json:"filterByDomain,omitempty"`
}

func (d classifyRequestDTO) toRequest() weave.Request {
	return weave.Request{
		WeaveUnit: weave.WeaveUnit{
			ID:        d.WeaveUnit.ID,
			Text:      d.WeaveUnit.Text,
			Metadata:  d.WeaveUnit.Metadata,
			Timestamp: d.WeaveUnit.Timestamp,
		},
		MaxAlternatives:     d.MaxAlternatives,
		ConfidenceThreshold: d.ConfidenceThreshold,
		FilterByDomain:      d.FilterByDomain,
	}
}

// validate reports whether the optional numeric fields, when supplied, fall
// within their documented ranges: maxAlternatives in [1,10] and
// confidenceThreshold in [0,1]. A zero value on either field means "use the
// server default" rather than an explicit out-of-range request, matching
// how toRequest's consumer treats a non-positive value.
func (d classifyRequestDTO) validate() bool {
	if d.MaxAlternatives < 0 || d.MaxAlternatives > 10 {
		return false
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return false
	}
	return true
}

type patternMatchDTO struct {
	PatternID  string            `json:"patternId"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func matchDTO(m weave.PatternMatch) patternMatchDTO {
	return patternMatchDTO{
		PatternID:  string(m.PatternID),
		Confidence: m.Confidence,
		Metadata:   m.Metadata,
	}
}

type classifyResponseDTO struct {
	RequestID        string            `json:"requestId"`
	Match            *patternMatchDTO  `json:"match,omitempty"`
	Alternatives     []patternMatchDTO `json:"alternatives,omitempty"`
	ProcessingTimeMs float64           `json:"processingTimeMs"`
	Status           string            `json:"status"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
}

func toResponseDTO(resp weave.Response) classifyResponseDTO {
	dto := classifyResponseDTO{
		RequestID:        resp.RequestID,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		Status:           string(resp.Status),
		ErrorMessage:     resp.ErrorMessage,
	}
	if resp.Match != nil {
		m := matchDTO(*resp.Match)
		dto.Match = &m
	}
	if len(resp.Alternatives) > 0 {
		dto.Alternatives = make([]patternMatchDTO, len(resp.Alternatives))
		for i, alt := range resp.Alternatives {
			dto.Alternatives[i] = matchDTO(alt)
		}
	}
	return dto
}

type errorResponseDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type healthResponseDTO struct {
	Status string `json:"status"`
}

type statusResponseDTO struct {
	Status          string  `json:"status"`
	PatternCount    int     `json:"patternCount"`
	VectorDim       int     `json:"vectorDim,omitempty"`
	ModelDescriptor string  `json:"modelDescriptor,omitempty"`
	SnapshotID      string  `json:"snapshotId,omitempty"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
}

type reloadResponseDTO struct {
	Status       string `json:"status"`
	PatternCount int    `json:"patternCount"`
}
