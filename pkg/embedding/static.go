package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Weights for combining token and n-gram contributions into one vector.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3

	// DefaultStaticDimension is used when a caller does not pin a
	// dimension explicitly; it matches the configured VECTOR_DIM default.
	DefaultStaticDimension = 256
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticProvider is a deterministic, hash-based Embedding Provider. It needs
// no network access or model download, which makes it the provider of
// choice for tests and for deployments that cannot reach an Ollama server.
// Semantic quality is necessarily lower than a trained model's.
type StaticProvider struct {
	base BaseProvider
	dim  int
}

// NewStaticProvider builds a StaticProvider producing vectors of dim.
func NewStaticProvider(dim int) *StaticProvider {
	if dim <= 0 {
		dim = DefaultStaticDimension
	}
	p := &StaticProvider{dim: dim}
	p.base = NewBaseProvider(dim, MakeDescriptor("static", dim), p.embed)
	return p
}

func (p *StaticProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.base.Embed(ctx, text)
}

func (p *StaticProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.EmbedBatch(ctx, texts)
}

func (p *StaticProvider) Dimension() int { return p.dim }

func (p *StaticProvider) Descriptor() string { return p.base.Descriptor() }

func (p *StaticProvider) embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}
	return normalizeVector(p.generateVector(trimmed)), nil
}

func (p *StaticProvider) generateVector(text string) []float32 {
	vector := make([]float32, p.dim)

	tokens := filterStopWords(tokenize(text))
	for _, token := range tokens {
		vector[hashToIndex(token, p.dim)] += tokenWeight
	}

	ngrams := extractNgrams(normalizeForNgrams(text), ngramSize)
	for _, ngram := range ngrams {
		vector[hashToIndex(ngram, p.dim)] += ngramWeight
	}

	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCompoundToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// splitCompoundToken splits snake_case and camelCase identifiers so that
// descriptions borrowed from code-adjacent domains (e.g. "napTime",
// "early_am") contribute their constituent words to the vector, not just
// the whole compound.
func splitCompoundToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

var wordStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "of": true,
	"to": true, "in": true, "on": true, "at": true, "for": true,
}

func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !wordStopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// normalizeVector scales vector to unit length, leaving an all-zero vector
// unchanged (it has no well-defined direction).
func normalizeVector(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vector
	}
	norm := float32(math.Sqrt(sumSquares))
	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = v / norm
	}
	return normalized
}
