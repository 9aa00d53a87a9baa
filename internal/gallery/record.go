// Package gallery maintains the durable set of enrolled identities and the
// nearest-neighbor index built over their embeddings.
package gallery

import (
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Record is one enrolled reference embedding. Records are immutable after
// enrollment; one identity may own many records. All records in a gallery
// share the same embedding dimension.
type Record struct {
	ID            int64
	Embedding     []float32
	IdentityLabel string
	EnrolledAt    time.Time
	SourceRef     string
}

// NormalizeL2 returns an L2-normalized copy of the vector. A zero vector is
// returned unchanged.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel normalizes an identity label for storage and comparison
// (lowercase, no diacritics, spaces for dashes).
func NormalizeLabel(label string) string {
	label = RemoveDiacritics(label)
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "-", " ")
	return strings.TrimSpace(label)
}
