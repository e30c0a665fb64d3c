// Package diff scores two probe results against each other. Real response
// bodies carry nonces and timestamps, so the unit of comparison is a length
// ratio threshold, never byte equality. All functions are pure and tolerate
// nil results; an absent response is maximal difference, not an error.
package diff

import (
	"github.com/quirkscan/quirkscan/pkg/probe"
)

// DefaultThreshold is the relative body-length delta above which two
// responses are considered different.
const DefaultThreshold = 0.15

// Differs applies the layered heuristic, cheapest check first: absence,
// status code, length ratio, then the similarity floor.
func Differs(baseline, p *probe.Result) bool {
	if baseline == nil || p == nil {
		return true
	}
	if StatusDiffers(baseline, p) {
		return true
	}
	if LengthDiffers(baseline, p, DefaultThreshold) {
		return true
	}
	return BodySimilarity(baseline, p) < (1.0 - DefaultThreshold)
}

// StatusDiffers reports whether the status codes differ. An absent side
// always differs.
func StatusDiffers(a, b *probe.Result) bool {
	if a == nil || b == nil {
		return true
	}
	return a.Status != b.Status
}

// LengthDiffers reports whether the relative body-length delta exceeds
// threshold. Two empty bodies never differ by length.
func LengthDiffers(a, b *probe.Result, threshold float64) bool {
	lenA, lenB := a.BodyLen(), b.BodyLen()
	maxLen := max(lenA, lenB)
	if maxLen == 0 {
		return false
	}
	ratio := float64(abs(lenA-lenB)) / float64(maxLen)
	return ratio > threshold
}

// LengthDelta returns the absolute body-length difference.
func LengthDelta(a, b *probe.Result) int {
	return abs(a.BodyLen() - b.BodyLen())
}

// ExclusiveContains reports whether exactly one of the two bodies contains
// the marker (case-insensitive). This is the core oracle for injected
// content: present in the probe, absent from the baseline, or vice versa.
func ExclusiveContains(a, b *probe.Result, marker string) bool {
	return a.BodyContains(marker) != b.BodyContains(marker)
}

// BodySimilarity returns a score in [0,1] from the body lengths. Two empty
// bodies are identical (1.0).
func BodySimilarity(a, b *probe.Result) float64 {
	lenA, lenB := a.BodyLen(), b.BodyLen()
	maxLen := max(lenA, lenB)
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(abs(lenA-lenB))/float64(maxLen)
}

// Verdict bundles the difference decision with its magnitude for reporting.
type Verdict struct {
	Differs     bool
	Similarity  float64
	LengthDelta int
}

// Compare returns the full verdict for a baseline/probe pair.
func Compare(baseline, p *probe.Result) Verdict {
	return Verdict{
		Differs:     Differs(baseline, p),
		Similarity:  BodySimilarity(baseline, p),
		LengthDelta: LengthDelta(baseline, p),
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
