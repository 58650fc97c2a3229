// Package similarity ranks fingerprint vectors by cosine similarity.
//
// The package is pure computation: no I/O, no logging, no clock. Given the
// same inputs it always produces the same output, which keeps retrieval
// results reproducible.
package similarity

import (
	"math"
	"sort"
)

// Candidate is one knowledge base fingerprint under consideration.
type Candidate struct {
	ID     string
	Vector []float32
}

// Match is a candidate that cleared the threshold, with its score.
type Match struct {
	ID    string
	Score float64
}

// Cosine computes the cosine similarity between two vectors.
//
// Returns 0 when the vectors differ in length, are empty, or either has a
// zero norm. The result is always within [-1, 1]; accumulation happens in
// float64 to keep long vectors stable.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push the quotient marginally past 1.
	return math.Max(-1, math.Min(1, score))
}

// Rank scores every candidate against the query and returns those with
// score >= threshold, best first, capped at topN.
//
// Ties keep the candidates' input order, so ranking is deterministic for a
// fixed candidate sequence. Candidates whose vectors cannot be compared to
// the query score 0 and drop out under any positive threshold.
func Rank(query []float32, candidates []Candidate, topN int, threshold float64) []Match {
	if topN <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := Cosine(query, c.Vector)
		if score >= threshold {
			matches = append(matches, Match{ID: c.ID, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}
