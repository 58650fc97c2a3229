package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/faqhub/faqhub/internal/knowledge"
)

// MockFingerprinter provides deterministic embedding vectors for testing.
//
// By default it generates a deterministic unit vector from content using
// SHA-256. Explicit mappings can be added for precise cosine similarity
// control, and Fail makes every call return an error to exercise upstream
// failure paths.
//
// Safe for concurrent use.
type MockFingerprinter struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
	fail    error
}

// NewMockFingerprinter creates a mock fingerprinter with the given vector
// dimensions.
func NewMockFingerprinter(dim int) *MockFingerprinter {
	return &MockFingerprinter{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (m *MockFingerprinter) SetVector(content string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[content] = vec
}

// Fail makes every subsequent Fingerprint call return err. Pass nil to
// restore normal behavior.
func (m *MockFingerprinter) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Fingerprint implements the fingerprinter interface used by the retrieval
// and resolution services.
func (m *MockFingerprinter) Fingerprint(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return deterministicVector(text, m.dim), nil
}

// deterministicVector generates a normalized vector from content using
// SHA-256. The same content always produces the same vector.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		// Map to [-1, 1] range
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// MockGenerator returns a canned answer and records the inputs it was
// called with.
//
// Safe for concurrent use.
type MockGenerator struct {
	mu sync.Mutex

	// Response is returned from Answer when Err is nil.
	Response string
	// Err, when set, is returned from every Answer call.
	Err error

	lastQuestion string
	lastMatches  []knowledge.Entry
	calls        int
}

// Answer implements the generator interface used by the retrieval service.
func (g *MockGenerator) Answer(_ context.Context, question string, matches []knowledge.Entry) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	g.lastQuestion = question
	g.lastMatches = matches

	if g.Err != nil {
		return "", g.Err
	}
	if g.Response == "" {
		return "mock answer", nil
	}
	return g.Response, nil
}

// Calls returns how many times Answer was invoked.
func (g *MockGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// LastInputs returns the question and matches from the most recent call.
func (g *MockGenerator) LastInputs() (string, []knowledge.Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastQuestion, g.lastMatches
}
