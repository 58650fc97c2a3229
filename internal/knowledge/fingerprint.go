package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// DefaultDimension is the fingerprint width stored in the database.
// Gemini embedding models support Matryoshka truncation, so larger native
// outputs are truncated to this size via OutputDimensionality.
const DefaultDimension int32 = 768

// Fingerprinter turns question text into a fixed-width embedding vector.
type Fingerprinter struct {
	embedder  ai.Embedder
	dimension int32
}

// NewFingerprinter wraps a Genkit embedder with a fixed output dimension.
func NewFingerprinter(embedder ai.Embedder, dimension int32) (*Fingerprinter, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Fingerprinter{embedder: embedder, dimension: dimension}, nil
}

// Fingerprint embeds the given text. Failures of the embedding backend are
// reported as ErrUpstreamUnavailable so callers can map them uniformly.
func (f *Fingerprinter) Fingerprint(ctx context.Context, text string) ([]float32, error) {
	dim := f.dimension
	resp, err := f.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding text: %v", ErrUpstreamUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrUpstreamUnavailable)
	}
	return resp.Embeddings[0].Embedding, nil
}
