package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"

	"github.com/gosuda/deepsearch/internal/model"
)

// NewStream exposes the iterator adapter for tests.
func NewStream(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) model.Stream {
	return newStream(ctx, seq)
}
