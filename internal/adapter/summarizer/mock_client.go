package summarizer

import (
	"context"
	"fmt"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

// MockClient is a mock implementation of Engine for testing.
type MockClient struct{}

// NewMockClient creates a new mock summarization engine.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Summarize returns a deterministic summary derived from the transcript.
func (m *MockClient) Summarize(ctx context.Context, category string, transcript []domain.Utterance) (*Result, error) {
	if len(transcript) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}

	result := &Result{
		Summary: fmt.Sprintf("Mock summary of %d utterances, opening with: %s", len(transcript), transcript[0].Content),
	}
	if category != "" {
		result.Highlights = []Highlight{
			{Category: category, Text: transcript[0].Content},
		}
	}
	return result, nil
}
