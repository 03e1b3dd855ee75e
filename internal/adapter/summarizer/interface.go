// Package summarizer provides an abstraction for the conversation summarization engine.
package summarizer

import (
	"context"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

// Highlight is one categorized takeaway from a conversation.
type Highlight struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Result is the output of a summarization call.
type Result struct {
	Summary    string      `json:"summary"`
	Highlights []Highlight `json:"highlights,omitempty"`
}

// Engine defines the interface for summarization operations. Errors are
// recoverable from the caller's point of view: a failed call may be retried
// on a later sweep against the same record.
type Engine interface {
	Summarize(ctx context.Context, category string, transcript []domain.Utterance) (*Result, error)
}

// Ensure implementations satisfy the interface.
var (
	_ Engine = (*Client)(nil)
	_ Engine = (*MockClient)(nil)
)
