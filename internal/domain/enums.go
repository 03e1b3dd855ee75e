// Package domain defines the core domain models for the kaiwa service.
package domain

// SummaryStatus represents the summarization state of a conversation.
// PENDING is the only non-terminal state: a record leaves it exactly once,
// to either COMPLETED or FAILED, via a conditional update.
type SummaryStatus string

const (
	SummaryStatusPending   SummaryStatus = "PENDING"
	SummaryStatusCompleted SummaryStatus = "COMPLETED"
	SummaryStatusFailed    SummaryStatus = "FAILED"
)

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)
