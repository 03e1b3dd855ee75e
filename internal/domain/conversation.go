package domain

import (
	"encoding/json"
	"time"
)

// Conversation is the durable record of a recorded session.
type Conversation struct {
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	Category       string          `json:"category,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	SummaryStatus  SummaryStatus   `json:"summary_status"`
	Summary        string          `json:"summary,omitempty"`
	Highlights     json.RawMessage `json:"highlights,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	SummarizedAt   *time.Time      `json:"summarized_at,omitempty"`
}

// Utterance is a single speaker-tagged entry in a conversation transcript.
type Utterance struct {
	UtteranceID    string    `json:"utterance_id"`
	ConversationID string    `json:"conversation_id"`
	Speaker        Speaker   `json:"speaker"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionQuota is the admission decision for a user at a point in time.
// It is derived fresh on every evaluation and never cached.
type SessionQuota struct {
	MaxDaily  int  `json:"max_daily"`
	UsedToday int  `json:"used_today"`
	Remaining int  `json:"remaining"`
	CanStart  bool `json:"can_start"`
}

// SessionGrant is returned when an admission request is accepted.
// Quota reflects the evaluation that admitted the session, before the
// session itself was counted.
type SessionGrant struct {
	SessionKey     string       `json:"session_key"`
	ConversationID string       `json:"conversation_id"`
	Quota          SessionQuota `json:"quota"`
}
