package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
	"github.com/kaiwa-dev/kaiwa/policy"
)

// EvaluateQuota reports the user's admission quota at this instant.
func (s *Service) EvaluateQuota(ctx context.Context, userID string) domain.SessionQuota {
	return s.quota.Evaluate(ctx, userID)
}

// StartSession admits a new session for the user. It checks admission policy
// and quota, creates the durable conversation record, and registers the
// session with the registry. onExpire, if non-nil, runs when the session
// outlives its maximum duration plus grace period without being ended.
//
// Evaluate-then-register is not atomic: two concurrent admissions for the
// same user can both pass the quota check before either registers. The
// overshoot is bounded by the number of racing requests and accepted.
func (s *Service) StartSession(ctx context.Context, userID, category string, onExpire func(sessionKey string)) (*domain.SessionGrant, error) {
	decision, err := s.policyEngine.Evaluate(ctx, map[string]interface{}{"user_id": userID})
	if err != nil {
		// Policy evaluation failure is treated like store failure: permit.
		log.Printf("WARN: admission policy evaluation failed for user %s, allowing: %v", userID, err)
		decision = policy.DecisionAllow
	}
	if decision == policy.DecisionBlock {
		return nil, ErrUserBlocked
	}

	q := s.quota.Evaluate(ctx, userID)
	if !q.CanStart {
		return nil, ErrQuotaExceeded
	}

	conv := &domain.Conversation{
		ConversationID: "conv_" + uuid.New().String()[:8],
		UserID:         userID,
		Category:       category,
		StartedAt:      time.Now(),
		SummaryStatus:  domain.SummaryStatusPending,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	key := s.registry.Start(userID, onExpire)
	return &domain.SessionGrant{
		SessionKey:     key,
		ConversationID: conv.ConversationID,
		Quota:          q,
	}, nil
}

// EndSession deregisters the session and stamps the conversation's end time,
// then finalizes the summary in the background. Ending an unknown session
// key is a no-op so double-close races are harmless.
func (s *Service) EndSession(ctx context.Context, sessionKey, conversationID string) error {
	s.registry.End(sessionKey)

	if conversationID == "" {
		return nil
	}
	if err := s.store.FinishConversation(ctx, conversationID, time.Now()); err != nil {
		return err
	}

	// Client-path summarization. Races with the recovery sweeper are settled
	// by the conditional status transition; at most one writer commits.
	go func() {
		finalizeCtx, cancel := context.WithTimeout(context.Background(), s.config.SummaryTimeout+10*time.Second)
		defer cancel()
		s.FinalizeSummary(finalizeCtx, conversationID)
	}()
	return nil
}

// RecordUtterance appends one utterance to a conversation transcript.
func (s *Service) RecordUtterance(ctx context.Context, conversationID string, speaker domain.Speaker, content string) (*domain.Utterance, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	utt := &domain.Utterance{
		UtteranceID:    "utt_" + uuid.New().String()[:8],
		ConversationID: conversationID,
		Speaker:        speaker,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateUtterance(ctx, utt); err != nil {
		return nil, err
	}
	return utt, nil
}

// GetConversation returns a conversation record with its transcript.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, []domain.Utterance, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrConversationNotFound
	}
	utts, err := s.store.GetUtterances(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conv, utts, nil
}

// ListConversations lists a user's conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	return s.store.ListConversations(ctx, userID, limit)
}
