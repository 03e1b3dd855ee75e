package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

// RunRecoverySweeper periodically re-drives summarization for conversations
// stuck in PENDING beyond the staleness window. The start-up delay lets the
// database connection settle after boot. Sweeps run sequentially from this
// goroutine, so consecutive runs never overlap.
func (s *Service) RunRecoverySweeper(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.config.RecoveryStartupDelay):
	}

	ticker := time.NewTicker(s.config.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepPendingSummaries(ctx)
		}
	}
}

// sweepPendingSummaries processes one batch of stale PENDING conversations.
// A failure on one record never aborts the rest of the batch; a failure of
// the batch query itself is logged and the next interval retries.
func (s *Service) sweepPendingSummaries(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.config.PendingStaleAfter)
	stale, err := s.store.ListStalePendingSummaries(sweepCtx, cutoff, s.config.RecoveryBatchSize)
	if err != nil {
		log.Printf("WARN: pending summary sweep failed: %v", err)
		return
	}

	for i := range stale {
		s.recoverPendingSummary(sweepCtx, &stale[i])
	}
}

// recoverPendingSummary attempts to drive one PENDING conversation to a
// terminal state. Every write is conditioned on the record still being
// PENDING, so a concurrent client-path completion is never overwritten; a
// lost race is a no-op, not an error.
func (s *Service) recoverPendingSummary(ctx context.Context, conv *domain.Conversation) {
	transcript, err := s.store.GetUtterances(ctx, conv.ConversationID)
	if err != nil {
		// Leave the record PENDING; the next sweep retries.
		log.Printf("WARN: failed to load transcript for %s: %v", conv.ConversationID, err)
		return
	}

	if len(transcript) == 0 {
		// Nothing to recover.
		updated, err := s.store.FailSummaryIfPending(ctx, conv.ConversationID, "empty transcript")
		if err != nil {
			log.Printf("WARN: failed to mark empty conversation %s failed: %v", conv.ConversationID, err)
			return
		}
		if updated {
			log.Printf("recovery: conversation %s had no transcript, marked failed", conv.ConversationID)
		}
		return
	}

	// No prior-session context is supplied on the recovery path; a degraded
	// summary beats a permanently stuck record.
	result, err := s.engine.Summarize(ctx, conv.Category, transcript)
	if err != nil {
		log.Printf("WARN: recovery summarization failed for %s: %v", conv.ConversationID, err)
		if _, failErr := s.store.FailSummaryIfPending(ctx, conv.ConversationID, err.Error()); failErr != nil {
			log.Printf("WARN: failed to mark conversation %s failed: %v", conv.ConversationID, failErr)
		}
		return
	}

	var highlights []byte
	if len(result.Highlights) > 0 {
		highlights, _ = json.Marshal(result.Highlights)
	}
	updated, err := s.store.CompleteSummaryIfPending(ctx, conv.ConversationID, result.Summary, highlights)
	if err != nil {
		log.Printf("WARN: failed to complete summary for %s: %v", conv.ConversationID, err)
		if _, failErr := s.store.FailSummaryIfPending(ctx, conv.ConversationID, err.Error()); failErr != nil {
			log.Printf("WARN: failed to mark conversation %s failed: %v", conv.ConversationID, failErr)
		}
		return
	}
	if !updated {
		// Another writer already transitioned the record.
		return
	}
	log.Printf("recovery: conversation %s summarized", conv.ConversationID)
}

// FinalizeSummary is the client-path completion invoked when a session ends
// normally. It obeys the same conditional transition rules as recovery.
func (s *Service) FinalizeSummary(ctx context.Context, conversationID string) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		log.Printf("WARN: failed to load conversation %s for finalize: %v", conversationID, err)
		return
	}
	if conv == nil || conv.SummaryStatus != domain.SummaryStatusPending {
		return
	}
	s.recoverPendingSummary(ctx, conv)
}
