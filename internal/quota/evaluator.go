package quota

import (
	"context"
	"log"
	"time"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

// DailyCounter is the durable side of the evaluation: how many sessions the
// user has on record since the start of the current quota day.
type DailyCounter interface {
	CountUserConversationsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// ActiveCounter is the live side: sessions admitted but not yet finalized.
type ActiveCounter interface {
	ActiveCount(userID string) int
}

// Evaluator decides whether a user may start a new session right now.
type Evaluator struct {
	store    DailyCounter
	registry ActiveCounter
	maxDaily int
}

// NewEvaluator creates an evaluator with the given daily limit.
func NewEvaluator(store DailyCounter, registry ActiveCounter, maxDaily int) *Evaluator {
	return &Evaluator{
		store:    store,
		registry: registry,
		maxDaily: maxDaily,
	}
}

// Evaluate computes the user's quota at this instant. The result is never
// cached: it depends on both the durable count and the live registry count.
//
// If the durable query fails the evaluator fails open and reports a full
// quota. An infrastructure incident must not lock every user out of the
// core feature; strict enforcement resumes once the store recovers.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) domain.SessionQuota {
	dayStart := DayStart(time.Now())

	durable, err := e.store.CountUserConversationsSince(ctx, userID, dayStart)
	if err != nil {
		log.Printf("WARN: quota store query failed for user %s, failing open: %v", userID, err)
		return domain.SessionQuota{
			MaxDaily:  e.maxDaily,
			UsedToday: 0,
			Remaining: e.maxDaily,
			CanStart:  true,
		}
	}

	used := durable + e.registry.ActiveCount(userID)
	remaining := e.maxDaily - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.SessionQuota{
		MaxDaily:  e.maxDaily,
		UsedToday: used,
		Remaining: remaining,
		CanStart:  remaining > 0,
	}
}
