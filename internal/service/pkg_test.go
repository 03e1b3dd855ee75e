package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kaiwa-dev/kaiwa/internal/adapter/summarizer"
	"github.com/kaiwa-dev/kaiwa/internal/config"
	"github.com/kaiwa-dev/kaiwa/internal/domain"
	"github.com/kaiwa-dev/kaiwa/internal/quota"
	store "github.com/kaiwa-dev/kaiwa/internal/repository"
	"github.com/kaiwa-dev/kaiwa/internal/session"
	"github.com/kaiwa-dev/kaiwa/policy"
	"github.com/kaiwa-dev/kaiwa/tests/helpers"
)

// fakeEngine is a summarization engine with call accounting.
type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	failOn map[string]bool // fail when the first utterance matches
}

func (f *fakeEngine) Summarize(ctx context.Context, category string, transcript []domain.Utterance) (*summarizer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if len(transcript) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}
	if f.failOn[transcript[0].Content] {
		return nil, fmt.Errorf("engine unavailable")
	}
	result := &summarizer.Result{
		Summary: "summary of " + transcript[0].Content,
	}
	if category != "" {
		result.Highlights = []summarizer.Highlight{{Category: category, Text: transcript[0].Content}}
	}
	return result, nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() *config.Config {
	return &config.Config{
		MaxDailySessions:   3,
		MaxSessionDuration: 10 * time.Minute,
		SessionGracePeriod: time.Minute,
		RecoveryBatchSize:  10,
		PendingStaleAfter:  30 * time.Minute,
		SummaryTimeout:     time.Second,
	}
}

func newTestService(t *testing.T) (*Service, *store.SQLiteStore, *fakeEngine) {
	t.Helper()
	return newTestServiceWithPolicy(t, policy.DefaultPolicy)
}

func newTestServiceWithPolicy(t *testing.T, policyContent string) (*Service, *store.SQLiteStore, *fakeEngine) {
	t.Helper()

	db := helpers.NewTestSQLiteStore(t)
	cfg := testConfig()
	registry := session.NewRegistry(cfg.MaxSessionDuration + cfg.SessionGracePeriod)
	evaluator := quota.NewEvaluator(db, registry, cfg.MaxDailySessions)
	engine := &fakeEngine{failOn: make(map[string]bool)}

	policyEngine, err := policy.NewEngine(context.Background(), policyContent)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	return New(db, registry, evaluator, engine, policyEngine, cfg), db, engine
}

func createPendingConversation(t *testing.T, db *store.SQLiteStore, id, userID string, startedAt time.Time, transcript ...string) {
	t.Helper()
	ctx := context.Background()

	err := db.CreateConversation(ctx, &domain.Conversation{
		ConversationID: id,
		UserID:         userID,
		Category:       "daily",
		StartedAt:      startedAt,
		SummaryStatus:  domain.SummaryStatusPending,
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	for i, content := range transcript {
		speaker := domain.SpeakerUser
		if i%2 == 1 {
			speaker = domain.SpeakerAssistant
		}
		err := db.CreateUtterance(ctx, &domain.Utterance{
			UtteranceID:    fmt.Sprintf("%s_utt_%d", id, i),
			ConversationID: id,
			Speaker:        speaker,
			Content:        content,
			CreatedAt:      startedAt.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("CreateUtterance: %v", err)
		}
	}
}
