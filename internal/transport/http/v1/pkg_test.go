package v1

import (
	"context"
	"testing"
	"time"

	"github.com/kaiwa-dev/kaiwa/internal/adapter/summarizer"
	"github.com/kaiwa-dev/kaiwa/internal/config"
	"github.com/kaiwa-dev/kaiwa/internal/quota"
	store "github.com/kaiwa-dev/kaiwa/internal/repository"
	"github.com/kaiwa-dev/kaiwa/internal/service"
	"github.com/kaiwa-dev/kaiwa/internal/session"
	"github.com/kaiwa-dev/kaiwa/policy"
	"github.com/kaiwa-dev/kaiwa/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()

	db := helpers.NewTestSQLiteStore(t)
	cfg := &config.Config{
		MaxDailySessions:   3,
		MaxSessionDuration: 10 * time.Minute,
		SessionGracePeriod: time.Minute,
		RecoveryBatchSize:  10,
		PendingStaleAfter:  30 * time.Minute,
		SummaryTimeout:     time.Second,
	}
	registry := session.NewRegistry(cfg.MaxSessionDuration + cfg.SessionGracePeriod)
	evaluator := quota.NewEvaluator(db, registry, cfg.MaxDailySessions)

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	svc := service.New(db, registry, evaluator, summarizer.NewMockClient(), policyEngine, cfg)
	return NewHandler(svc), db
}
