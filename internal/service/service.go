// Package service implements session admission, recording, and summary recovery.
package service

import (
	"errors"

	"github.com/kaiwa-dev/kaiwa/internal/adapter/summarizer"
	"github.com/kaiwa-dev/kaiwa/internal/config"
	"github.com/kaiwa-dev/kaiwa/internal/quota"
	store "github.com/kaiwa-dev/kaiwa/internal/repository"
	"github.com/kaiwa-dev/kaiwa/internal/session"
	"github.com/kaiwa-dev/kaiwa/policy"
)

// ErrQuotaExceeded is returned when a user has no remaining daily sessions.
var ErrQuotaExceeded = errors.New("daily session quota exceeded")

// ErrUserBlocked is returned when admission policy refuses the user.
var ErrUserBlocked = errors.New("user is not allowed to start sessions")

// ErrConversationNotFound is returned for operations on unknown conversations.
var ErrConversationNotFound = errors.New("conversation not found")

type Service struct {
	store        store.Store
	registry     *session.Registry
	quota        *quota.Evaluator
	engine       summarizer.Engine
	policyEngine *policy.Engine
	config       *config.Config
}

func New(st store.Store, registry *session.Registry, evaluator *quota.Evaluator, engine summarizer.Engine, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		store:        st,
		registry:     registry,
		quota:        evaluator,
		engine:       engine,
		policyEngine: policyEngine,
		config:       cfg,
	}
}
