package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			category TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			summary_status TEXT NOT NULL DEFAULT 'PENDING',
			summary TEXT,
			highlights TEXT,
			failure_reason TEXT,
			summarized_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_started ON conversations(user_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_status_started ON conversations(summary_status, started_at)`,
		`CREATE TABLE IF NOT EXISTS utterances (
			utterance_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_utterances_conversation ON utterances(conversation_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation creates a new conversation record.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	status := conv.SummaryStatus
	if status == "" {
		status = domain.SummaryStatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, category, started_at, summary_status) VALUES (?, ?, ?, ?, ?)`,
		conv.ConversationID, conv.UserID, nullString(conv.Category), conv.StartedAt, status)
	return err
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, user_id, category, started_at, ended_at, summary_status, summary, highlights, failure_reason, summarized_at
		 FROM conversations WHERE conversation_id = ?`, conversationID)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// FinishConversation stamps the end time of a conversation.
func (s *SQLiteStore) FinishConversation(ctx context.Context, conversationID string, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET ended_at = ? WHERE conversation_id = ? AND ended_at IS NULL`,
		endedAt, conversationID)
	return err
}

// ListConversations lists a user's conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	query := `SELECT conversation_id, user_id, category, started_at, ended_at, summary_status, summary, highlights, failure_reason, summarized_at
		 FROM conversations WHERE user_id = ? ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// CountUserConversationsSince counts a user's ended conversations started at
// or after the given instant. Sessions still in flight have a durable record
// but no ended_at yet; those are counted by the live registry instead, so
// the two counts never overlap.
func (s *SQLiteStore) CountUserConversationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ? AND started_at >= ? AND ended_at IS NOT NULL`,
		userID, since).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreateUtterance appends one utterance to a conversation transcript.
func (s *SQLiteStore) CreateUtterance(ctx context.Context, utt *domain.Utterance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances (utterance_id, conversation_id, speaker, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		utt.UtteranceID, utt.ConversationID, utt.Speaker, utt.Content, utt.CreatedAt)
	return err
}

// GetUtterances retrieves the transcript of a conversation in order.
func (s *SQLiteStore) GetUtterances(ctx context.Context, conversationID string) ([]domain.Utterance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT utterance_id, conversation_id, speaker, content, created_at
		 FROM utterances WHERE conversation_id = ? ORDER BY created_at ASC, utterance_id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utts []domain.Utterance
	for rows.Next() {
		var u domain.Utterance
		if err := rows.Scan(&u.UtteranceID, &u.ConversationID, &u.Speaker, &u.Content, &u.CreatedAt); err != nil {
			return nil, err
		}
		utts = append(utts, u)
	}
	return utts, rows.Err()
}

// ListStalePendingSummaries lists conversations still PENDING that started
// before the given cutoff, oldest first, bounded by limit.
func (s *SQLiteStore) ListStalePendingSummaries(ctx context.Context, olderThan time.Time, limit int) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, user_id, category, started_at, ended_at, summary_status, summary, highlights, failure_reason, summarized_at
		 FROM conversations
		 WHERE summary_status = ? AND started_at < ?
		 ORDER BY started_at ASC
		 LIMIT ?`,
		domain.SummaryStatusPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// CompleteSummaryIfPending transitions a conversation to COMPLETED with the
// given summary fields. The write only commits if the record is still
// PENDING; it reports whether the transition happened.
func (s *SQLiteStore) CompleteSummaryIfPending(ctx context.Context, conversationID string, summary string, highlights []byte) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET summary_status = ?, summary = ?, highlights = ?, summarized_at = ? WHERE conversation_id = ? AND summary_status = ?`,
		domain.SummaryStatusCompleted, summary, nullStringBytes(highlights), now, conversationID, domain.SummaryStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FailSummaryIfPending transitions a conversation to FAILED with a reason.
// The write only commits if the record is still PENDING.
func (s *SQLiteStore) FailSummaryIfPending(ctx context.Context, conversationID string, reason string) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET summary_status = ?, failure_reason = ?, summarized_at = ? WHERE conversation_id = ? AND summary_status = ?`,
		domain.SummaryStatusFailed, reason, now, conversationID, domain.SummaryStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	var category, summary, highlights, failureReason sql.NullString
	var endedAt, summarizedAt sql.NullTime
	err := row.Scan(&conv.ConversationID, &conv.UserID, &category, &conv.StartedAt, &endedAt,
		&conv.SummaryStatus, &summary, &highlights, &failureReason, &summarizedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		conv.Category = category.String
	}
	if endedAt.Valid {
		conv.EndedAt = &endedAt.Time
	}
	if summary.Valid {
		conv.Summary = summary.String
	}
	if highlights.Valid {
		conv.Highlights = json.RawMessage(highlights.String)
	}
	if failureReason.Valid {
		conv.FailureReason = failureReason.String
	}
	if summarizedAt.Valid {
		conv.SummarizedAt = &summarizedAt.Time
	}
	return &conv, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
