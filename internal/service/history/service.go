package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deskchat/internal/models"
)

// Service persists sessions, transcripts and action audit rows. It is the
// orchestrator's persistence collaborator: append-only, shared-nothing.
type Service struct {
	db *sql.DB
}

// NewService builds a new history service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// EnsureSession creates the session row on first contact; repeated calls for
// the same identifier are no-ops.
func (s *Service) EnsureSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session_id is required")
	}
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chat_sessions WHERE session_id = ?`, sessionID,
	).Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("lookup session: %w", err)
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (session_id, created_at) VALUES (?, ?)`,
		sessionID, now,
	); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// RecordMessage appends a message to the session transcript.
func (s *Service) RecordMessage(ctx context.Context, sessionID string, role models.Role, content string) (*models.Message, error) {
	if err := s.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	return &models.Message{ID: id, SessionID: sessionID, Role: role, Content: content, CreatedAt: now}, nil
}

// RecordAction appends an action audit row with its JSON-encoded arguments.
func (s *Service) RecordAction(ctx context.Context, sessionID, actionName string, args map[string]string, result string) error {
	if err := s.EnsureSession(ctx, sessionID); err != nil {
		return err
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode action args: %w", err)
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_actions (session_id, action_name, args, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, actionName, string(encoded), result, now,
	); err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// History returns the session's messages in insertion order.
func (s *Service) History(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
