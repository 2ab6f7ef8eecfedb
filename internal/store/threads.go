package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrThreadNotFound is returned when a thread does not exist or belongs to
// another org.
var ErrThreadNotFound = errors.New("thread not found")

// CreateThread inserts a new active thread. The external model thread ref
// is recorded at creation and never rewritten afterwards.
func (s *Store) CreateThread(ctx context.Context, orgID, userID, externalRef string) (Thread, error) {
	if orgID == "" {
		return Thread{}, fmt.Errorf("org ID is required")
	}

	var userIDValue any
	if userID != "" {
		userIDValue = userID
	}

	var t Thread
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO chat_threads (org_id, user_id, external_ref, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING id, org_id, COALESCE(user_id, ''), COALESCE(external_ref, ''), COALESCE(title, ''), message_count, last_message_at, is_active, created_at`,
		orgID,
		userIDValue,
		externalRef,
	).Scan(&t.ID, &t.OrgID, &t.UserID, &t.ExternalRef, &t.Title, &t.MessageCount, &t.LastMessageAt, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}

	return t, nil
}

// GetThread fetches one active thread scoped to the org.
func (s *Store) GetThread(ctx context.Context, orgID, threadID string) (Thread, error) {
	var t Thread
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, org_id, COALESCE(user_id, ''), COALESCE(external_ref, ''), COALESCE(title, ''), message_count, last_message_at, is_active, created_at
		 FROM chat_threads
		 WHERE id = $1 AND org_id = $2 AND is_active = TRUE`,
		threadID,
		orgID,
	).Scan(&t.ID, &t.OrgID, &t.UserID, &t.ExternalRef, &t.Title, &t.MessageCount, &t.LastMessageAt, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	if err != nil {
		return Thread{}, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

// ListThreads lists the org's active threads, most recent activity first.
func (s *Store) ListThreads(ctx context.Context, orgID string, limit, offset int) ([]Thread, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, org_id, COALESCE(user_id, ''), COALESCE(external_ref, ''), COALESCE(title, ''), message_count, last_message_at, is_active, created_at
		 FROM chat_threads
		 WHERE org_id = $1 AND is_active = TRUE
		 ORDER BY COALESCE(last_message_at, created_at) DESC
		 LIMIT $2 OFFSET $3`,
		orgID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.OrgID, &t.UserID, &t.ExternalRef, &t.Title, &t.MessageCount, &t.LastMessageAt, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list threads rows: %w", err)
	}

	return threads, nil
}

// SoftDeleteThread marks a thread inactive. Rows are never removed.
func (s *Store) SoftDeleteThread(ctx context.Context, orgID, threadID string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE chat_threads SET is_active = FALSE, updated_at = NOW()
		 WHERE id = $1 AND org_id = $2 AND is_active = TRUE`,
		threadID,
		orgID,
	)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete thread result: %w", err)
	}
	if affected == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// SetThreadTitle sets the title if one has not been set yet.
func (s *Store) SetThreadTitle(ctx context.Context, orgID, threadID, title string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE chat_threads SET title = $3, updated_at = NOW()
		 WHERE id = $1 AND org_id = $2 AND (title IS NULL OR title = '')`,
		threadID,
		orgID,
		title,
	)
	if err != nil {
		return fmt.Errorf("set thread title: %w", err)
	}
	return nil
}

// TouchThread bumps the thread's message count and activity timestamp once
// per completed turn.
func (s *Store) TouchThread(ctx context.Context, orgID, threadID string, newMessages int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE chat_threads
		 SET message_count = message_count + $3, last_message_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND org_id = $2`,
		threadID,
		orgID,
		newMessages,
	)
	if err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

// AddThreadMessage appends one message to a thread. toolCalls carries the
// per-turn tool audit log for assistant messages and may be nil.
func (s *Store) AddThreadMessage(ctx context.Context, orgID, threadID, role, content string, toolCalls json.RawMessage) (string, error) {
	var toolCallsValue any
	if len(toolCalls) > 0 {
		toolCallsValue = toolCalls
	}

	var messageID string
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO chat_messages (thread_id, role, content, tool_calls)
		 SELECT t.id, $3, $4, $5
		 FROM chat_threads t
		 WHERE t.id = $1 AND t.org_id = $2
		 RETURNING id`,
		threadID,
		orgID,
		role,
		content,
		toolCallsValue,
	).Scan(&messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrThreadNotFound
	}
	if err != nil {
		return "", fmt.Errorf("add thread message: %w", err)
	}

	return messageID, nil
}

// GetThreadMessages returns a thread's messages in chronological order.
func (s *Store) GetThreadMessages(ctx context.Context, orgID, threadID string, limit int) ([]ThreadMessage, error) {
	query := `SELECT m.id, m.thread_id, m.role, m.content, m.tool_calls, m.created_at
		FROM chat_messages m
		JOIN chat_threads t ON t.id = m.thread_id
		WHERE m.thread_id = $1 AND t.org_id = $2`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT * FROM (`+query+` ORDER BY m.created_at DESC LIMIT $3) recent ORDER BY created_at ASC`,
			threadID,
			orgID,
			limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, query+` ORDER BY m.created_at ASC`, threadID, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread messages: %w", err)
	}
	defer rows.Close()

	var messages []ThreadMessage
	for rows.Next() {
		var m ThreadMessage
		var toolCalls []byte
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &toolCalls, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread message: %w", err)
		}
		m.ToolCalls = toolCalls
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get thread messages rows: %w", err)
	}

	return messages, nil
}
