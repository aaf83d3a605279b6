package postgres

import (
	db_models "bardchat-backend/internal/models"
	"bardchat-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateChat inserts a new chat row and returns it.
func (s *PostgresStore) CreateChat(ctx context.Context, arg store.CreateChatParams) (*db_models.Chat, error) {
	log.Printf("[PostgresStore] CreateChat called (ChatID: %s, UserID: %s)", arg.ID, arg.UserID)
	query := `
		INSERT INTO chats (id, user_id)
		VALUES ($1, $2)
		RETURNING id, user_id, summary, last_summarized_at_message_count, is_archived, created_at, updated_at`

	chat := &db_models.Chat{}
	err := s.db.QueryRow(ctx, query, arg.ID, arg.UserID).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Summary,
		&chat.LastSummarizedAtMessageCount,
		&chat.IsArchived,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateChat: Failed to insert chat %s: %v", arg.ID, err)
		return nil, fmt.Errorf("database error creating chat: %w", err)
	}

	return chat, nil
}

// GetChatByID retrieves a chat scoped to its owning user.
// Returns store.ErrNotFound when the chat does not exist or belongs to a
// different user.
func (s *PostgresStore) GetChatByID(ctx context.Context, chatID, userID uuid.UUID) (*db_models.Chat, error) {
	query := `
		SELECT id, user_id, summary, last_summarized_at_message_count, is_archived, created_at, updated_at
		FROM chats
		WHERE id = $1 AND user_id = $2`

	chat := &db_models.Chat{}
	err := s.db.QueryRow(ctx, query, chatID, userID).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Summary,
		&chat.LastSummarizedAtMessageCount,
		&chat.IsArchived,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetChatByID: Failed to query chat %s: %v", chatID, err)
		return nil, fmt.Errorf("database error fetching chat: %w", err)
	}

	return chat, nil
}

// ListChatsByUser returns the user's chats newest-first with message counts.
func (s *PostgresStore) ListChatsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]store.ChatWithCount, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT c.id, c.user_id, c.summary, c.last_summarized_at_message_count, c.is_archived, c.created_at, c.updated_at,
		       COUNT(m.id) AS messages_count
		FROM chats c
		LEFT JOIN messages m ON m.chat_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListChatsByUser: query failed for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error listing chats: %w", err)
	}
	defer rows.Close()

	var chats []store.ChatWithCount
	for rows.Next() {
		var cwc store.ChatWithCount
		err := rows.Scan(
			&cwc.Chat.ID,
			&cwc.Chat.UserID,
			&cwc.Chat.Summary,
			&cwc.Chat.LastSummarizedAtMessageCount,
			&cwc.Chat.IsArchived,
			&cwc.Chat.CreatedAt,
			&cwc.Chat.UpdatedAt,
			&cwc.MessagesCount,
		)
		if err != nil {
			return nil, fmt.Errorf("database error scanning chat row: %w", err)
		}
		chats = append(chats, cwc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating chats: %w", err)
	}

	return chats, nil
}

// UpdateChatSummary sets summary and the high-water mark together. A single
// UPDATE keeps the mark consistent with the text it reflects.
func (s *PostgresStore) UpdateChatSummary(ctx context.Context, chatID uuid.UUID, summary string, messageCount int) error {
	query := `
		UPDATE chats
		SET summary = $2, last_summarized_at_message_count = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, chatID, summary, messageCount)
	if err != nil {
		log.Printf("ERROR [PostgresStore] UpdateChatSummary: Failed to update chat %s: %v", chatID, err)
		return fmt.Errorf("database error updating chat summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}
