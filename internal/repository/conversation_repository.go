package repository

import (
	"context"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// ConversationRepository implements domain.ConversationRepository using PostgreSQL.
type ConversationRepository struct {
	db DBTX
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

var insertConversationQuery = ConversationColumns.Insert()

// Insert appends one exchange to chat_conversations.
func (r *ConversationRepository) Insert(ctx context.Context, rec *domain.ConversationRecord) error {
	if err := Validate().RequireString(rec.SessionID, "session_id").Error(); err != nil {
		return err
	}

	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, insertConversationQuery,
		rec.SessionID,
		rec.UserMessage,
		rec.AssistantResponse,
		rec.Page,
		rec.URL,
		rec.NeedsHuman,
		rec.CreatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("conversations.Insert", err)
	}
	return nil
}
