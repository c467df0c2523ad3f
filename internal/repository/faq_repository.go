package repository

import (
	"context"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// FAQRepository implements domain.FAQRepository using PostgreSQL.
type FAQRepository struct {
	db DBTX
}

// NewFAQRepository creates a new FAQRepository.
func NewFAQRepository(db DBTX) *FAQRepository {
	return &FAQRepository{db: db}
}

var listActiveFAQsQuery = "SELECT " + FAQColumns.Select() +
	" FROM chatbot_faqs WHERE active = true ORDER BY category, question"

// ListActive returns the active FAQ entries.
func (r *FAQRepository) ListActive(ctx context.Context) ([]*domain.FAQ, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, listActiveFAQsQuery)
	if err != nil {
		return nil, apperrors.DatabaseError("faqs.ListActive", err)
	}
	defer rows.Close()

	var out []*domain.FAQ
	for rows.Next() {
		var f domain.FAQ
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &f.Category, &f.CustomSuggestions, &f.Active); err != nil {
			return nil, apperrors.DatabaseError("faqs.ListActive", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("faqs.ListActive", err)
	}
	return out, nil
}
