package repository

import (
	"context"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// AcquisitionRepository implements domain.AcquisitionRepository using PostgreSQL.
type AcquisitionRepository struct {
	db DBTX
}

// NewAcquisitionRepository creates a new AcquisitionRepository.
func NewAcquisitionRepository(db DBTX) *AcquisitionRepository {
	return &AcquisitionRepository{db: db}
}

var insertAcquisitionQuery = AcquisitionColumns.Insert()

// Create stores an acquisition lead. ID, status and created_at must be set.
func (r *AcquisitionRepository) Create(ctx context.Context, req *domain.AcquisitionRequest) error {
	err := Validate().
		RequireUUID(req.ID, "id").
		RequireUUID(req.BusinessID, "business_id").
		RequireString(req.Name, "name").
		RequireMaxLength(req.Name, 200, "name").
		RequireValidEmail(req.Email, "email").
		RequireString(req.Phone, "phone").
		RequireMaxLength(req.Message, 4000, "message").
		Error()
	if err != nil {
		return err
	}

	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	_, err = r.db.Exec(ctx, insertAcquisitionQuery,
		req.ID,
		req.BusinessID,
		req.SessionID,
		req.Name,
		req.Email,
		req.Phone,
		req.Budget,
		req.Message,
		string(req.Status),
		req.CreatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("acquisitions.Create", err)
	}
	return nil
}
