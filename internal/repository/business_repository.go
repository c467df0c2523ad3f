package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// BusinessRepository implements domain.BusinessRepository using PostgreSQL.
type BusinessRepository struct {
	db DBTX
}

// NewBusinessRepository creates a new BusinessRepository.
func NewBusinessRepository(db DBTX) *BusinessRepository {
	return &BusinessRepository{db: db}
}

var (
	listAvailableBusinessesQuery = "SELECT " + BusinessColumns.Select() +
		" FROM businesses WHERE status = $1 ORDER BY created_at DESC"
	getBusinessQuery = "SELECT " + BusinessColumns.Select() + " FROM businesses WHERE id = $1"
)

// ListAvailable returns available businesses, newest first.
func (r *BusinessRepository) ListAvailable(ctx context.Context) ([]*domain.Business, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, listAvailableBusinessesQuery, string(domain.BusinessStatusAvailable))
	if err != nil {
		return nil, apperrors.DatabaseError("businesses.ListAvailable", err)
	}
	defer rows.Close()

	var out []*domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("businesses.ListAvailable", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("businesses.ListAvailable", err)
	}
	return out, nil
}

// GetByID returns a business regardless of status, nil if it does not exist.
func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	b, err := scanBusiness(r.db.QueryRow(ctx, getBusinessQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError("businesses.GetByID", err)
	}
	return b, nil
}

func scanBusiness(row pgx.Row) (*domain.Business, error) {
	var (
		b      domain.Business
		status string
		weekly *string
	)
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Slug,
		&b.Category,
		&b.Description,
		&b.Price,
		&b.MonthlyPotential,
		&status,
		&b.ROIEstimationMonths,
		&weekly,
		&b.Benefits,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BusinessStatus(status)
	if weekly != nil {
		b.TimeRequiredWeekly = *weekly
	}
	return &b, nil
}
