package repository

import (
	"context"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// FunnelRepository implements domain.FunnelRepository using PostgreSQL.
type FunnelRepository struct {
	db DBTX
}

// NewFunnelRepository creates a new FunnelRepository.
func NewFunnelRepository(db DBTX) *FunnelRepository {
	return &FunnelRepository{db: db}
}

var insertSnapshotQuery = FunnelColumns.Insert()

// InsertSnapshot appends a funnel snapshot to conversion_funnels.
func (r *FunnelRepository) InsertSnapshot(ctx context.Context, snap *domain.FunnelSnapshot) error {
	err := Validate().
		RequireString(snap.SessionID, "session_id").
		RequireStage(snap.Stage.Valid(), "funnel_stage").
		Error()
	if err != nil {
		return err
	}

	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	_, err = r.db.Exec(ctx, insertSnapshotQuery,
		snap.SessionID,
		string(snap.Stage),
		nonNil(snap.BusinessesViewed),
		nonNil(snap.TopicsDiscussed),
		nonNil(snap.Objections),
		snap.ReadyToBuy,
		snap.URL,
		snap.CreatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("funnels.InsertSnapshot", err)
	}
	return nil
}

// nonNil stores empty lists as '{}' rather than NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
