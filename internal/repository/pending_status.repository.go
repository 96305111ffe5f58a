package repository

import (
	"context"
	"errors"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/chatdeck/webhook-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPendingNotFound is returned when no pending status update exists
	// for the requested meta_msg_id.
	ErrPendingNotFound = errors.New("pending status update not found")
)

type PendingStatusRepository struct {
	*pg.DB
}

func NewPendingStatusRepository(db *pg.DB) *PendingStatusRepository {
	return &PendingStatusRepository{
		db,
	}
}

// Upsert records a pending status, overwriting any prior value for the
// same meta_msg_id (last write wins).
func (r *PendingStatusRepository) Upsert(ctx context.Context, p *model.PendingStatusUpdate) error {
	entity := toPendingStatusEntity(p)

	return r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meta_msg_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(entity).Error
}

func (r *PendingStatusRepository) Get(ctx context.Context, metaMsgID string) (*model.PendingStatusUpdate, error) {
	var entity PendingStatusEntity
	err := r.Read(ctx).Where("meta_msg_id = ?", metaMsgID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	return toPendingStatusModel(&entity), nil
}

// Delete removes the pending record for metaMsgID. Deleting an id that has
// no pending record is not an error.
func (r *PendingStatusRepository) Delete(ctx context.Context, metaMsgID string) error {
	return r.Write(ctx).
		Where("meta_msg_id = ?", metaMsgID).
		Delete(&PendingStatusEntity{}).Error
}
