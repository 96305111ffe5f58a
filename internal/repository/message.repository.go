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
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

// Create inserts a new record. A duplicate meta_msg_id surfaces as a
// unique-constraint error from the store.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

// InsertIfAbsent inserts the record unless one with the same meta_msg_id
// already exists. The existing record is left untouched either way; the
// return value reports whether a new row was created. This is the single
// atomic insert-if-absent operation the reconciler keys on.
func (r *MessageRepository) InsertIfAbsent(ctx context.Context, msg *model.Message) (bool, error) {
	entity := toMessageEntity(msg)

	res := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meta_msg_id"}},
		DoNothing: true,
	}).Create(entity)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// ApplyStatus sets the status of the record matching metaMsgID. Statuses
// ranked strictly higher than the incoming one are never overwritten, so a
// stale "sent" cannot regress an already "read" message. Returns whether a
// row was modified.
func (r *MessageRepository) ApplyStatus(ctx context.Context, metaMsgID string, status model.MessageStatus) (bool, error) {
	q := r.Write(ctx).Model(&MessageEntity{}).Where("meta_msg_id = ?", metaMsgID)
	if higher := statusesAbove(status); len(higher) > 0 {
		q = q.Where("status NOT IN ?", higher)
	}

	res := q.Update("status", string(status))
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (r *MessageRepository) Exists(ctx context.Context, metaMsgID string) (bool, error) {
	var count int64
	err := r.Read(ctx).Model(&MessageEntity{}).
		Where("meta_msg_id = ?", metaMsgID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MessageRepository) GetByMetaMsgID(ctx context.Context, metaMsgID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).Where("meta_msg_id = ?", metaMsgID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// ListByConversation returns every message of a conversation in
// chronological order.
func (r *MessageRepository) ListByConversation(ctx context.Context, waID string) ([]*model.Message, error) {
	var entities []*MessageEntity
	err := r.Read(ctx).
		Where("wa_id = ?", waID).
		Order("timestamp ASC, id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toMessageModels(entities), nil
}

// ListConversations groups messages by wa_id, picks the record with the
// latest timestamp as the representative of each group and returns the
// groups newest-first.
func (r *MessageRepository) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	var rows []*conversationRow
	err := r.Read(ctx).Raw(`
        SELECT wa_id, text AS last_message, timestamp AS last_timestamp, sender AS name
        FROM (
            SELECT wa_id, text, timestamp, sender,
                   ROW_NUMBER() OVER (PARTITION BY wa_id ORDER BY timestamp DESC, id DESC) AS rn
            FROM processed_messages
        ) ranked
        WHERE rn = 1
        ORDER BY last_timestamp DESC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toConversationModels(rows), nil
}

// statusesAbove lists the known statuses ranked strictly higher than s.
// Empty for unknown tags, which therefore always apply.
func statusesAbove(s model.MessageStatus) []string {
	rank := model.StatusRank(s)
	if rank == 0 {
		return nil
	}
	var higher []string
	for _, known := range []model.MessageStatus{model.MessageStatusSent, model.MessageStatusDelivered, model.MessageStatusRead} {
		if model.StatusRank(known) > rank {
			higher = append(higher, string(known))
		}
	}
	return higher
}
