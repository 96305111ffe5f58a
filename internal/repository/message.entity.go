package repository

import (
	"time"

	"github.com/chatdeck/webhook-gateway/internal/model"
)

type MessageEntity struct {
	ID        int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	MetaMsgID string    `db:"meta_msg_id" gorm:"column:meta_msg_id;not null;uniqueIndex"`
	WaID      string    `db:"wa_id"       gorm:"column:wa_id;index"`
	Sender    string    `db:"sender"      gorm:"column:sender"`
	Text      string    `db:"text"        gorm:"column:text"`
	Type      string    `db:"type"        gorm:"column:type"`
	Timestamp int64     `db:"timestamp"   gorm:"column:timestamp;index"`
	Status    string    `db:"status"      gorm:"column:status;not null;default:sent"`
	CreatedAt time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (MessageEntity) TableName() string {
	return "processed_messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:        m.ID,
		MetaMsgID: m.MetaMsgID,
		WaID:      m.WaID,
		Sender:    m.From,
		Text:      m.Text,
		Type:      m.Type,
		Timestamp: m.Timestamp,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:        e.ID,
		MetaMsgID: e.MetaMsgID,
		WaID:      e.WaID,
		From:      e.Sender,
		Text:      e.Text,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Status:    model.MessageStatus(e.Status),
		CreatedAt: e.CreatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}

// conversationRow is the scan target for the conversation listing query.
type conversationRow struct {
	WaID          string `gorm:"column:wa_id"`
	LastMessage   string `gorm:"column:last_message"`
	LastTimestamp int64  `gorm:"column:last_timestamp"`
	Name          string `gorm:"column:name"`
}

func toConversationModels(rows []*conversationRow) []*model.Conversation {
	models := make([]*model.Conversation, len(rows))
	for i, r := range rows {
		models[i] = &model.Conversation{
			WaID:          r.WaID,
			LastMessage:   r.LastMessage,
			LastTimestamp: r.LastTimestamp,
			Name:          r.Name,
		}
	}
	return models
}
