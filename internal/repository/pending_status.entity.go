package repository

import (
	"github.com/chatdeck/webhook-gateway/internal/model"
)

// PendingStatusEntity keys on meta_msg_id directly: the table can never
// hold more than one pending value per message.
type PendingStatusEntity struct {
	MetaMsgID string `db:"meta_msg_id" gorm:"primaryKey;column:meta_msg_id"`
	Status    string `db:"status"      gorm:"column:status;not null"`
}

func (PendingStatusEntity) TableName() string {
	return "pending_status_updates"
}

func toPendingStatusEntity(p *model.PendingStatusUpdate) *PendingStatusEntity {
	if p == nil {
		return nil
	}
	return &PendingStatusEntity{
		MetaMsgID: p.MetaMsgID,
		Status:    string(p.Status),
	}
}

func toPendingStatusModel(e *PendingStatusEntity) *model.PendingStatusUpdate {
	if e == nil {
		return nil
	}
	return &model.PendingStatusUpdate{
		MetaMsgID: e.MetaMsgID,
		Status:    model.MessageStatus(e.Status),
	}
}
