package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 待投递到 Kafka 的消息，与积分流水在同一事务内写入
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// PointHistoryEvent 积分流水事件，作为 OutboxMessage.Payload 发送
type PointHistoryEvent struct {
	HistoryID     int64           `json:"history_id"`
	TransactionNo string          `json:"transaction_no"`
	UserID        int64           `json:"user_id"`
	Amount        int64           `json:"amount"`
	Type          TransactionType `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewPointHistoryEvent(h PointHistory) PointHistoryEvent {
	return PointHistoryEvent{
		HistoryID:     h.ID,
		TransactionNo: h.TransactionNo,
		UserID:        h.UserID,
		Amount:        h.Amount,
		Type:          h.Type,
		OccurredAt:    h.OccurredAt,
	}
}
