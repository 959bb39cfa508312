package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"pointsystem/internal/model"
	"pointsystem/pkg/idgen"

	"gorm.io/gorm"
)

// HistoryRepository 积分流水
//
// 追加流水时在同一事务内写入 outbox 消息，由 OutboxSender 投递到 Kafka。
// 消息 key 使用用户ID，同一用户的事件落在同一分区，保持顺序。
type HistoryRepository struct {
	db    *gorm.DB
	topic string
}

// NewHistoryRepository topic 为空时不写 outbox
func NewHistoryRepository(db *gorm.DB, topic string) *HistoryRepository {
	return &HistoryRepository{db: db, topic: topic}
}

func (r *HistoryRepository) Append(ctx context.Context, history model.PointHistory) (model.PointHistory, error) {
	if history.TransactionNo == "" {
		history.TransactionNo = idgen.GenerateTransactionNo()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		if r.topic == "" {
			return nil
		}

		payload, err := json.Marshal(model.NewPointHistoryEvent(history))
		if err != nil {
			return err
		}
		msg := &model.OutboxMessage{
			MessageKey: strconv.FormatInt(history.UserID, 10),
			Topic:      r.topic,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create outbox message: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.PointHistory{}, err
	}
	return history, nil
}

// ListByUserID 按流水ID升序返回
func (r *HistoryRepository) ListByUserID(ctx context.Context, userID int64) ([]model.PointHistory, error) {
	histories := []model.PointHistory{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&histories).Error
	return histories, err
}

func (r *HistoryRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.PointHistory, error) {
	var history model.PointHistory
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&history).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &history, nil
}
