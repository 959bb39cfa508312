package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

// TransactionType 积分变动类型
type TransactionType string

const (
	TransactionTypeCharge TransactionType = "CHARGE" // 充值
	TransactionTypeUse    TransactionType = "USE"    // 使用
)

// ============================================================================
// 积分流水实体
// ============================================================================

// PointHistory 积分流水表
//
// 【重要】流水设计原则：
// 1. 只追加，不修改，不删除
// 2. Amount 记录变动金额（正数），不记录变动后余额
// 3. OccurredAt 与本次变更产生的 UserPoint.UpdatedAt 一致
type PointHistory struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	Amount        int64           `gorm:"not null" json:"amount"`
	Type          TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	OccurredAt    time.Time       `gorm:"precision:3;not null" json:"occurred_at"`
}

func (PointHistory) TableName() string {
	return "point_history"
}

// Signed 返回带符号的变动金额
func (h PointHistory) Signed() int64 {
	if h.Type == TransactionTypeUse {
		return -h.Amount
	}
	return h.Amount
}

// Replay 从零余额开始按顺序折叠流水，结果应等于账户当前余额
func Replay(histories []PointHistory) int64 {
	var balance int64
	for _, h := range histories {
		balance += h.Signed()
	}
	return balance
}
