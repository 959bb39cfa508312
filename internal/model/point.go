package model

import (
	"time"
)

// UserPoint 用户积分账户
// 每次变更都产生新的值，不在原值上修改
type UserPoint struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`                    // 用户ID
	Point     int64     `gorm:"not null;default:0" json:"point"`                             // 当前积分
	UpdatedAt time.Time `gorm:"precision:3;autoUpdateTime:false;not null" json:"updated_at"` // 最后变更时间
}

func (UserPoint) TableName() string {
	return "user_point"
}

// EmptyUserPoint 未变更过的账户，与余额为 0 的账户等价
func EmptyUserPoint(id int64) UserPoint {
	return UserPoint{ID: id}
}

// ApplyCharge 返回充值后的新账户，调用前必须已通过 ValidateCharge
func (p UserPoint) ApplyCharge(amount int64, now time.Time) UserPoint {
	return UserPoint{ID: p.ID, Point: p.Point + amount, UpdatedAt: now}
}

// ApplyUse 返回使用后的新账户，调用前必须已通过 ValidateUse
func (p UserPoint) ApplyUse(amount int64, now time.Time) UserPoint {
	return UserPoint{ID: p.ID, Point: p.Point - amount, UpdatedAt: now}
}
