package repository

import (
	"context"
	"errors"

	"pointsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PointRepository struct {
	db *gorm.DB
}

func NewPointRepository(db *gorm.DB) *PointRepository {
	return &PointRepository{db: db}
}

// GetByUserID 查询账户，不存在时返回零余额账户
func (r *PointRepository) GetByUserID(ctx context.Context, userID int64) (model.UserPoint, error) {
	var point model.UserPoint
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&point).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.EmptyUserPoint(userID), nil
		}
		return model.UserPoint{}, err
	}
	return point, nil
}

// Save 按用户ID upsert 余额与更新时间
func (r *PointRepository) Save(ctx context.Context, point model.UserPoint) (model.UserPoint, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"point", "updated_at"}),
		}).
		Create(&point).Error
	if err != nil {
		return model.UserPoint{}, err
	}
	return point, nil
}

// ListUserIDs 返回所有有过变更的用户ID
func (r *PointRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.UserPoint{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
