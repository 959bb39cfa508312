package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pointsystem/internal/model"
)

// PointStore 账户余额存储
// GetByUserID 对不存在的账户返回 model.EmptyUserPoint，而不是错误
type PointStore interface {
	GetByUserID(ctx context.Context, userID int64) (model.UserPoint, error)
	Save(ctx context.Context, point model.UserPoint) (model.UserPoint, error)
}

// HistoryStore 只追加的积分流水存储，ListByUserID 按追加顺序返回
type HistoryStore interface {
	Append(ctx context.Context, history model.PointHistory) (model.PointHistory, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.PointHistory, error)
}

// Guard 按账户串行化读改写
type Guard interface {
	WithLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error
}

// ErrLedgerIntegrity 余额已写入但流水追加失败，需要人工修复
var ErrLedgerIntegrity = errors.New("ledger integrity violated")

// IntegrityError 余额与流水不一致
type IntegrityError struct {
	Point  model.UserPoint // 已经持久化的余额
	Type   model.TransactionType
	Amount int64
	Err    error // 流水存储返回的错误
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violated: user %d saved point %d but %s history of %d was not recorded: %v",
		e.Point.ID, e.Point.Point, e.Type, e.Amount, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrLedgerIntegrity
}

type PointService struct {
	points    PointStore
	histories HistoryStore
	guard     Guard
	now       func() time.Time
}

type Option func(*PointService)

// WithClock 替换时间来源，测试使用
func WithClock(now func() time.Time) Option {
	return func(s *PointService) {
		s.now = now
	}
}

func NewPointService(points PointStore, histories HistoryStore, guard Guard, opts ...Option) *PointService {
	s := &PointService{
		points:    points,
		histories: histories,
		guard:     guard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPoint 查询余额，不加锁
func (s *PointService) GetPoint(ctx context.Context, userID int64) (model.UserPoint, error) {
	return s.points.GetByUserID(ctx, userID)
}

// GetHistory 查询流水，最早的在前，没有流水时返回空切片
func (s *PointService) GetHistory(ctx context.Context, userID int64) ([]model.PointHistory, error) {
	histories, err := s.histories.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if histories == nil {
		histories = []model.PointHistory{}
	}
	return histories, nil
}

// Charge 充值
func (s *PointService) Charge(ctx context.Context, userID int64, amount int64) (model.UserPoint, error) {
	return s.mutate(ctx, userID, amount, model.TransactionTypeCharge)
}

// Use 使用
func (s *PointService) Use(ctx context.Context, userID int64, amount int64) (model.UserPoint, error) {
	return s.mutate(ctx, userID, amount, model.TransactionTypeUse)
}

// mutate 在账户锁内执行：读余额 -> 校验 -> 计算新余额 -> 写余额 -> 追加流水
func (s *PointService) mutate(ctx context.Context, userID int64, amount int64, txType model.TransactionType) (model.UserPoint, error) {
	var result model.UserPoint

	err := s.guard.WithLock(ctx, userID, func(ctx context.Context) error {
		current, err := s.points.GetByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get point: %w", err)
		}

		var next model.UserPoint
		switch txType {
		case model.TransactionTypeCharge:
			if err := model.ValidateCharge(amount, current.Point); err != nil {
				return err
			}
			next = current.ApplyCharge(amount, s.timestamp(current.UpdatedAt))
		case model.TransactionTypeUse:
			if err := model.ValidateUse(amount, current.Point); err != nil {
				return err
			}
			next = current.ApplyUse(amount, s.timestamp(current.UpdatedAt))
		default:
			return fmt.Errorf("unknown transaction type %q", txType)
		}

		// 还没写入任何数据，可以放弃
		if err := ctx.Err(); err != nil {
			return err
		}
		// 写入余额后必须完成流水追加
		ctx = context.WithoutCancel(ctx)

		saved, err := s.points.Save(ctx, next)
		if err != nil {
			return fmt.Errorf("save point: %w", err)
		}

		history, err := s.histories.Append(ctx, model.PointHistory{
			UserID:     userID,
			Amount:     amount,
			Type:       txType,
			OccurredAt: saved.UpdatedAt,
		})
		if err != nil {
			ierr := &IntegrityError{Point: saved, Type: txType, Amount: amount, Err: err}
			log.Printf("[PointService] CRITICAL %v", ierr)
			return ierr
		}

		log.Printf("[PointService] %s 成功: userID=%d, amount=%d, point=%d, historyID=%d",
			txType, userID, amount, saved.Point, history.ID)
		result = saved
		return nil
	})
	if err != nil {
		return model.UserPoint{}, err
	}
	return result, nil
}

// timestamp 返回毫秒精度的当前时间，且不早于上一次变更时间
func (s *PointService) timestamp(last time.Time) time.Time {
	now := s.now().Truncate(time.Millisecond)
	if now.Before(last) {
		return last
	}
	return now
}

// AuditResult 单个账户的对账结果
type AuditResult struct {
	UserID     int64 `json:"user_id"`
	Point      int64 `json:"point"`
	Replayed   int64 `json:"replayed"`
	Entries    int   `json:"entries"`
	Consistent bool  `json:"consistent"`
}

// Audit 在账户锁内按顺序折叠流水，检查是否等于当前余额
func (s *PointService) Audit(ctx context.Context, userID int64) (AuditResult, error) {
	var result AuditResult
	err := s.guard.WithLock(ctx, userID, func(ctx context.Context) error {
		point, err := s.points.GetByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get point: %w", err)
		}
		histories, err := s.histories.ListByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
		replayed := model.Replay(histories)
		result = AuditResult{
			UserID:     userID,
			Point:      point.Point,
			Replayed:   replayed,
			Entries:    len(histories),
			Consistent: replayed == point.Point,
		}
		return nil
	})
	return result, err
}
