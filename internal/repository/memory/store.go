package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"pointsystem/internal/model"
	"pointsystem/pkg/idgen"
	"pointsystem/pkg/wal"
)

// PointStore 内存中的账户余额
type PointStore struct {
	mu     sync.RWMutex
	points map[int64]model.UserPoint
}

func NewPointStore() *PointStore {
	return &PointStore{points: make(map[int64]model.UserPoint)}
}

// GetByUserID 不存在时返回零余额账户
func (s *PointStore) GetByUserID(ctx context.Context, userID int64) (model.UserPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.points[userID]; ok {
		return p, nil
	}
	return model.EmptyUserPoint(userID), nil
}

func (s *PointStore) Save(ctx context.Context, point model.UserPoint) (model.UserPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[point.ID] = point
	return point, nil
}

func (s *PointStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.points))
	for id := range s.points {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HistoryStore 内存中的积分流水
// 配置了 WAL 时，每条流水先写 WAL 再对外可见
type HistoryStore struct {
	mu        sync.RWMutex
	seq       int64
	histories map[int64][]model.PointHistory
	wal       *wal.WAL
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{histories: make(map[int64][]model.PointHistory)}
}

// Append 分配递增的流水ID并追加
func (s *HistoryStore) Append(ctx context.Context, history model.PointHistory) (model.PointHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history.ID = s.seq + 1
	if history.TransactionNo == "" {
		history.TransactionNo = idgen.GenerateTransactionNo()
	}
	if s.wal != nil {
		if err := s.wal.Write(history); err != nil {
			return model.PointHistory{}, fmt.Errorf("write wal: %w", err)
		}
	}
	s.seq = history.ID
	s.histories[history.UserID] = append(s.histories[history.UserID], history)
	return history, nil
}

// ListByUserID 返回副本，最早的在前
func (s *HistoryStore) ListByUserID(ctx context.Context, userID int64) ([]model.PointHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.histories[userID]
	out := make([]model.PointHistory, len(src))
	copy(out, src)
	return out, nil
}

// Open 创建内存存储；walPath 非空时从 WAL 恢复流水并重建余额
func Open(walPath string) (*PointStore, *HistoryStore, error) {
	points := NewPointStore()
	histories := NewHistoryStore()
	if walPath == "" {
		return points, histories, nil
	}

	w, err := wal.Open(walPath)
	if err != nil {
		return nil, nil, err
	}
	err = w.ReadAll(func(raw json.RawMessage) error {
		var h model.PointHistory
		if err := json.Unmarshal(raw, &h); err != nil {
			return err
		}
		return replay(points, histories, h)
	})
	if err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("replay wal: %w", err)
	}
	histories.wal = w
	return points, histories, nil
}

// replay 恢复单条流水（单线程，不写 WAL）
func replay(points *PointStore, histories *HistoryStore, h model.PointHistory) error {
	if h.ID <= histories.seq {
		return fmt.Errorf("wal record %d out of order", h.ID)
	}
	histories.seq = h.ID
	histories.histories[h.UserID] = append(histories.histories[h.UserID], h)

	p, ok := points.points[h.UserID]
	if !ok {
		p = model.EmptyUserPoint(h.UserID)
	}
	switch h.Type {
	case model.TransactionTypeCharge:
		p = p.ApplyCharge(h.Amount, h.OccurredAt)
	case model.TransactionTypeUse:
		p = p.ApplyUse(h.Amount, h.OccurredAt)
	default:
		return fmt.Errorf("wal record %d: unknown type %q", h.ID, h.Type)
	}
	points.points[h.UserID] = p
	return nil
}

// Close 关闭 WAL
func (s *HistoryStore) Close() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.Close()
}
