package job

import (
	"context"
	"log"
	"time"

	"pointsystem/internal/service"
)

// UserLister 列出所有存在积分账户的用户
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Auditor 单账户对账
type Auditor interface {
	Audit(ctx context.Context, userID int64) (service.AuditResult, error)
}

// LedgerAuditJob 定时核对每个账户的余额与流水折叠结果，只报告不修复
type LedgerAuditJob struct {
	users    UserLister
	auditor  Auditor
	stopCh   chan struct{}
	interval time.Duration
}

func NewLedgerAuditJob(users UserLister, auditor Auditor, interval time.Duration) *LedgerAuditJob {
	return &LedgerAuditJob{
		users:    users,
		auditor:  auditor,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	log.Println("[LedgerAuditJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerAuditJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[LedgerAuditJob] 任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

// RunOnce 执行一轮对账，返回不一致的账户
func (j *LedgerAuditJob) RunOnce(ctx context.Context) []service.AuditResult {
	userIDs, err := j.users.ListUserIDs(ctx)
	if err != nil {
		log.Printf("[LedgerAuditJob] 查询账户失败: %v", err)
		return nil
	}

	var mismatched []service.AuditResult
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return mismatched
		}
		result, err := j.auditor.Audit(ctx, userID)
		if err != nil {
			log.Printf("[LedgerAuditJob] 对账失败: userID=%d, err=%v", userID, err)
			continue
		}
		if !result.Consistent {
			log.Printf("[LedgerAuditJob] CRITICAL 余额与流水不一致: userID=%d, point=%d, replayed=%d, entries=%d",
				result.UserID, result.Point, result.Replayed, result.Entries)
			mismatched = append(mismatched, result)
		}
	}

	if len(userIDs) > 0 {
		log.Printf("[LedgerAuditJob] 对账完成: accounts=%d, mismatched=%d", len(userIDs), len(mismatched))
	}
	return mismatched
}
