package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"pointsystem/internal/infrastructure/database"
	"pointsystem/internal/infrastructure/lock"
	"pointsystem/internal/infrastructure/mq"
	"pointsystem/internal/model"
	"pointsystem/internal/repository"
	"pointsystem/internal/repository/memory"
	"pointsystem/internal/service"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func appendHistory(t *testing.T, repo *repository.HistoryRepository, userID int64) {
	t.Helper()
	_, err := repo.Append(context.Background(), model.PointHistory{
		UserID: userID, Amount: 10000, Type: model.TransactionTypeCharge, OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOutboxSenderMarksSent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	histories := repository.NewHistoryRepository(db, "point_history")
	outbox := repository.NewOutboxRepository(db)

	appendHistory(t, histories, 1)
	appendHistory(t, histories, 2)

	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()
	producer := mq.NewProducer(sp)
	defer producer.Close()

	sender := NewOutboxSender(outbox, producer, time.Second, 10, 3)
	sender.processPendingMessages(ctx)

	pending, err := outbox.GetPendingMessages(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestOutboxSenderRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	histories := repository.NewHistoryRepository(db, "point_history")
	outbox := repository.NewOutboxRepository(db)

	appendHistory(t, histories, 1)

	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer := mq.NewProducer(sp)
	defer producer.Close()

	sender := NewOutboxSender(outbox, producer, time.Second, 10, 2)

	sender.processPendingMessages(ctx)
	msg, err := outbox.GetByID(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != model.OutboxStatusPending || msg.RetryCount != 1 {
		t.Fatalf("after first failure: %+v", msg)
	}

	sender.processPendingMessages(ctx)
	msg, err = outbox.GetByID(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != model.OutboxStatusFailed || msg.RetryCount != 2 {
		t.Errorf("after second failure: %+v", msg)
	}
}

type recordingSender struct {
	fail map[string]bool
	sent []string
}

func (s *recordingSender) SendMessage(topic, key, value string) error {
	if s.fail[key] {
		return errors.New("broker unavailable")
	}
	s.sent = append(s.sent, key)
	return nil
}

func TestOutboxSenderKeepsPerUserOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	histories := repository.NewHistoryRepository(db, "point_history")
	outbox := repository.NewOutboxRepository(db)

	appendHistory(t, histories, 1)
	appendHistory(t, histories, 2)
	appendHistory(t, histories, 1)

	rs := &recordingSender{fail: map[string]bool{"1": true}}
	sender := NewOutboxSender(outbox, rs, time.Second, 10, 5)
	sender.processPendingMessages(ctx)

	if len(rs.sent) != 1 || rs.sent[0] != "2" {
		t.Errorf("sent = %v, want [2]", rs.sent)
	}

	// 用户1的第二条消息不能越过第一条
	second, err := outbox.GetByID(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != model.OutboxStatusPending || second.RetryCount != 0 {
		t.Errorf("second message for user 1 = %+v", second)
	}
}

func TestOutboxSenderStop(t *testing.T) {
	db := newTestDB(t)
	sender := NewOutboxSender(repository.NewOutboxRepository(db), &recordingSender{}, 10*time.Millisecond, 10, 3)

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()
	sender.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not stop")
	}
}

type brokenHistoryStore struct {
	*memory.HistoryStore
	fail bool
}

func (s *brokenHistoryStore) Append(ctx context.Context, h model.PointHistory) (model.PointHistory, error) {
	if s.fail {
		return model.PointHistory{}, errors.New("disk full")
	}
	return s.HistoryStore.Append(ctx, h)
}

func TestLedgerAuditJobReportsMismatch(t *testing.T) {
	ctx := context.Background()
	points := memory.NewPointStore()
	histories := &brokenHistoryStore{HistoryStore: memory.NewHistoryStore()}
	svc := service.NewPointService(points, histories, lock.NewKeyedMutex())

	if _, err := svc.Charge(ctx, 1, 10000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Charge(ctx, 2, 10000); err != nil {
		t.Fatal(err)
	}

	job := NewLedgerAuditJob(points, svc, time.Minute)
	if mismatched := job.RunOnce(ctx); len(mismatched) != 0 {
		t.Fatalf("mismatched = %+v, want none", mismatched)
	}

	histories.fail = true
	if _, err := svc.Charge(ctx, 2, 10000); !errors.Is(err, service.ErrLedgerIntegrity) {
		t.Fatalf("Charge err = %v, want ErrLedgerIntegrity", err)
	}

	mismatched := job.RunOnce(ctx)
	if len(mismatched) != 1 {
		t.Fatalf("mismatched = %+v, want one account", mismatched)
	}
	got := mismatched[0]
	if got.UserID != 2 || got.Point != 20000 || got.Replayed != 10000 || got.Entries != 1 {
		t.Errorf("audit result = %+v", got)
	}
}

type failingLister struct{}

func (failingLister) ListUserIDs(ctx context.Context) ([]int64, error) {
	return nil, errors.New("db down")
}

func TestLedgerAuditJobListFailure(t *testing.T) {
	svc := service.NewPointService(memory.NewPointStore(), memory.NewHistoryStore(), lock.NewKeyedMutex())
	job := NewLedgerAuditJob(failingLister{}, svc, time.Minute)
	if mismatched := job.RunOnce(context.Background()); mismatched != nil {
		t.Errorf("mismatched = %+v, want nil", mismatched)
	}
}
