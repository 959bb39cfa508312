package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pointsystem/internal/infrastructure/lock"
	"pointsystem/internal/model"
	"pointsystem/internal/repository/memory"
	"pointsystem/internal/service"
	"pointsystem/pkg/response"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, histories service.HistoryStore) *gin.Engine {
	t.Helper()
	if histories == nil {
		histories = memory.NewHistoryStore()
	}
	svc := service.NewPointService(memory.NewPointStore(), histories, lock.NewKeyedMutex())
	return SetupRouter(svc, gin.TestMode)
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w, env
}

func TestChargeUseAndQuery(t *testing.T) {
	r := newTestRouter(t, nil)

	w, env := do(t, r, http.MethodPatch, "/api/v1/point/1/charge", `{"amount":20000}`)
	if w.Code != http.StatusOK || env.Code != response.CodeSuccess {
		t.Fatalf("charge: status=%d body=%s", w.Code, w.Body.String())
	}

	w, env = do(t, r, http.MethodPatch, "/api/v1/point/1/use", `{"amount":5000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("use: status=%d body=%s", w.Code, w.Body.String())
	}
	var p model.UserPoint
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.ID != 1 || p.Point != 15000 {
		t.Errorf("use result = %+v", p)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/point/1", "")
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Point != 15000 {
		t.Errorf("GetPoint = %+v", p)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/point/1/histories", "")
	var histories []model.PointHistory
	if err := json.Unmarshal(env.Data, &histories); err != nil {
		t.Fatal(err)
	}
	if len(histories) != 2 || histories[0].Type != model.TransactionTypeCharge || histories[1].Type != model.TransactionTypeUse {
		t.Errorf("histories = %+v", histories)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/point/1/audit", "")
	var audit service.AuditResult
	if err := json.Unmarshal(env.Data, &audit); err != nil {
		t.Fatal(err)
	}
	if !audit.Consistent || audit.Entries != 2 {
		t.Errorf("audit = %+v", audit)
	}
}

func TestUnknownUserHasEmptyState(t *testing.T) {
	r := newTestRouter(t, nil)

	_, env := do(t, r, http.MethodGet, "/api/v1/point/99", "")
	var p model.UserPoint
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.ID != 99 || p.Point != 0 {
		t.Errorf("GetPoint = %+v", p)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/point/99/histories", "")
	if string(env.Data) != "[]" {
		t.Errorf("histories = %s, want []", env.Data)
	}
}

func TestBusinessErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want *model.PointError
	}{
		{"negative charge", "/api/v1/point/1/charge", `{"amount":-1}`, model.ErrNegativeAmount},
		{"charge below minimum", "/api/v1/point/1/charge", `{"amount":9000}`, model.ErrChargeAmountTooLow},
		{"charge not unit", "/api/v1/point/1/charge", `{"amount":10500}`, model.ErrNotUnitOfThousand},
		{"charge over maximum", "/api/v1/point/1/charge", `{"amount":10001000}`, model.ErrExceedMaxBalance},
		{"zero use", "/api/v1/point/1/use", `{"amount":0}`, model.ErrZeroAmount},
		{"use below minimum", "/api/v1/point/1/use", `{"amount":4000}`, model.ErrUseAmountTooLow},
		{"use more than balance", "/api/v1/point/1/use", `{"amount":5000}`, model.ErrInsufficientPoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, nil)
			w, env := do(t, r, http.MethodPatch, tt.path, tt.body)
			if w.Code != http.StatusBadRequest || env.Code != tt.want.Code {
				t.Errorf("status=%d code=%d, want 400/%d", w.Code, env.Code, tt.want.Code)
			}
		})
	}
}

func TestParamErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"bad id", http.MethodGet, "/api/v1/point/abc", ""},
		{"negative id", http.MethodGet, "/api/v1/point/-1", ""},
		{"missing amount", http.MethodPatch, "/api/v1/point/1/charge", `{}`},
		{"malformed body", http.MethodPatch, "/api/v1/point/1/use", `{"amount":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, nil)
			w, env := do(t, r, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest || env.Code != response.CodeParamError {
				t.Errorf("status=%d code=%d body=%s", w.Code, env.Code, w.Body.String())
			}
		})
	}
}

type failingHistoryStore struct {
	*memory.HistoryStore
}

func (failingHistoryStore) Append(ctx context.Context, h model.PointHistory) (model.PointHistory, error) {
	return model.PointHistory{}, errors.New("disk full")
}

func TestIntegrityFailure(t *testing.T) {
	r := newTestRouter(t, failingHistoryStore{memory.NewHistoryStore()})

	w, env := do(t, r, http.MethodPatch, "/api/v1/point/1/charge", `{"amount":10000}`)
	if w.Code != http.StatusInternalServerError || env.Code != response.CodeLedgerIntegrity {
		t.Errorf("status=%d code=%d", w.Code, env.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "req-1" {
		t.Errorf("request id = %q, want req-1", got)
	}
}
