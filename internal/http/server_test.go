package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/orderdesk/internal/config"
	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmehdipour/orderdesk/internal/notification"
	"github.com/jmehdipour/orderdesk/internal/whatsapp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type stubUsers struct{}

func (stubUsers) GetByAPIKey(ctx context.Context, key string) (*model.User, error) {
	if key == "good-key" {
		return &model.User{ID: 7, Status: "active"}, nil
	}
	return nil, nil
}

type MockQueue struct{ mock.Mock }

func (m *MockQueue) EnqueueExport(ctx context.Context, requesterID int64, params map[string]string) (string, error) {
	args := m.Called(ctx, requesterID, params)
	return args.String(0), args.Error(1)
}

type MockStatus struct{ mock.Mock }

func (m *MockStatus) Get(ctx context.Context, key string) (*model.ExportStatus, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExportStatus), args.Error(1)
}

type MockHistory struct{ mock.Mock }

func (m *MockHistory) ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]model.ExportRun, error) {
	args := m.Called(ctx, requesterID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExportRun), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Send(ctx context.Context, to notification.Notifiable, n notification.Notification) error {
	args := m.Called(ctx, to, n)
	return args.Error(0)
}

type fixture struct {
	srv      *Server
	queue    *MockQueue
	status   *MockStatus
	history  *MockHistory
	notifier *MockNotifier
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	f := &fixture{
		queue:    new(MockQueue),
		status:   new(MockStatus),
		history:  new(MockHistory),
		notifier: new(MockNotifier),
	}
	deps := Deps{
		Users:    stubUsers{},
		Queue:    f.queue,
		Status:   f.status,
		Notifier: f.notifier,
		Gatherer: prometheus.NewRegistry(),
	}
	if withHistory {
		deps.Runs = f.history
	}
	cfg := config.Config{
		App:      config.AppConfig{Timezone: "Asia/Singapore"},
		WhatsApp: config.WhatsAppConfig{DefaultCountry: "65"},
	}
	f.srv = NewServer(cfg, deps)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-API-Key", "good-key")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	f := newFixture(t, false)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRoutes_RequireAPIKey(t *testing.T) {
	f := newFixture(t, false)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/exports/x", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateExport_Accepted(t *testing.T) {
	f := newFixture(t, false)
	f.queue.On("EnqueueExport", mock.Anything, int64(7), map[string]string{
		"search":     "alice",
		"date_range": "2024-01-01 to 2024-01-31",
	}).Return("01HZYEXPORT", nil).Once()

	rec := f.do(http.MethodPost, "/v1/exports/orders",
		`{"params":{"search":" alice ","date_range":"2024-01-01 to 2024-01-31","sort":""}}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"export_id":"01HZYEXPORT","status":"pending"}`, rec.Body.String())
	f.queue.AssertExpectations(t)
}

func TestCreateExport_InvalidFilter(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/v1/exports/orders", `{"params":{"date_range":"2024-02-01 to 2024-01-01"}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	f.queue.AssertNotCalled(t, "EnqueueExport", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateExport_QueueError(t *testing.T) {
	f := newFixture(t, false)
	f.queue.On("EnqueueExport", mock.Anything, int64(7), map[string]string{}).Return("", errors.New("broker down")).Once()

	rec := f.do(http.MethodPost, "/v1/exports/orders", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportStatus(t *testing.T) {
	f := newFixture(t, false)
	f.status.On("Get", mock.Anything, "export:7:pending-one").Return(nil, nil).Once()
	f.status.On("Get", mock.Anything, "export:7:done").
		Return(&model.ExportStatus{Status: model.ExportSuccess, URL: "https://x.test/a.csv"}, nil).Once()
	f.status.On("Get", mock.Anything, "export:7:broken").Return(nil, errors.New("redis down")).Once()

	rec := f.do(http.MethodGet, "/v1/exports/pending-one", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"pending"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/exports/done", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","url":"https://x.test/a.csv"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/exports/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	f.status.AssertExpectations(t)
}

func TestListExports(t *testing.T) {
	f := newFixture(t, true)
	finished := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f.history.On("ListByRequester", mock.Anything, int64(7), 10, 20).Return([]model.ExportRun{{
		ExportID: "e1", RequesterID: 7, Status: model.ExportSuccess, Rows: 3, Attempts: 1, FinishedAt: finished,
	}}, nil).Once()

	rec := f.do(http.MethodGet, "/v1/exports?limit=10&offset=20", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"export_id":"e1"`)
	f.history.AssertExpectations(t)
}

func TestListExports_HistoryDisabled(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/v1/exports", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendWhatsApp(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"sent", nil, http.StatusAccepted},
		{"invalid", notification.ErrInvalidMessage, http.StatusUnprocessableEntity},
		{"api error", &notification.APIError{StatusCode: 403, Body: "{}"}, http.StatusBadGateway},
		{"circuit open", whatsapp.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"other", errors.New("dial tcp: timeout"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.notifier.On("Send", mock.Anything, notification.Recipient{Phone: "6591234567"}, notification.OrderUpdateNotification{
				Message:  "Shipped",
				URL:      "https://x.test/o/1",
				Template: "order_update",
				Language: "en",
			}).Return(tc.err).Once()

			rec := f.do(http.MethodPost, "/v1/notifications/whatsapp",
				`{"to":"9123 4567","template":"order_update","language":"en","message":"Shipped","url":"https://x.test/o/1"}`)

			assert.Equal(t, tc.code, rec.Code)
			f.notifier.AssertExpectations(t)
		})
	}
}
