package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk-backend/internal/agents"
	"github.com/orderdesk/orderdesk-backend/internal/assignment"
	"github.com/orderdesk/orderdesk-backend/internal/ingest"
	"github.com/orderdesk/orderdesk-backend/internal/orders"
	"github.com/orderdesk/orderdesk-backend/internal/performance"
	"github.com/orderdesk/orderdesk-backend/internal/products"
	"github.com/orderdesk/orderdesk-backend/internal/settings"
	"github.com/orderdesk/orderdesk-backend/pkg/config"
	"github.com/orderdesk/orderdesk-backend/pkg/db"
	"github.com/orderdesk/orderdesk-backend/pkg/db/dbtest"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
	"github.com/orderdesk/orderdesk-backend/pkg/metrics"
)

var agentID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

type testServer struct {
	handler  http.Handler
	agents   *agents.Repository
	settings *settings.Repository
}

func newTestServer(t *testing.T, redisPinger stubPinger) *testServer {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.Nop()
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	reg := prometheus.NewRegistry()
	assignMetrics := metrics.NewAssignmentMetrics(reg)
	ordersRepo := orders.NewRepository(conn)
	agentsRepo := agents.NewRepository(conn)

	defaults, err := settings.DefaultsFromConfig(config.WorkHoursConfig{
		Start: "09:00", End: "17:00", Days: []int{1, 2, 3, 4, 5}, Timezone: "UTC",
	})
	require.NoError(t, err)
	settingsRepo := settings.NewRepository(conn, defaults)

	svc, err := ingest.NewService(ingest.ServiceParams{
		Logger:   logg,
		Tx:       db.FromConn(conn),
		Orders:   ordersRepo,
		Agents:   agentsRepo,
		Products: products.NewRepository(conn),
		Engine:   assignment.NewEngine(logg, assignMetrics),
		Metrics:  assignMetrics,
		Roles:    []enums.AgentRole{enums.AgentRoleAgent},
	})
	require.NoError(t, err)
	perf, err := performance.NewService(ordersRepo, settingsRepo)
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, Dependencies{
		DB:          stubPinger{},
		Redis:       redisPinger,
		Ingest:      svc,
		Settings:    settingsRepo,
		Performance: perf,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{handler: handler, agents: agentsRepo, settings: settingsRepo}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	w, _ := srv.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Header().Get("X-Orderdesk-Env"))

	w, _ = srv.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(t, stubPinger{err: errors.New("redis down")})
	w, env := down.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, env.Error)
	assert.True(t, env.Error.Retryable)
}

func TestIngestAndAssignRoutes(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	require.NoError(t, srv.agents.Create(context.Background(), &models.Agent{
		ID: agentID, Email: "a@x.io", DisplayName: "A", Role: enums.AgentRoleAgent,
		Status: enums.AgentStatusActive, CanViewOrders: true,
	}))

	body := `{"orders":[{"externalOrderNumber":"1001","lines":[{"productId":"sku-1","quantity":1}]},{"externalOrderNumber":"","lines":[]}]}`
	w, env := srv.do(t, http.MethodPost, "/v1/orders/ingest", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var batch ingest.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	require.Len(t, batch.Results, 2)
	assert.Equal(t, enums.AssignmentOutcomeAssigned, batch.Results[0].Outcome)
	require.NotNil(t, batch.Results[0].AgentID)
	assert.Equal(t, agentID, *batch.Results[0].AgentID)
	assert.Equal(t, enums.AssignmentOutcomeInvalid, batch.Results[1].Outcome)

	w, env = srv.do(t, http.MethodPost, "/v1/orders/"+batch.Results[0].OrderID.String()+"/assign", "")
	require.Equal(t, http.StatusOK, w.Code)
	var single ingest.OrderResult
	require.NoError(t, json.Unmarshal(env.Data, &single))
	assert.Equal(t, enums.AssignmentReasonExisting, single.Reason)

	w, env = srv.do(t, http.MethodPost, "/v1/orders/not-a-uuid/assign", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = srv.do(t, http.MethodPost, "/v1/orders/"+uuid.NewString()+"/assign", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, _ = srv.do(t, http.MethodPost, "/v1/orders/ingest", `{"orders":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = srv.do(t, http.MethodPost, "/v1/orders/ingest", `{"orders":[{"externalOrderNumber":"1"}],"unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = srv.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orderdesk_assignment_outcomes_total")
}

func TestWorktimeRoutes(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	w, env := srv.do(t, http.MethodGet, "/v1/worktime/net?start=2026-03-02T08:00:00Z&end=2026-03-02T10:30:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	var net struct {
		NetMinutes int `json:"netMinutes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &net))
	assert.Equal(t, 90, net.NetMinutes)

	w, env = srv.do(t, http.MethodGet, "/v1/worktime/recall?from=2026-03-06T16:00:00Z&minutes=120", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recall struct {
		RecallAt time.Time `json:"recallAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &recall))
	assert.True(t, recall.RecallAt.Equal(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)), recall.RecallAt.String())

	w, _ = srv.do(t, http.MethodGet, "/v1/worktime/net?start=yesterday&end=2026-03-02T10:30:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkSettingsRoutes(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	w, _ := srv.do(t, http.MethodPut, "/v1/settings/work-hours/", `{"workStart":"10:00","workEnd":"18:00","workDays":[1,2,3],"timezone":"UTC"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := srv.do(t, http.MethodGet, "/v1/settings/work-hours/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got settings.Input
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "10:00", got.WorkStart)
	assert.Equal(t, []int{1, 2, 3}, got.WorkDays)

	w, _ = srv.do(t, http.MethodPut, "/v1/settings/work-hours/", `{"workStart":"18:00","workEnd":"10:00","workDays":[1],"timezone":"UTC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentPerformanceRoute(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	w, env := srv.do(t, http.MethodGet, "/v1/agents/"+agentID.String()+"/performance?from=2026-03-01T00:00:00Z&to=2026-03-08T00:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats performance.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, agentID, stats.AgentID)
	assert.Zero(t, stats.Assigned)

	w, _ = srv.do(t, http.MethodGet, "/v1/agents/"+agentID.String()+"/performance?from=2026-03-08T00:00:00Z&to=2026-03-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
