package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderdesk/orderdesk-backend/api/controllers"
	"github.com/orderdesk/orderdesk-backend/api/middleware"
	"github.com/orderdesk/orderdesk-backend/internal/ingest"
	"github.com/orderdesk/orderdesk-backend/internal/performance"
	"github.com/orderdesk/orderdesk-backend/pkg/config"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
)

// Dependencies are the services behind the HTTP surface. Redis, PubSub,
// Idempotency and Metrics may be nil.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	PubSub      controllers.Pinger
	Idempotency middleware.IdempotencyStore
	Ingest      ingest.Service
	Settings    controllers.SettingsStore
	Performance performance.Service
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "db", Pinger: deps.DB},
			controllers.Dependency{Name: "redis", Pinger: deps.Redis},
			controllers.Dependency{Name: "pubsub", Pinger: deps.PubSub},
		))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.Idempotency(deps.Idempotency, cfg.Assignment.IdempotencyTTL, logg))
			r.Post("/ingest", controllers.IngestOrders(deps.Ingest, logg))
			r.Post("/{orderId}/assign", controllers.AssignOrder(deps.Ingest, logg))
		})

		r.Route("/worktime", func(r chi.Router) {
			r.Get("/net", controllers.WorktimeNet(deps.Settings, logg))
			r.Get("/recall", controllers.WorktimeRecall(deps.Settings, logg))
		})

		r.Route("/settings/work-hours", func(r chi.Router) {
			r.Get("/", controllers.GetWorkSettings(deps.Settings, logg))
			r.Put("/", controllers.PutWorkSettings(deps.Settings, logg))
		})

		r.Get("/agents/{agentId}/performance", controllers.AgentPerformance(deps.Performance, logg))
	})

	return r
}
