package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aetherlink/commandcenter/internal/audit"
	"github.com/aetherlink/commandcenter/internal/delivery"
	"github.com/aetherlink/commandcenter/internal/evaluator"
	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/fanout"
	"github.com/aetherlink/commandcenter/internal/ingestion"
	"github.com/aetherlink/commandcenter/internal/ops"
	"github.com/aetherlink/commandcenter/internal/rulestore"
)

// Deps bundles every collaborator the API layer needs. Router owns none
// of their lifecycles.
type Deps struct {
	Events     *eventstore.Store
	Rules      *rulestore.Store
	Queue      *delivery.Queue
	Audit      *audit.Store
	Hub        *fanout.Hub
	Intake     *ingestion.Intake
	Evaluator  *evaluator.Evaluator
	ServiceReg *ops.Registry
	Log        zerolog.Logger
}

// NewRouter builds the chi router implementing every endpoint in the
// external interface section: ingestion, query/stream, rules, delivery
// visibility/replay, audit, and health.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(tenantAndRoles)

	events := &eventsHandler{intake: d.Intake, events: d.Events}
	stream := &streamHandler{hub: d.Hub, log: d.Log}
	rules := &rulesHandler{rules: d.Rules, eval: d.Evaluator, audit: d.Audit}
	deliveries := &deliveriesHandler{queue: d.Queue, audit: d.Audit}
	auditH := &auditHandler{audit: d.Audit}
	opsH := &opsHandler{services: d.ServiceReg}

	r.Route("/events", func(r chi.Router) {
		r.Post("/publish", events.publish)
		r.Get("/recent", events.recent)
		r.Get("/stats", events.stats)
		r.Get("/stream", stream.events)
	})

	r.Route("/alerts", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", rules.list)
			r.With(requireRole("admin", "operator")).Post("/", rules.create)
			r.Get("/{id}", rules.get)
			r.With(requireRole("admin", "operator")).Delete("/{id}", rules.delete)
			r.With(requireRole("admin", "operator")).Patch("/{id}/enabled", rules.setEnabled)
		})
		r.With(requireRole("admin", "operator")).Post("/evaluate", rules.evaluate)

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveries.list)
			r.Get("/stats", deliveries.stats)
			r.Get("/history", deliveries.history)
			r.With(requireRole("admin", "operator")).Post("/{id}/replay", deliveries.replay)
		})
	})

	r.Route("/audit", func(r chi.Router) {
		r.Use(requireRole("admin", "operator"))
		r.Get("/operator", auditH.list)
		r.Get("/operator/stats", auditH.stats)
	})

	r.Route("/ops", func(r chi.Router) {
		r.Get("/ping", opsH.ping)
		r.Get("/services", opsH.listServices)
	})

	return r
}
