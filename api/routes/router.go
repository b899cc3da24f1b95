package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk-backend/api/controllers"
	"github.com/dealdesk/dealdesk-backend/api/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/bookings"
	"github.com/dealdesk/dealdesk-backend/internal/confirmations"
	"github.com/dealdesk/dealdesk-backend/internal/invoices"
	"github.com/dealdesk/dealdesk-backend/internal/reports"
	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
	"github.com/dealdesk/dealdesk-backend/pkg/metrics"
	pkgredis "github.com/dealdesk/dealdesk-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Logger        *logger.Logger
	Snapshots     snapshots.Service
	Confirmations confirmations.Service
	Bookings      bookings.Service
	Reports       reports.Service
	Invoices      invoices.Service

	DB    controllers.Pinger
	Redis controllers.Pinger

	IdempotencyStore pkgredis.IdempotencyStore
	IdempotencyTTL   time.Duration

	Metrics *metrics.HTTPMetrics
}

// New assembles the HTTP router.
func New(deps Deps) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/ping", controllers.Ping(logg))
	r.Get("/health/live", controllers.HealthLive(logg))
	r.Get("/health/ready", controllers.HealthReady(deps.DB, deps.Redis, logg))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL, logg))

		r.Route("/subjects/{subjectId}", func(r chi.Router) {
			r.Post("/snapshots", controllers.SnapshotFinalize(deps.Snapshots, logg))
			r.Get("/snapshots", controllers.SnapshotList(deps.Snapshots, logg))
			r.Get("/snapshots/{hash}", controllers.SnapshotGet(deps.Snapshots, logg))

			r.Post("/confirmations", controllers.ConfirmationSeal(deps.Confirmations, logg))
			r.Get("/confirmations", controllers.ConfirmationList(deps.Confirmations, logg))

			r.Post("/bookings", controllers.BookingDerive(deps.Bookings, logg))
			r.Get("/bookings", controllers.BookingList(deps.Bookings, logg))

			r.Post("/reports", controllers.ReportSubmit(deps.Reports, logg))
			r.Get("/reports", controllers.ReportGet(deps.Reports, logg))

			r.Post("/invoices", controllers.InvoiceIssue(deps.Invoices, logg))
		})

		r.Patch("/bookings/{bookingId}", controllers.BookingUpdate(deps.Bookings, logg))

		r.Get("/invoices", controllers.InvoiceList(deps.Invoices, logg))
	})

	return r
}
