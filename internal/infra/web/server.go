package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/usecase"
)

// Server wires the HTTP surface: the processor webhook, the authenticated
// user API and the staff refund console.
type Server struct {
	webhook       *WebhookHandler
	auth          *AuthManager
	progressUC    usecase.ProgressUseCase
	refundUC      usecase.RefundUseCase
	entitlementUC usecase.EntitlementUseCase
	notifUC       usecase.NotificationUseCase
	packageUC     usecase.PackageUseCase
	log           *zerolog.Logger
}

func NewServer(
	webhook *WebhookHandler,
	auth *AuthManager,
	progressUC usecase.ProgressUseCase,
	refundUC usecase.RefundUseCase,
	entitlementUC usecase.EntitlementUseCase,
	notifUC usecase.NotificationUseCase,
	packageUC usecase.PackageUseCase,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		webhook:       webhook,
		auth:          auth,
		progressUC:    progressUC,
		refundUC:      refundUC,
		entitlementUC: entitlementUC,
		notifUC:       notifUC,
		packageUC:     packageUC,
		log:           logger,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Signed by the shared secret, not by a user session.
	r.Method(http.MethodPost, "/api/v1/webhooks/processor", s.webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Get("/packages", packagesListHandler(s.packageUC))
			r.Get("/packages/{id}/videos", packageVideosHandler(s.packageUC))
			r.Post("/progress", progressSaveHandler(s.progressUC))
			r.Post("/refunds", refundCreateHandler(s.refundUC))
			r.Get("/profile", profileHandler(s.entitlementUC))
			r.Get("/notifications", notificationsListHandler(s.notifUC))
			r.Post("/notifications/{id}/read", notificationMarkReadHandler(s.notifUC))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireStaff)
			r.Get("/admin/refunds", adminRefundsListHandler(s.refundUC))
			r.Post("/admin/refunds/{id}/decision", adminRefundDecisionHandler(s.refundUC))
		})
	})

	return r
}
