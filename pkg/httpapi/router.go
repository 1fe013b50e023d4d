// Package httpapi exposes the tip bot engine over HTTP for the chat
// front end and for admins.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/slacktip/tipbot/pkg/app/http"
	"github.com/slacktip/tipbot/pkg/auth"
)

// NewRouter builds the HTTP routing table. Admin routes sit behind the JWT
// middleware; everything else is called by the trusted bot front end.
func NewRouter(svc Service, jwtSecret string, logger *zap.Logger) http.Handler {
	handler := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tips", apphttp.HandleError(handler.tip))
		r.Post("/deposits/sweep", apphttp.HandleError(handler.sweepDeposit))
		r.Post("/withdrawals", apphttp.HandleError(handler.withdraw))
		r.Get("/users/{slackID}", apphttp.HandleError(handler.userStatus))
		r.Post("/users/{slackID}/deposit-address", apphttp.HandleError(handler.depositAddress))

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))
			r.Get("/tips", apphttp.HandleError(handler.listTips))
			r.Get("/settings", apphttp.HandleError(handler.getSettings))
			r.Put("/settings", apphttp.HandleError(handler.updateSettings))
			r.Post("/admins", apphttp.HandleError(handler.addAdmin))
			r.Post("/reminders", apphttp.HandleError(handler.sendReminders))
		})
	})

	return r
}
