package controllers

import (
	"net/http"

	"github.com/dealdesk/dealdesk-backend/api/responses"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
)

// Ping is a trivial reachability probe.
func Ping(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(r.Context(), w, logg, map[string]string{"message": "pong"})
	}
}
