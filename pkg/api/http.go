package api

import (
	"net/http"

	"chatd/pkg/api/handlers"
	"chatd/pkg/auth"
	"chatd/pkg/chat"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler builds the full HTTP surface: health and metrics endpoints plus
// the versioned chat API wrapped in the auth middleware.
func Handler(svc *chat.Service, sec auth.SecConfig) http.Handler {
	handlers.SetService(svc)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterConversations(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterReceipts(v1)

	return auth.Middleware(sec)(r)
}
