package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DoyleJ11/plinko-sync/internal/lobby"
	"github.com/DoyleJ11/plinko-sync/internal/ws"
)

func SetupRoutes(l *lobby.Lobby, wsOpts ws.Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/state", GetState(l))
	r.Get("/ws", ws.Handler(l, wsOpts))
	return r
}
