package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/DoyleJ11/plinko-sync/internal/lobby"
	"github.com/DoyleJ11/plinko-sync/internal/types"
)

// GetState returns the lobby's current view as JSON.
func GetState(l *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := l.View(r.Context())
		if err != nil {
			http.Error(w, "match unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(types.StateResponse{
			Version:    v.Version,
			NumClients: v.NumClients,
			State:      v.State,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
