package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// GET /api/stats/{address}
func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, game.CodeNotFound, "stats are not enabled")
		return
	}
	addr := models.Address(mux.Vars(r)["address"])
	if !s.engine.IsPlayer(addr) {
		writeError(w, http.StatusNotFound, game.CodeNotAPlayer, "not a registered player: "+addr.String())
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Player(addr))
}

// GET /api/stats/today returns the biggest single hit of the current UTC day,
// or an empty object when nobody has landed one yet.
func (s *Server) handleStatsToday(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, game.CodeNotFound, "stats are not enabled")
		return
	}
	hit, ok := s.stats.MaxHitToday()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, hit)
}
