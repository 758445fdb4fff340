// Package server exposes the battle engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/narasim-teja/Sorobon-Battles/internal/events"
	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/ledger"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/stats"
)

// AddressHeader carries the caller identity. Authenticating it is the job of
// whatever sits in front of this service.
const AddressHeader = "X-Player-Address"

// CodeUnauthenticated is returned when a mutating request lacks AddressHeader.
const CodeUnauthenticated game.Code = "UNAUTHENTICATED"

type Server struct {
	engine  *game.Engine
	ledger  *ledger.Ledger
	stats   *stats.Recorder
	hub     *events.Hub
	baseURI string
	log     zerolog.Logger
	started time.Time
}

type Options struct {
	Engine  *game.Engine
	Ledger  *ledger.Ledger
	Stats   *stats.Recorder
	Hub     *events.Hub
	BaseURI string
	Logger  zerolog.Logger
}

func New(o Options) *Server {
	return &Server{
		engine:  o.Engine,
		ledger:  o.Ledger,
		stats:   o.Stats,
		hub:     o.Hub,
		baseURI: o.BaseURI,
		log:     o.Logger,
		started: time.Now(),
	}
}

// Handler returns the routed handler wrapped in logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, game.CodeNotFound, "unsupported path")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "", r.Method+" not allowed")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/players", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/players", s.handleListPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players/{address}", s.handleGetPlayer).Methods(http.MethodGet)

	api.HandleFunc("/tokens", s.handleMint).Methods(http.MethodPost)
	api.HandleFunc("/tokens", s.handleListTokens).Methods(http.MethodGet)
	api.HandleFunc("/tokens/supply", s.handleSupply).Methods(http.MethodGet)
	api.HandleFunc("/tokens/kinds/{kind:[0-9]+}/uri", s.handleTokenURI).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{address}", s.handleGetToken).Methods(http.MethodGet)
	api.HandleFunc("/ledger/transfer", s.handleLedgerTransfer).Methods(http.MethodPost)
	api.HandleFunc("/ledger/burn", s.handleLedgerBurn).Methods(http.MethodPost)
	api.HandleFunc("/ledger/approvals", s.handleSetApproval).Methods(http.MethodPost)
	api.HandleFunc("/ledger/approvals/{owner}/{operator}", s.handleGetApproval).Methods(http.MethodGet)
	api.HandleFunc("/ledger/balances", s.handleBatchBalances).Methods(http.MethodGet)
	api.HandleFunc("/ledger/{address}", s.handleLedger).Methods(http.MethodGet)

	api.HandleFunc("/battles", s.handleCreateBattle).Methods(http.MethodPost)
	api.HandleFunc("/battles", s.handleListBattles).Methods(http.MethodGet)
	api.HandleFunc("/battles/{name}", s.handleGetBattle).Methods(http.MethodGet)
	api.HandleFunc("/battles/{name}/join", s.handleJoinBattle).Methods(http.MethodPost)
	api.HandleFunc("/battles/{name}/moves", s.handleSubmitMove).Methods(http.MethodPost)
	api.HandleFunc("/battles/{name}/quit", s.handleQuitBattle).Methods(http.MethodPost)

	api.HandleFunc("/stats/today", s.handleStatsToday).Methods(http.MethodGet)
	api.HandleFunc("/stats/{address}", s.handlePlayerStats).Methods(http.MethodGet)

	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.ServeWS)
	}

	r.Use(s.withLogging)
	return withCORS(r)
}

// ========================= Helpers =========================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code game.Code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   http.StatusText(status),
		"code":    code,
		"message": msg,
		"status":  status,
	})
}

// statusOf maps engine codes to HTTP statuses.
func statusOf(code game.Code) int {
	switch code {
	case game.CodeNotFound:
		return http.StatusNotFound
	case game.CodeNotAPlayer, game.CodeNotAParticipant:
		return http.StatusForbidden
	case game.CodeInvalidChoice, game.CodeInvalidName, game.CodeInvalidActor:
		return http.StatusBadRequest
	case game.CodeAlreadyRegistered, game.CodeNameTaken, game.CodeAlreadyInBattle,
		game.CodeNotPending, game.CodeNotStarted, game.CodeAlreadyEnded,
		game.CodeSelfJoin, game.CodeMoveAlreadySet, game.CodeNoToken:
		return http.StatusConflict
	case game.CodeInsufficientMana, game.CodeInvalidSnapshot:
		return http.StatusUnprocessableEntity
	case game.CodeMintFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var ge *game.Error
	if !errors.As(err, &ge) {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeError(w, statusOf(ge.Code), ge.Code, ge.Error())
}

// actor reads the caller identity. It writes a 401 and returns false when absent.
func actor(w http.ResponseWriter, r *http.Request) (models.Address, bool) {
	a := models.Address(strings.TrimSpace(r.Header.Get(AddressHeader)))
	if !a.Valid() {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing "+AddressHeader+" header")
		return "", false
	}
	return a, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// simple CORS for GET/POST/OPTIONS
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+AddressHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade needs the raw writer.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ev := s.log.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).
			Str("actor", r.Header.Get(AddressHeader)).Dur("took", time.Since(start)).Msg("http")
	})
}
