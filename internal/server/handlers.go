package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/ledger"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// NameRequest is the body of register, mint and create-battle requests.
type NameRequest struct {
	Name string `json:"name"`
}

// MoveRequest is the body of a move submission. Choice is "attack", "defend",
// or the wire codes "1" and "2".
type MoveRequest struct {
	Choice string `json:"choice"`
}

// PlayerView adds the battle a player is currently fighting in.
type PlayerView struct {
	models.Player
	ActiveBattle string `json:"active_battle,omitempty"`
}

// TokenView is a token with its metadata URI.
type TokenView struct {
	models.GameToken
	URI string `json:"uri"`
}

// BattleView adds round progress to a battle. The submitted moves themselves
// stay hidden until the round resolves.
type BattleView struct {
	models.Battle
	MovesPending [2]bool `json:"moves_pending"`
}

// MoveResponse is returned by the moves endpoint.
type MoveResponse struct {
	Result game.RoundResult `json:"result"`
	Battle BattleView       `json:"battle"`
}

// LedgerView lists the ledger holdings of one owner.
type LedgerView struct {
	Address  models.Address   `json:"address"`
	Balances []ledger.Balance `json:"balances"`
}

// SupplyView reports the engine token count and the ledger supply per kind.
type SupplyView struct {
	TotalSupply uint64            `json:"total_supply"`
	ByKind      map[string]uint64 `json:"by_kind,omitempty"`
}

func ParseMove(s string) (models.Move, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attack", "1":
		return models.MoveAttack, true
	case "defend", "2":
		return models.MoveDefend, true
	}
	return 0, false
}

func (s *Server) tokenView(t models.GameToken) TokenView {
	return TokenView{GameToken: t, URI: game.TokenURI(s.baseURI, t.Kind)}
}

func battleView(b models.Battle) BattleView {
	v := BattleView{Battle: b}
	if b.Status == models.BattleStarted {
		v.MovesPending = b.MovesPending()
	}
	return v
}

// ========================= Health =========================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Truncate(time.Second).String(),
	})
}

// ========================= Players =========================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	addr, ok := actor(w, r)
	if !ok {
		return
	}
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.engine.RegisterPlayer(r.Context(), addr, req.Name)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Players())
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	addr := models.Address(mux.Vars(r)["address"])
	p, err := s.engine.Player(addr)
	if err != nil {
		writeError(w, http.StatusNotFound, game.CodeNotAPlayer, err.Error())
		return
	}
	v := PlayerView{Player: p}
	if b, ok := s.engine.ActiveBattle(addr); ok {
		v.ActiveBattle = b.Name
	}
	writeJSON(w, http.StatusOK, v)
}

// ========================= Tokens =========================

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	addr, ok := actor(w, r)
	if !ok {
		return
	}
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := s.engine.MintToken(r.Context(), addr, req.Name)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.tokenView(tok))
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	toks := s.engine.Tokens()
	out := make([]TokenView, 0, len(toks))
	for _, t := range toks {
		out = append(out, s.tokenView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	addr := models.Address(mux.Vars(r)["address"])
	tok, err := s.engine.Token(addr)
	if err != nil {
		writeError(w, http.StatusNotFound, game.CodeNoToken, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.tokenView(tok))
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	v := SupplyView{TotalSupply: s.engine.TotalSupply()}
	if s.ledger != nil {
		v.ByKind = make(map[string]uint64)
		for k := models.MinTokenKind; k <= models.MaxTokenKind; k++ {
			v.ByKind[k.String()] = s.ledger.Supply(k)
		}
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleTokenURI(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["kind"])
	kind := models.TokenKind(n)
	if err != nil || n > 255 || !kind.Valid() {
		writeError(w, http.StatusNotFound, game.CodeNotFound, "unknown token kind "+mux.Vars(r)["kind"])
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind": kind.String(),
		"uri":  game.TokenURI(s.baseURI, kind),
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerEnabled(w) {
		return
	}
	addr := models.Address(mux.Vars(r)["address"])
	writeJSON(w, http.StatusOK, LedgerView{Address: addr, Balances: s.holdings(addr)})
}

// ========================= Battles =========================

func (s *Server) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	addr, ok := actor(w, r)
	if !ok {
		return
	}
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := s.engine.CreateBattle(r.Context(), addr, req.Name)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, battleView(b))
}

func (s *Server) handleListBattles(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	var want models.BattleStatus
	if status != "" {
		if err := want.UnmarshalText([]byte(status)); err != nil {
			writeError(w, http.StatusBadRequest, "", err.Error())
			return
		}
	}
	battles := s.engine.Battles()
	out := make([]BattleView, 0, len(battles))
	for _, b := range battles {
		if status != "" && b.Status != want {
			continue
		}
		out = append(out, battleView(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.Battle(mux.Vars(r)["name"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, battleView(b))
}

func (s *Server) handleJoinBattle(w http.ResponseWriter, r *http.Request) {
	addr, ok := actor(w, r)
	if !ok {
		return
	}
	b, err := s.engine.JoinBattle(r.Context(), addr, mux.Vars(r)["name"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, battleView(b))
}

func (s *Server) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	addr, ok := actor(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	move, ok := ParseMove(req.Choice)
	if !ok {
		writeError(w, http.StatusBadRequest, game.CodeInvalidChoice, "choice must be attack or defend")
		return
	}
	name := mux.Vars(r)["name"]
	res, err := s.engine.SubmitMove(r.Context(), addr, move, name)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	b, err := s.engine.Battle(name)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Result: res, Battle: battleView(b)})
}

func (s *Server) handleQuitBattle(w http.ResponseWriter, r *http.Request) {
	addr, ok := actor(w, r)
	if !ok {
		return
	}
	b, err := s.engine.QuitBattle(r.Context(), addr, mux.Vars(r)["name"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, battleView(b))
}
