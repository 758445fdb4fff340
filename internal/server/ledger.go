package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/ledger"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// Ledger error codes.
const (
	CodeNotApproved         game.Code = "NOT_APPROVED"
	CodeInsufficientBalance game.Code = "INSUFFICIENT_BALANCE"
	CodeInvalidKind         game.Code = "INVALID_KIND"
	CodeInvalidAddress      game.Code = "INVALID_ADDRESS"
	CodeLengthMismatch      game.Code = "LENGTH_MISMATCH"
	CodeOverflow            game.Code = "OVERFLOW"
)

// TransferRequest moves Amounts[i] of Kinds[i] from From to To. From defaults
// to the caller; a caller other than From must be an approved operator.
// Kinds travel as JSON numbers; see KindList.
type TransferRequest struct {
	From    models.Address `json:"from,omitempty"`
	To      models.Address `json:"to"`
	Kinds   []uint         `json:"kinds"`
	Amounts []uint64       `json:"amounts"`
}

// KindList converts token kinds to their wire form.
func KindList(kinds ...models.TokenKind) []uint {
	out := make([]uint, len(kinds))
	for i, k := range kinds {
		out[i] = uint(k)
	}
	return out
}

// tokenKinds maps wire kinds back; values past the uint8 range become the
// invalid zero kind instead of wrapping onto a real one.
func tokenKinds(in []uint) []models.TokenKind {
	out := make([]models.TokenKind, len(in))
	for i, k := range in {
		if k <= math.MaxUint8 {
			out[i] = models.TokenKind(k)
		}
	}
	return out
}

// BurnRequest destroys Amount of Kind held by From (default: the caller).
type BurnRequest struct {
	From   models.Address   `json:"from,omitempty"`
	Kind   models.TokenKind `json:"kind"`
	Amount uint64           `json:"amount"`
}

// ApprovalRequest grants or revokes Operator's right to move the caller's units.
type ApprovalRequest struct {
	Operator models.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

// ApprovalView reports whether Operator may act for Owner.
type ApprovalView struct {
	Owner    models.Address `json:"owner"`
	Operator models.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

// BatchBalanceView holds the balance of Owners[i] in Kinds[i].
type BatchBalanceView struct {
	Owners   []models.Address `json:"owners"`
	Kinds    []uint           `json:"kinds"`
	Balances []uint64         `json:"balances"`
}

func ledgerStatus(err error) (int, game.Code) {
	switch {
	case errors.Is(err, ledger.ErrNotApproved):
		return http.StatusForbidden, CodeNotApproved
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict, CodeInsufficientBalance
	case errors.Is(err, ledger.ErrInvalidKind):
		return http.StatusBadRequest, CodeInvalidKind
	case errors.Is(err, ledger.ErrZeroAddress):
		return http.StatusBadRequest, CodeInvalidAddress
	case errors.Is(err, ledger.ErrLengthMismatch):
		return http.StatusBadRequest, CodeLengthMismatch
	case errors.Is(err, ledger.ErrOverflow):
		return http.StatusUnprocessableEntity, CodeOverflow
	}
	return http.StatusInternalServerError, ""
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := ledgerStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("ledger error")
		writeError(w, status, "", "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// ledgerEnabled writes a 404 when the server runs without a ledger.
func (s *Server) ledgerEnabled(w http.ResponseWriter) bool {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, game.CodeNotFound, "ledger is not enabled")
		return false
	}
	return true
}

func (s *Server) handleLedgerTransfer(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerEnabled(w) {
		return
	}
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.From == "" {
		req.From = caller
	}
	kinds := tokenKinds(req.Kinds)
	var err error
	if len(kinds) == 1 && len(req.Amounts) == 1 {
		err = s.ledger.Transfer(caller, req.From, req.To, kinds[0], req.Amounts[0])
	} else {
		err = s.ledger.BatchTransfer(caller, req.From, req.To, kinds, req.Amounts)
	}
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.log.Info().Str("caller", caller.String()).Str("from", req.From.String()).Str("to", req.To.String()).
		Int("kinds", len(req.Kinds)).Msg("ledger transfer")
	writeJSON(w, http.StatusOK, LedgerView{Address: req.From, Balances: s.holdings(req.From)})
}

func (s *Server) handleLedgerBurn(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerEnabled(w) {
		return
	}
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	var req BurnRequest
	if !decode(w, r, &req) {
		return
	}
	if req.From == "" {
		req.From = caller
	}
	if err := s.ledger.Burn(caller, req.From, req.Kind, req.Amount); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerView{Address: req.From, Balances: s.holdings(req.From)})
}

func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerEnabled(w) {
		return
	}
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var req ApprovalRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Operator.Valid() {
		writeError(w, http.StatusBadRequest, CodeInvalidAddress, "operator is required")
		return
	}
	s.ledger.SetApprovalForAll(owner, req.Operator, req.Approved)
	writeJSON(w, http.StatusOK, ApprovalView{Owner: owner, Operator: req.Operator, Approved: req.Approved})
}

// GET /api/ledger/approvals/{owner}/{operator}
func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerEnabled(w) {
		return
	}
	v := mux.Vars(r)
	owner, operator := models.Address(v["owner"]), models.Address(v["operator"])
	writeJSON(w, http.StatusOK, ApprovalView{
		Owner:    owner,
		Operator: operator,
		Approved: s.ledger.IsApprovedForAll(owner, operator),
	})
}

// GET /api/ledger/balances?owner=a&kind=1&owner=b&kind=2
func (s *Server) handleBatchBalances(w http.ResponseWriter, r *http.Request) {
	if !s.ledgerEnabled(w) {
		return
	}
	q := r.URL.Query()
	owners := make([]models.Address, 0, len(q["owner"]))
	for _, o := range q["owner"] {
		owners = append(owners, models.Address(o))
	}
	kinds := make([]models.TokenKind, 0, len(q["kind"]))
	for _, k := range q["kind"] {
		n, err := strconv.ParseUint(k, 10, 8)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidKind, "invalid kind "+strconv.Quote(k))
			return
		}
		kinds = append(kinds, models.TokenKind(n))
	}
	balances, err := s.ledger.BalanceOfBatch(owners, kinds)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchBalanceView{Owners: owners, Kinds: KindList(kinds...), Balances: balances})
}

func (s *Server) holdings(owner models.Address) []ledger.Balance {
	b := s.ledger.Holdings(owner)
	if b == nil {
		b = []ledger.Balance{}
	}
	return b
}
