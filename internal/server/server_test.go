package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/events"
	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/ledger"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/stats"
)

const (
	alice models.Address = "0xa11ce"
	bob   models.Address = "0xb0b"
)

type fixture struct {
	engine  *game.Engine
	ledger  *ledger.Ledger
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.New()
	rec := stats.NewRecorder()
	hub := events.NewHub(zerolog.Nop())
	e, err := game.New(
		game.WithSource(engine.NewSeededSource(11)),
		game.WithMinter(l),
		game.WithNotifier(game.Notifiers{rec, hub}),
	)
	require.NoError(t, err)
	s := New(Options{Engine: e, Ledger: l, Stats: rec, Hub: hub, BaseURI: "https://cdn.test/meta", Logger: zerolog.Nop()})
	return &fixture{engine: e, ledger: l, handler: s.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, who models.Address, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if who != "" {
		req.Header.Set(AddressHeader, string(who))
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Error   string    `json:"error"`
	Code    game.Code `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"status"`
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (f *fixture) setup(t *testing.T) {
	t.Helper()
	for _, a := range []models.Address{alice, bob} {
		rr := f.do(t, http.MethodPost, "/api/players", a, NameRequest{Name: string(a)})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		rr = f.do(t, http.MethodPost, "/api/tokens", a, NameRequest{Name: "tok"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/players", "", NameRequest{Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, CodeUnauthenticated, decodeBody[errorBody](t, rr).Code)
}

func TestPlayersAndTokens(t *testing.T) {
	f := newFixture(t)
	f.setup(t)

	rr := f.do(t, http.MethodPost, "/api/players", alice, NameRequest{Name: "again"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	body := decodeBody[errorBody](t, rr)
	assert.Equal(t, game.CodeAlreadyRegistered, body.Code)
	assert.Equal(t, "Conflict", body.Error)
	assert.Equal(t, http.StatusConflict, body.Status)

	rr = f.do(t, http.MethodGet, "/api/players/"+string(alice), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint(25), decodeBody[models.Player](t, rr).Health)

	rr = f.do(t, http.MethodGet, "/api/players/0xnobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/tokens/"+string(bob), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	tok := decodeBody[TokenView](t, rr)
	assert.Equal(t, bob, tok.Owner)
	assert.Equal(t, uint(10), tok.Attack+tok.Defense)
	assert.Equal(t, game.TokenURI("https://cdn.test/meta", tok.Kind), tok.URI)

	rr = f.do(t, http.MethodGet, "/api/tokens", "", nil)
	assert.Len(t, decodeBody[[]TokenView](t, rr), 2)

	rr = f.do(t, http.MethodGet, "/api/tokens/supply", "", nil)
	supply := decodeBody[SupplyView](t, rr)
	assert.Equal(t, uint64(2), supply.TotalSupply)
	var sum uint64
	for _, n := range supply.ByKind {
		sum += n
	}
	assert.Equal(t, uint64(2), sum)

	rr = f.do(t, http.MethodGet, "/api/ledger/"+string(alice), "", nil)
	led := decodeBody[LedgerView](t, rr)
	require.Len(t, led.Balances, 1)
	assert.Equal(t, uint64(1), led.Balances[0].Amount)

	rr = f.do(t, http.MethodGet, "/api/tokens/kinds/3/uri", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://cdn.test/meta/3.json", decodeBody[map[string]string](t, rr)["uri"])
	rr = f.do(t, http.MethodGet, "/api/tokens/kinds/9/uri", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBattleFlow(t *testing.T) {
	f := newFixture(t)
	f.setup(t)

	rr := f.do(t, http.MethodPost, "/api/battles", alice, NameRequest{Name: "north/south"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, game.CodeInvalidName, decodeBody[errorBody](t, rr).Code)

	rr = f.do(t, http.MethodPost, "/api/battles", alice, NameRequest{Name: "arena"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, models.BattlePending, decodeBody[BattleView](t, rr).Status)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/join", alice, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, game.CodeSelfJoin, decodeBody[errorBody](t, rr).Code)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/join", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	started := decodeBody[BattleView](t, rr)
	assert.Equal(t, models.BattleStarted, started.Status)
	assert.Equal(t, [2]bool{true, true}, started.MovesPending)

	rr = f.do(t, http.MethodGet, "/api/players/"+string(bob), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decodeBody[PlayerView](t, rr)
	assert.True(t, view.InBattle)
	assert.Equal(t, "arena", view.ActiveBattle)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/moves", alice, MoveRequest{Choice: "dance"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, game.CodeInvalidChoice, decodeBody[errorBody](t, rr).Code)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/moves", alice, MoveRequest{Choice: "defend"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decodeBody[MoveResponse](t, rr)
	assert.False(t, first.Result.Resolved)
	assert.Equal(t, [2]bool{false, true}, first.Battle.MovesPending)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/moves", alice, MoveRequest{Choice: "attack"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/moves", bob, MoveRequest{Choice: "2"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	second := decodeBody[MoveResponse](t, rr)
	assert.True(t, second.Result.Resolved)
	assert.Equal(t, uint(1), second.Battle.Round)
	assert.Equal(t, uint(13), second.Result.Players[0].Mana)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/quit", "0xstranger", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/battles/arena/quit", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ended := decodeBody[BattleView](t, rr)
	assert.Equal(t, models.BattleEnded, ended.Status)
	require.NotNil(t, ended.Winner)
	assert.Equal(t, alice, *ended.Winner)

	rr = f.do(t, http.MethodGet, "/api/players/"+string(bob), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "active_battle")

	rr = f.do(t, http.MethodPost, "/api/battles/arena/moves", alice, MoveRequest{Choice: "defend"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, game.CodeNotStarted, decodeBody[errorBody](t, rr).Code)

	rr = f.do(t, http.MethodGet, "/api/battles?status=ended", "", nil)
	assert.Len(t, decodeBody[[]BattleView](t, rr), 1)
	rr = f.do(t, http.MethodGet, "/api/battles?status=pending", "", nil)
	assert.Empty(t, decodeBody[[]BattleView](t, rr))
	rr = f.do(t, http.MethodGet, "/api/battles?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/battles/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/stats/"+string(alice), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decodeBody[stats.PlayerStats](t, rr)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Rounds)

	rr = f.do(t, http.MethodGet, "/api/stats/today", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownPathAndMethod(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/players", alice, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = f.do(t, http.MethodOptions, "/api/players", "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestStatusOfCoversEveryCode(t *testing.T) {
	for _, code := range []game.Code{
		game.CodeNotAPlayer, game.CodeAlreadyRegistered, game.CodeNameTaken, game.CodeAlreadyInBattle,
		game.CodeNotFound, game.CodeNotPending, game.CodeNotStarted, game.CodeAlreadyEnded,
		game.CodeSelfJoin, game.CodeNotAParticipant, game.CodeMoveAlreadySet, game.CodeInvalidChoice,
		game.CodeInsufficientMana, game.CodeNoToken, game.CodeInvalidName, game.CodeInvalidActor,
		game.CodeInvalidSnapshot, game.CodeMintFailed,
	} {
		assert.NotEqual(t, http.StatusInternalServerError, statusOf(code), code)
	}
	assert.Equal(t, http.StatusInternalServerError, statusOf("SOMETHING_ELSE"))
}

func TestParseMove(t *testing.T) {
	m, ok := ParseMove(" Attack ")
	assert.True(t, ok)
	assert.Equal(t, models.MoveAttack, m)
	m, ok = ParseMove("2")
	assert.True(t, ok)
	assert.Equal(t, models.MoveDefend, m)
	_, ok = ParseMove("3")
	assert.False(t, ok)
}
