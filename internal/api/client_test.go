package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/events"
	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/ledger"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/server"
	"github.com/narasim-teja/Sorobon-Battles/internal/stats"
)

func newTestServer(t *testing.T) (*httptest.Server, *events.Hub) {
	t.Helper()
	l := ledger.New()
	rec := stats.NewRecorder()
	hub := events.NewHub(zerolog.Nop())
	e, err := game.New(
		game.WithSource(engine.NewSeededSource(5)),
		game.WithMinter(l),
		game.WithNotifier(game.Notifiers{rec, hub}),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(server.Options{
		Engine: e, Ledger: l, Stats: rec, Hub: hub,
		BaseURI: "https://cdn.test", Logger: zerolog.Nop(),
	}).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestClientBattle(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	alice := NewClient(srv.URL, "0xa11ce")
	bob := NewClient(srv.URL+"/", "0xb0b")

	for _, c := range []*Client{alice, bob} {
		p, err := c.Register(ctx, string(c.config.Address))
		require.NoError(t, err)
		assert.Equal(t, uint(10), p.Mana)
		tok, err := c.Mint(ctx, "blade")
		require.NoError(t, err)
		assert.Equal(t, uint(10), tok.Attack+tok.Defense)
		assert.NotEmpty(t, tok.URI)
	}

	_, err := alice.Register(ctx, "again")
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrAlreadyRegistered)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	b, err := alice.CreateBattle(ctx, "pit")
	require.NoError(t, err)
	assert.Equal(t, models.BattlePending, b.Status)

	_, err = alice.JoinBattle(ctx, "pit")
	assert.ErrorIs(t, err, game.ErrSelfJoin)

	b, err = bob.JoinBattle(ctx, "pit")
	require.NoError(t, err)
	assert.Equal(t, models.BattleStarted, b.Status)

	r, err := alice.SubmitMove(ctx, "pit", models.MoveDefend)
	require.NoError(t, err)
	assert.False(t, r.Result.Resolved)
	r, err = bob.SubmitMove(ctx, "pit", models.MoveDefend)
	require.NoError(t, err)
	assert.True(t, r.Result.Resolved)
	assert.Equal(t, uint(1), r.Battle.Round)

	p, err := alice.Player(ctx, "0xb0b")
	require.NoError(t, err)
	assert.Equal(t, uint(13), p.Mana)
	assert.Equal(t, "pit", p.ActiveBattle)

	b, err = alice.QuitBattle(ctx, "pit")
	require.NoError(t, err)
	require.NotNil(t, b.Winner)
	assert.Equal(t, models.Address("0xb0b"), *b.Winner)

	ended, err := alice.Battles(ctx, "ended")
	require.NoError(t, err)
	assert.Len(t, ended, 1)

	st, err := bob.Stats(ctx, "0xb0b")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Wins)

	_, ok, err := bob.MaxHitToday(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	supply, err := bob.Supply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), supply.TotalSupply)

	l, err := bob.Ledger(ctx, "0xa11ce")
	require.NoError(t, err)
	require.Len(t, l.Balances, 1)
}

func TestClientLedger(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	alice := NewClient(srv.URL, "0xa11ce")
	bob := NewClient(srv.URL, "0xb0b")
	carol := NewClient(srv.URL, "0xca401")

	_, err := alice.Register(ctx, "Alice")
	require.NoError(t, err)
	tok, err := alice.Mint(ctx, "blade")
	require.NoError(t, err)

	l, err := alice.Transfer(ctx, "", "0xb0b", []models.TokenKind{tok.Kind}, []uint64{1})
	require.NoError(t, err)
	assert.Empty(t, l.Balances)

	got, err := carol.Balances(ctx, []models.Address{"0xa11ce", "0xb0b"}, []models.TokenKind{tok.Kind, tok.Kind})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, got)

	_, err = carol.Burn(ctx, "0xb0b", tok.Kind, 1)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, server.CodeNotApproved, apiErr.Code)

	v, err := bob.SetApproval(ctx, "0xca401", true)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	ok, err := alice.Approved(ctx, "0xb0b", "0xca401")
	require.NoError(t, err)
	assert.True(t, ok)

	l, err = carol.Burn(ctx, "0xb0b", tok.Kind, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Address("0xb0b"), l.Address)
	assert.Empty(t, l.Balances)

	_, err = alice.Balances(ctx, []models.Address{"0xa11ce"}, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, server.CodeLengthMismatch, apiErr.Code)

	// The battle token itself is untouched by ledger moves.
	cur, err := alice.Token(ctx, "0xa11ce")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, cur.ID)
}

func TestClientErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, err := NewClient(srv.URL, "").Register(ctx, "anon")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, server.CodeUnauthenticated, apiErr.Code)

	_, err = NewClient(srv.URL, "").Battle(ctx, "ghost")
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.False(t, errors.Is(err, game.ErrSelfJoin))
}

func TestClientPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "0x1").Players(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestTokenURICached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"3","uri":"https://cdn.test/3.json"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	for i := 0; i < 3; i++ {
		uri, err := c.TokenURI(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.test/3.json", uri)
	}
	assert.Equal(t, 1, calls)
}

func TestWatch(t *testing.T) {
	srv, hub := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := NewClient(srv.URL, "0xa11ce")
	got := make(chan game.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- alice.Watch(ctx, "", "0xa11ce", func(ev game.Event) error {
			got <- ev
			if ev.Kind == game.EventTokenMinted {
				return ErrStopWatching
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, err := alice.Register(ctx, "alice")
	require.NoError(t, err)
	_, err = alice.Mint(ctx, "blade")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("watch did not stop")
	}
	var kinds []game.EventKind
	close(got)
	for ev := range got {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, game.EventTokenMinted)
}
