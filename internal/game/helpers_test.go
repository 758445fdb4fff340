package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

const (
	alice models.Address = "0xa11ce"
	bob   models.Address = "0xb0b"
	carol models.Address = "0xca401"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) of(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []Option{
		WithSource(engine.NewSeededSource(1)),
		WithNotifier(rec),
		WithClock(func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }),
	}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return e, rec
}

func mustRegister(t *testing.T, e *Engine, addr models.Address, name string) {
	t.Helper()
	_, err := e.RegisterPlayer(context.Background(), addr, name)
	require.NoError(t, err)
	_, err = e.MintToken(context.Background(), addr, name+"'s token")
	require.NoError(t, err)
}

// startBattle registers alice and bob, and starts battle "arena" with alice as creator.
func startBattle(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	mustRegister(t, e, alice, "Alice")
	mustRegister(t, e, bob, "Bob")
	_, err := e.CreateBattle(ctx, alice, "arena")
	require.NoError(t, err)
	_, err = e.JoinBattle(ctx, bob, "arena")
	require.NoError(t, err)
}

// setSplit pins the attack of owner's current token.
func setSplit(t *testing.T, e *Engine, owner models.Address, attack uint) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	tok := e.mustToken(owner)
	tok.Attack = attack
	tok.Defense = e.rules.MaxStrength - attack
	require.NoError(t, e.tokens.Update(tok.ID, tok))
}

func setVitals(t *testing.T, e *Engine, addr models.Address, health, mana uint) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.mustPlayer(addr)
	p.Health = health
	p.Mana = mana
	require.NoError(t, e.players.Update(addr, p))
}

func playRound(t *testing.T, e *Engine, m0, m1 models.Move) RoundResult {
	t.Helper()
	ctx := context.Background()
	res, err := e.SubmitMove(ctx, alice, m0, "arena")
	require.NoError(t, err)
	require.False(t, res.Resolved)
	res, err = e.SubmitMove(ctx, bob, m1, "arena")
	require.NoError(t, err)
	require.True(t, res.Resolved)
	return res
}

// checkInvariants asserts the cross-registry invariants that must hold after
// every committed operation.
func checkInvariants(t require.TestingT, e *Engine) {
	s := e.Snapshot()
	max := e.Rules().MaxStrength
	for _, tok := range s.Tokens {
		require.Equal(t, max, tok.Attack+tok.Defense, "token %d split", tok.ID)
	}
	fighting := map[models.Address]int{}
	for _, b := range s.Battles {
		if b.Status == models.BattleStarted {
			for _, a := range b.Participants() {
				fighting[a]++
			}
		}
		if b.Status == models.BattleEnded {
			require.Nil(t, b.Moves[0])
			require.Nil(t, b.Moves[1])
		}
	}
	for _, p := range s.Players {
		require.LessOrEqual(t, fighting[p.Address], 1, "%s in several battles", p.Address)
		require.Equal(t, fighting[p.Address] == 1, p.InBattle, "in_battle of %s", p.Address)
		require.LessOrEqual(t, p.Health, e.Rules().StartingHealth)
	}
}
