// Package game implements the battle state machine and combat resolution.
//
// An Engine owns the Player, Token and Battle registries. Every exported
// operation runs under a single lock and either commits all of its changes or
// none of them; events produced by a committed operation are handed to the
// Notifier after the lock is released.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/registry"
)

type Engine struct {
	mu sync.Mutex

	rules    Rules
	rng      engine.Source
	minter   Minter
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	players *registry.Registry[models.Address, models.Player]
	tokens  *registry.Registry[uint64, models.GameToken]
	battles *registry.Registry[string, models.Battle]
	// tokenOf maps an owner to the handle of its current token. Minting
	// overwrites it; Restore reissues every handle.
	tokenOf map[models.Address]registry.Handle
	supply  uint64
	seq     uint64
}

type Option func(*Engine)

func WithRules(r Rules) Option { return func(e *Engine) { e.rules = r } }

func WithSource(src engine.Source) Option { return func(e *Engine) { e.rng = src } }

func WithMinter(m Minter) Option { return func(e *Engine) { e.minter = m } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New builds an engine. Without WithSource it draws from a crypto-seeded source.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		rules:    DefaultRules(),
		minter:   nopMinter{},
		notifier: nopNotifier{},
		log:      zerolog.Nop(),
		now:      time.Now,
		players:  registry.New[models.Address, models.Player](),
		tokens:   registry.New[uint64, models.GameToken](),
		battles:  registry.New[string, models.Battle](),
		tokenOf:  make(map[models.Address]registry.Handle),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if e.rng == nil {
		src, err := engine.NewSource()
		if err != nil {
			return nil, err
		}
		e.rng = src
	}
	return e, nil
}

func (e *Engine) Rules() Rules { return e.rules }

// txn collects the events of one operation until it commits.
type txn struct {
	events []Event
}

func (t *txn) emit(ev Event) { t.events = append(t.events, ev) }

// apply runs fn under the engine lock. fn must validate before it mutates, so an
// error return implies nothing changed. Events are stamped and delivered only
// when fn succeeds.
func (e *Engine) apply(ctx context.Context, fn func(t *txn) error) error {
	events, err := e.commit(fn)
	if err != nil {
		return err
	}
	for _, ev := range events {
		e.log.Debug().Str("event", string(ev.Kind)).Uint64("seq", ev.Seq).Str("battle", ev.Battle).Msg("emit")
		e.notifier.Notify(ctx, ev)
	}
	return nil
}

// commit runs fn and sequences its events. The lock is released even when an
// invariant assertion panics inside fn.
func (e *Engine) commit(fn func(t *txn) error) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &txn{}
	if err := fn(t); err != nil {
		return nil, err
	}
	at := e.now().UTC()
	for i := range t.events {
		e.seq++
		t.events[i].Seq = e.seq
		t.events[i].ID = uuid.NewString()
		t.events[i].At = at
	}
	return t.events, nil
}

// read runs fn under the engine lock for queries.
func (e *Engine) read(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

func (e *Engine) mustPlayer(addr models.Address) models.Player {
	p, err := e.players.Get(addr)
	check(err)
	return p
}

func (e *Engine) mustToken(owner models.Address) models.GameToken {
	h, ok := e.tokenOf[owner]
	assertf(ok, "player %s has no token", owner)
	tok, err := e.tokens.At(h)
	check(err)
	return tok
}

func (e *Engine) assertSplit(tok models.GameToken) {
	assertf(tok.Attack+tok.Defense == e.rules.MaxStrength,
		"token %d split %d/%d does not sum to %d", tok.ID, tok.Attack, tok.Defense, e.rules.MaxStrength)
}
