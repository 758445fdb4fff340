package game

import (
	"context"
	"strings"

	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/registry"
)

// RegisterPlayer creates a player with the starting mana and health.
func (e *Engine) RegisterPlayer(ctx context.Context, actor models.Address, name string) (models.Player, error) {
	var out models.Player
	err := e.apply(ctx, func(t *txn) error {
		if !actor.Valid() {
			return errorf(ErrInvalidActor, "%q", actor)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return errorf(ErrInvalidName, "player name is required")
		}
		if e.players.Exists(actor) {
			return errorf(ErrAlreadyRegistered, "%s", actor)
		}
		out = models.Player{
			Address: actor,
			Name:    name,
			Mana:    e.rules.StartingMana,
			Health:  e.rules.StartingHealth,
		}
		_, err := e.players.Insert(actor, out)
		check(err)
		t.emit(Event{Kind: EventPlayerRegistered, Actor: actor, Players: []models.Address{actor}})
		return nil
	})
	if err == nil {
		e.log.Info().Str("player", actor.String()).Str("name", out.Name).Msg("player registered")
	}
	return out, err
}

// MintToken rolls a new token for actor and makes it the actor's current token.
// The previous token stays in the registry but is no longer indexed by owner.
func (e *Engine) MintToken(ctx context.Context, actor models.Address, name string) (models.GameToken, error) {
	var out models.GameToken
	err := e.apply(ctx, func(t *txn) error {
		p, err := e.players.Get(actor)
		if err != nil {
			return errorf(ErrNotAPlayer, "%s", actor)
		}
		if p.InBattle {
			return errorf(ErrAlreadyInBattle, "%s", actor)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return errorf(ErrInvalidName, "token name is required")
		}

		atk, def := engine.RollSplit(e.rng, e.rules.MaxStrength)
		kind := models.TokenKind(engine.RollKind(e.rng, int(models.MinTokenKind), int(models.MaxTokenKind)))
		tok := models.GameToken{
			ID:      e.supply + 1,
			Name:    name,
			Owner:   actor,
			Kind:    kind,
			Attack:  atk,
			Defense: def,
		}
		e.assertSplit(tok)

		if err := e.minter.Mint(ctx, actor, kind, 1); err != nil {
			return &Error{Code: CodeMintFailed, Message: ErrMintFailed.Message, Cause: err}
		}
		h, err := e.tokens.Insert(tok.ID, tok)
		check(err)
		e.tokenOf[actor] = h
		e.supply++
		out = tok
		t.emit(Event{Kind: EventTokenMinted, Actor: actor, Token: &tok})
		return nil
	})
	if err == nil {
		e.log.Info().Str("player", actor.String()).Uint64("token", out.ID).Stringer("kind", out.Kind).
			Uint("attack", out.Attack).Uint("defense", out.Defense).Msg("token minted")
	}
	return out, err
}

// Player returns the registered player at addr.
func (e *Engine) Player(addr models.Address) (models.Player, error) {
	var (
		p   models.Player
		err error
	)
	e.read(func() { p, err = e.players.Get(addr) })
	if err != nil {
		return models.Player{}, errorf(ErrNotAPlayer, "%s", addr)
	}
	return p, nil
}

func (e *Engine) IsPlayer(addr models.Address) bool {
	var ok bool
	e.read(func() { ok = e.players.Exists(addr) })
	return ok
}

// Players lists all players in registration order.
func (e *Engine) Players() []models.Player {
	var out []models.Player
	e.read(func() { out = e.players.All() })
	return out
}

// Token returns the current token of owner.
func (e *Engine) Token(owner models.Address) (models.GameToken, error) {
	var (
		tok models.GameToken
		ok  bool
	)
	e.read(func() {
		var h registry.Handle
		if h, ok = e.tokenOf[owner]; ok {
			var err error
			tok, err = e.tokens.At(h)
			check(err)
		}
	})
	if !ok {
		return models.GameToken{}, errorf(ErrNoToken, "%s", owner)
	}
	return tok, nil
}

func (e *Engine) HasToken(owner models.Address) bool {
	var ok bool
	e.read(func() { _, ok = e.tokenOf[owner] })
	return ok
}

// Tokens lists every token ever minted, including superseded ones.
func (e *Engine) Tokens() []models.GameToken {
	var out []models.GameToken
	e.read(func() { out = e.tokens.All() })
	return out
}

func (e *Engine) TotalSupply() uint64 {
	var n uint64
	e.read(func() { n = e.supply })
	return n
}
