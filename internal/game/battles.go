package game

import (
	"context"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// BattleHash is the hex Keccak-256 of the battle name. It gives external
// systems a stable reference that does not depend on registry layout.
func BattleHash(name string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}

// CreateBattle opens a pending battle with actor in the first slot.
func (e *Engine) CreateBattle(ctx context.Context, actor models.Address, name string) (models.Battle, error) {
	var out models.Battle
	err := e.apply(ctx, func(t *txn) error {
		p, err := e.players.Get(actor)
		if err != nil {
			return errorf(ErrNotAPlayer, "%s", actor)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return errorf(ErrInvalidName, "battle name is required")
		}
		if strings.Contains(name, "/") {
			return errorf(ErrInvalidName, "battle name %q contains '/'", name)
		}
		if e.battles.Exists(name) {
			return errorf(ErrNameTaken, "%q", name)
		}
		if p.InBattle {
			return errorf(ErrAlreadyInBattle, "%s", actor)
		}
		out = models.Battle{
			Name:    name,
			Hash:    BattleHash(name),
			Status:  models.BattlePending,
			Creator: actor,
		}
		_, err = e.battles.Insert(name, out)
		check(err)
		t.emit(Event{Kind: EventBattleCreated, Actor: actor, Battle: name, Players: out.Participants()})
		return nil
	})
	if err == nil {
		e.log.Info().Str("battle", out.Name).Str("creator", actor.String()).Msg("battle created")
	}
	return out, err
}

// JoinBattle fills the second slot of a pending battle and starts it.
func (e *Engine) JoinBattle(ctx context.Context, actor models.Address, name string) (models.Battle, error) {
	var out models.Battle
	err := e.apply(ctx, func(t *txn) error {
		joiner, err := e.players.Get(actor)
		if err != nil {
			return errorf(ErrNotAPlayer, "%s", actor)
		}
		b, err := e.battles.Get(name)
		if err != nil {
			return errorf(ErrNotFound, "battle %q", name)
		}
		if b.Status != models.BattlePending {
			return errorf(ErrNotPending, "battle %q is %s", name, b.Status)
		}
		if b.Creator == actor {
			return errorf(ErrSelfJoin, "%q", name)
		}
		if joiner.InBattle {
			return errorf(ErrAlreadyInBattle, "%s", actor)
		}
		creator := e.mustPlayer(b.Creator)
		if creator.InBattle {
			return errorf(ErrAlreadyInBattle, "creator %s", b.Creator)
		}
		for _, addr := range []models.Address{b.Creator, actor} {
			if _, ok := e.tokenOf[addr]; !ok {
				return errorf(ErrNoToken, "%s", addr)
			}
		}

		b.Joiner = models.AddressPtr(actor)
		b.Status = models.BattleStarted
		b.Moves = [2]*models.Move{}
		check(e.battles.Update(name, b))

		creator.InBattle = true
		joiner.InBattle = true
		check(e.players.Update(creator.Address, creator))
		check(e.players.Update(joiner.Address, joiner))

		out = b
		t.emit(Event{Kind: EventBattleStarted, Actor: actor, Battle: name, Players: b.Participants()})
		return nil
	})
	if err == nil {
		e.log.Info().Str("battle", out.Name).Str("creator", out.Creator.String()).Str("joiner", actor.String()).Msg("battle started")
	}
	return out, err
}

// QuitBattle forfeits a started battle to the opponent of actor. Quitting a
// pending battle cancels it without a winner; quitting an ended battle is a no-op.
func (e *Engine) QuitBattle(ctx context.Context, actor models.Address, name string) (models.Battle, error) {
	var out models.Battle
	err := e.apply(ctx, func(t *txn) error {
		b, err := e.battles.Get(name)
		if err != nil {
			return errorf(ErrNotFound, "battle %q", name)
		}
		if _, ok := b.Slot(actor); !ok {
			return errorf(ErrNotAParticipant, "%s in %q", actor, name)
		}
		switch b.Status {
		case models.BattleEnded:
			out = b
		case models.BattlePending:
			out = e.endBattle(t, b, nil)
		default:
			winner, ok := b.Opponent(actor)
			assertf(ok, "started battle %q has no opponent for %s", name, actor)
			out = e.endBattle(t, b, &winner)
		}
		return nil
	})
	return out, err
}

// endBattle moves b to Ended and records winner. It is idempotent: an ended
// battle is returned unchanged and no event is emitted. Participants of a
// started battle are reset to the starting health and mana.
func (e *Engine) endBattle(t *txn, b models.Battle, winner *models.Address) models.Battle {
	if b.Status == models.BattleEnded {
		return b
	}
	wasStarted := b.Status == models.BattleStarted

	b.Status = models.BattleEnded
	b.Winner = winner
	b.Moves = [2]*models.Move{}
	check(e.battles.Update(b.Name, b))

	if wasStarted {
		for _, addr := range b.Participants() {
			p := e.mustPlayer(addr)
			p.Health = e.rules.StartingHealth
			p.Mana = e.rules.StartingMana
			p.InBattle = false
			check(e.players.Update(addr, p))
		}
	}

	var loser *models.Address
	if winner != nil {
		if l, ok := b.Opponent(*winner); ok {
			loser = &l
		}
	}
	t.emit(Event{
		Kind:    EventBattleEnded,
		Battle:  b.Name,
		Players: b.Participants(),
		Round:   b.Round,
		Winner:  winner,
		Loser:   loser,
	})

	ev := e.log.Info().Str("battle", b.Name).Uint("rounds", b.Round)
	if winner != nil {
		ev = ev.Str("winner", winner.String())
	}
	ev.Msg("battle ended")
	return b
}

// Battle returns the battle registered under name.
func (e *Engine) Battle(name string) (models.Battle, error) {
	var (
		b   models.Battle
		err error
	)
	e.read(func() { b, err = e.battles.Get(name) })
	if err != nil {
		return models.Battle{}, errorf(ErrNotFound, "battle %q", name)
	}
	return b, nil
}

// Battles lists all battles in creation order.
func (e *Engine) Battles() []models.Battle {
	var out []models.Battle
	e.read(func() { out = e.battles.All() })
	return out
}

// ActiveBattle returns the started battle addr is fighting in, if any.
func (e *Engine) ActiveBattle(addr models.Address) (models.Battle, bool) {
	var (
		out   models.Battle
		found bool
	)
	e.read(func() {
		for _, b := range e.battles.All() {
			if b.Status != models.BattleStarted {
				continue
			}
			if _, ok := b.Slot(addr); ok {
				out, found = b, true
				return
			}
		}
	})
	return out, found
}
