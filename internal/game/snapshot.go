package game

import (
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/registry"
)

// Snapshot is a point-in-time copy of all engine state.
type Snapshot struct {
	Players       []models.Player
	Tokens        []models.GameToken
	Battles       []models.Battle
	CurrentTokens map[models.Address]uint64
	TotalSupply   uint64
	Seq           uint64
}

// Snapshot copies the engine state under the lock.
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot
	e.read(func() {
		s = Snapshot{
			Players:       e.players.All(),
			Tokens:        e.tokens.All(),
			Battles:       e.battles.All(),
			CurrentTokens: make(map[models.Address]uint64, len(e.tokenOf)),
			TotalSupply:   e.supply,
			Seq:           e.seq,
		}
		for owner, h := range e.tokenOf {
			tok, err := e.tokens.At(h)
			check(err)
			s.CurrentTokens[owner] = tok.ID
		}
	})
	return s
}

// Restore replaces the engine state with s. The snapshot is validated first; on
// error the engine is left untouched. Token handles issued before the restore
// become stale and are replaced.
func (e *Engine) Restore(s Snapshot) error {
	if err := e.validateSnapshot(s); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.players.Reset()
	e.tokens.Reset()
	e.battles.Reset()
	for _, p := range s.Players {
		_, err := e.players.Insert(p.Address, p)
		check(err)
	}
	for _, t := range s.Tokens {
		_, err := e.tokens.Insert(t.ID, t)
		check(err)
	}
	for _, b := range s.Battles {
		_, err := e.battles.Insert(b.Name, b)
		check(err)
	}
	e.tokenOf = make(map[models.Address]registry.Handle, len(s.CurrentTokens))
	for owner, id := range s.CurrentTokens {
		h, ok := e.tokens.Lookup(id)
		assertf(ok, "current token %d of %s missing after restore", id, owner)
		e.tokenOf[owner] = h
	}
	e.supply = s.TotalSupply
	if s.Seq > e.seq {
		e.seq = s.Seq
	}
	e.log.Info().Int("players", len(s.Players)).Int("tokens", len(s.Tokens)).Int("battles", len(s.Battles)).Msg("state restored")
	return nil
}

func (e *Engine) validateSnapshot(s Snapshot) error {
	players := make(map[models.Address]models.Player, len(s.Players))
	for _, p := range s.Players {
		if !p.Address.Valid() {
			return errorf(ErrInvalidSnapshot, "player with empty address")
		}
		if _, dup := players[p.Address]; dup {
			return errorf(ErrInvalidSnapshot, "duplicate player %s", p.Address)
		}
		players[p.Address] = p
	}

	tokens := make(map[uint64]models.GameToken, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.ID == 0 || t.ID > s.TotalSupply {
			return errorf(ErrInvalidSnapshot, "token id %d outside supply %d", t.ID, s.TotalSupply)
		}
		if _, dup := tokens[t.ID]; dup {
			return errorf(ErrInvalidSnapshot, "duplicate token %d", t.ID)
		}
		if t.Attack+t.Defense != e.rules.MaxStrength {
			return errorf(ErrInvalidSnapshot, "token %d split %d/%d", t.ID, t.Attack, t.Defense)
		}
		if _, ok := players[t.Owner]; !ok {
			return errorf(ErrInvalidSnapshot, "token %d owned by unknown player %s", t.ID, t.Owner)
		}
		tokens[t.ID] = t
	}
	if uint64(len(tokens)) != s.TotalSupply {
		return errorf(ErrInvalidSnapshot, "%d tokens for supply %d", len(tokens), s.TotalSupply)
	}
	for owner, id := range s.CurrentTokens {
		t, ok := tokens[id]
		if !ok || t.Owner != owner {
			return errorf(ErrInvalidSnapshot, "current token %d of %s", id, owner)
		}
	}

	fighting := make(map[models.Address]string)
	names := make(map[string]bool, len(s.Battles))
	for _, b := range s.Battles {
		if names[b.Name] {
			return errorf(ErrInvalidSnapshot, "duplicate battle %q", b.Name)
		}
		names[b.Name] = true
		for _, addr := range b.Participants() {
			if _, ok := players[addr]; !ok {
				return errorf(ErrInvalidSnapshot, "battle %q references unknown player %s", b.Name, addr)
			}
		}
		for i, m := range b.Moves {
			if m == nil {
				continue
			}
			if b.Status != models.BattleStarted {
				return errorf(ErrInvalidSnapshot, "%s battle %q holds a move", b.Status, b.Name)
			}
			if !m.Valid() {
				return errorf(ErrInvalidSnapshot, "battle %q slot %d has move code %d", b.Name, i, *m)
			}
		}
		if b.Status != models.BattleStarted {
			continue
		}
		if b.Joiner == nil {
			return errorf(ErrInvalidSnapshot, "started battle %q has no joiner", b.Name)
		}
		for _, addr := range b.Participants() {
			if other, busy := fighting[addr]; busy {
				return errorf(ErrInvalidSnapshot, "%s fights in %q and %q", addr, other, b.Name)
			}
			if _, ok := s.CurrentTokens[addr]; !ok {
				return errorf(ErrInvalidSnapshot, "%s fights in %q without a token", addr, b.Name)
			}
			fighting[addr] = b.Name
		}
	}
	for addr, p := range players {
		_, busy := fighting[addr]
		if p.InBattle != busy {
			return errorf(ErrInvalidSnapshot, "player %s in_battle=%t disagrees with battles", addr, p.InBattle)
		}
	}
	return nil
}
