package game

import (
	"context"

	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// SubmitMove records actor's move for the current round of battleName. When it
// is the second move of the round the round is resolved before returning.
func (e *Engine) SubmitMove(ctx context.Context, actor models.Address, choice models.Move, battleName string) (RoundResult, error) {
	var res RoundResult
	err := e.apply(ctx, func(t *txn) error {
		if !choice.Valid() {
			return errorf(ErrInvalidChoice, "%d", uint8(choice))
		}
		b, err := e.battles.Get(battleName)
		if err != nil {
			return errorf(ErrNotFound, "battle %q", battleName)
		}
		switch b.Status {
		case models.BattlePending:
			return errorf(ErrNotStarted, "battle %q is pending", battleName)
		case models.BattleEnded:
			return &Error{Code: CodeNotStarted, Message: ErrNotStarted.Message, Cause: errorf(ErrAlreadyEnded, "%q", battleName)}
		}
		slot, ok := b.Slot(actor)
		if !ok {
			return errorf(ErrNotAParticipant, "%s in %q", actor, battleName)
		}
		if b.Moves[slot] != nil {
			return errorf(ErrMoveAlreadySet, "%s in %q", actor, battleName)
		}
		if choice == models.MoveAttack {
			if p := e.mustPlayer(actor); p.Mana < e.rules.AttackCost {
				return errorf(ErrInsufficientMana, "have %d, attack costs %d", p.Mana, e.rules.AttackCost)
			}
		}

		b.Moves[slot] = models.MovePtr(choice)
		check(e.battles.Update(battleName, b))
		other := b.Moves[1-slot]
		t.emit(Event{
			Kind:               EventMoveSubmitted,
			Actor:              actor,
			Battle:             battleName,
			Players:            b.Participants(),
			WaitingForOpponent: other == nil,
		})
		if other != nil {
			res = e.resolveRound(t, b)
		}
		return nil
	})
	return res, err
}

func (e *Engine) combatant(b models.Battle, slot int) combatant {
	addr := b.Participants()[slot]
	p := e.mustPlayer(addr)
	tok := e.mustToken(addr)
	e.assertSplit(tok)
	return combatant{
		Address: addr,
		Move:    *b.Moves[slot],
		Health:  p.Health,
		Mana:    p.Mana,
		Attack:  tok.Attack,
		Defense: tok.Defense,
	}
}

// resolveRound settles a round whose two moves are both set.
func (e *Engine) resolveRound(t *txn, b models.Battle) RoundResult {
	c := [2]combatant{e.combatant(b, 0), e.combatant(b, 1)}
	o := resolve(e.rules, c)

	b.Round++
	res := RoundResult{
		Resolved: true,
		Round:    b.Round,
		Moves:    [2]models.Move{c[0].Move, c[1].Move},
	}
	ev := Event{
		Kind:    EventRoundEnded,
		Battle:  b.Name,
		Players: b.Participants(),
		Round:   b.Round,
	}

	if o.Winner >= 0 {
		winner := c[o.Winner].Address
		loser := c[1-o.Winner].Address
		ev.Final = true
		ev.Damaged = []models.Address{loser}
		t.emit(ev)

		e.endBattle(t, b, &winner)
		res.Winner = &winner
		res.Ended = true
		res.Players = [2]models.Player{e.mustPlayer(c[0].Address), e.mustPlayer(c[1].Address)}
		return res
	}

	for i := range c {
		p := e.mustPlayer(c[i].Address)
		if lost := subSat(p.Health, o.Health[i]); lost > 0 {
			res.Damage = append(res.Damage, Damage{Player: p.Address, Amount: lost})
		}
		p.Health = o.Health[i]
		p.Mana = o.Mana[i]
		check(e.players.Update(p.Address, p))
		res.Players[i] = p
	}
	for _, i := range o.Damaged {
		ev.Damaged = append(ev.Damaged, c[i].Address)
	}
	ev.Damage = res.Damage

	b.Moves = [2]*models.Move{}
	check(e.battles.Update(b.Name, b))

	for i := range c {
		e.reroll(c[i].Address)
	}
	t.emit(ev)

	e.log.Debug().Str("battle", b.Name).Uint("round", b.Round).
		Stringer("move0", c[0].Move).Stringer("move1", c[1].Move).
		Uint("health0", o.Health[0]).Uint("health1", o.Health[1]).Msg("round resolved")
	return res
}

// reroll draws a fresh attack/defense split for owner's current token.
func (e *Engine) reroll(owner models.Address) {
	tok := e.mustToken(owner)
	tok.Attack, tok.Defense = engine.RollSplit(e.rng, e.rules.MaxStrength)
	e.assertSplit(tok)
	check(e.tokens.Update(tok.ID, tok))
}

// resolve applies the move table to a pair of combatants:
//
//	attack/attack: first slot whose attack reaches the other's health wins (slot 0
//	  checked first); otherwise each loses the opponent's attack and both pay the
//	  attack cost.
//	attack/defend: the attacker wins if its attack reaches the defender's guard
//	  (health+defense); a defense above the attack absorbs everything, otherwise
//	  the defender's health becomes guard-attack. The attacker pays, the defender gains.
//	defend/defend: both gain mana.
func resolve(r Rules, c [2]combatant) outcome {
	o := outcome{
		Winner: -1,
		Health: [2]uint{c[0].Health, c[1].Health},
		Mana:   [2]uint{c[0].Mana, c[1].Mana},
	}
	switch {
	case c[0].Move == models.MoveAttack && c[1].Move == models.MoveAttack:
		if c[0].Attack >= c[1].Health {
			o.Winner = 0
			return o
		}
		if c[1].Attack >= c[0].Health {
			o.Winner = 1
			return o
		}
		o.Health[0] = subSat(c[0].Health, c[1].Attack)
		o.Health[1] = subSat(c[1].Health, c[0].Attack)
		o.Mana[0] = subSat(c[0].Mana, r.AttackCost)
		o.Mana[1] = subSat(c[1].Mana, r.AttackCost)
		o.Damaged = []int{0, 1}

	case c[0].Move == models.MoveAttack && c[1].Move == models.MoveDefend:
		resolveAttackDefend(r, c, 0, 1, &o)

	case c[0].Move == models.MoveDefend && c[1].Move == models.MoveAttack:
		resolveAttackDefend(r, c, 1, 0, &o)

	default:
		o.Mana[0] = r.gainMana(c[0].Mana)
		o.Mana[1] = r.gainMana(c[1].Mana)
	}
	return o
}

func resolveAttackDefend(r Rules, c [2]combatant, atk, def int, o *outcome) {
	guard := c[def].Health + c[def].Defense
	if c[atk].Attack >= guard {
		o.Winner = atk
		return
	}
	if c[def].Defense <= c[atk].Attack {
		o.Health[def] = subSat(guard, c[atk].Attack)
		o.Damaged = []int{def}
	}
	o.Mana[atk] = subSat(c[atk].Mana, r.AttackCost)
	o.Mana[def] = r.gainMana(c[def].Mana)
}
