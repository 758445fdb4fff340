package game

import (
	"context"
	"time"

	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// EventKind names an engine notification.
type EventKind string

const (
	EventPlayerRegistered EventKind = "player_registered"
	EventTokenMinted      EventKind = "token_minted"
	EventBattleCreated    EventKind = "battle_created"
	EventBattleStarted    EventKind = "battle_started"
	EventMoveSubmitted    EventKind = "move_submitted"
	EventRoundEnded       EventKind = "round_ended"
	EventBattleEnded      EventKind = "battle_ended"
)

// Damage records health lost by one participant in a round.
type Damage struct {
	Player models.Address `json:"player"`
	Amount uint           `json:"amount"`
}

// Event is emitted after the operation that produced it has committed. Seq is
// strictly increasing across the engine, so consumers can order events that
// were delivered concurrently.
type Event struct {
	ID     string         `json:"id"`
	Seq    uint64         `json:"seq"`
	Kind   EventKind      `json:"kind"`
	At     time.Time      `json:"at"`
	Actor  models.Address `json:"actor,omitempty"`
	Battle string         `json:"battle,omitempty"`

	Players []models.Address  `json:"players,omitempty"`
	Token   *models.GameToken `json:"token,omitempty"`

	// move_submitted: the opponent has not moved yet.
	WaitingForOpponent bool `json:"waiting_for_opponent,omitempty"`

	// round_ended
	Round   uint             `json:"round,omitempty"`
	Damaged []models.Address `json:"damaged,omitempty"`
	Damage  []Damage         `json:"damage,omitempty"`
	Final   bool             `json:"final,omitempty"`

	// battle_ended; both nil when a pending battle is cancelled.
	Winner *models.Address `json:"winner,omitempty"`
	Loser  *models.Address `json:"loser,omitempty"`
}

// Notifier receives committed engine events. Notify is called outside the
// engine lock and may call back into the engine.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Notifiers fans an event out to each notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Minter performs the external side effect of minting a token.
type Minter interface {
	Mint(ctx context.Context, owner models.Address, kind models.TokenKind, amount uint64) error
}

type nopMinter struct{}

func (nopMinter) Mint(context.Context, models.Address, models.TokenKind, uint64) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
