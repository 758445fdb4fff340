// Package stats keeps per-player battle statistics and the day's biggest hit.
// It is fed by engine events and lives in memory only.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// PlayerStats stores statistics for one player.
type PlayerStats struct {
	Address     models.Address `json:"address"`
	Battles     int            `json:"battles"`
	Wins        int            `json:"wins"`
	Losses      int            `json:"losses"`
	Rounds      int            `json:"rounds"`
	DamageTaken uint           `json:"damage_taken"`
	DamageDealt uint           `json:"damage_dealt"`
	Mints       int            `json:"mints"`
	LastBattle  string         `json:"last_battle,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Hit is the largest single-round damage dealt on a given day.
type Hit struct {
	Attacker models.Address `json:"attacker"`
	Defender models.Address `json:"defender"`
	Battle   string         `json:"battle"`
	Round    uint           `json:"round"`
	Damage   uint           `json:"damage"`
	At       time.Time      `json:"at"`
}

// Recorder implements game.Notifier.
type Recorder struct {
	mu      sync.Mutex
	players map[models.Address]*PlayerStats
	// dailyMax is keyed by UTC date, YYYY-MM-DD.
	dailyMax map[string]Hit
	now      func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{
		players:  make(map[models.Address]*PlayerStats),
		dailyMax: make(map[string]Hit),
		now:      time.Now,
	}
}

func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (r *Recorder) player(addr models.Address, at time.Time) *PlayerStats {
	s, ok := r.players[addr]
	if !ok {
		s = &PlayerStats{Address: addr}
		r.players[addr] = s
	}
	s.UpdatedAt = at
	return s
}

func (r *Recorder) Notify(_ context.Context, ev game.Event) {
	at := ev.At
	if at.IsZero() {
		at = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case game.EventPlayerRegistered:
		r.player(ev.Actor, at)
	case game.EventTokenMinted:
		r.player(ev.Actor, at).Mints++
	case game.EventBattleStarted:
		for _, a := range ev.Players {
			s := r.player(a, at)
			s.Battles++
			s.LastBattle = ev.Battle
		}
	case game.EventRoundEnded:
		for _, a := range ev.Players {
			r.player(a, at).Rounds++
		}
		for _, d := range ev.Damage {
			r.player(d.Player, at).DamageTaken += d.Amount
			attacker, ok := opponent(ev.Players, d.Player)
			if !ok {
				continue
			}
			r.player(attacker, at).DamageDealt += d.Amount
			r.saveMaxHit(Hit{
				Attacker: attacker,
				Defender: d.Player,
				Battle:   ev.Battle,
				Round:    ev.Round,
				Damage:   d.Amount,
				At:       at,
			})
		}
	case game.EventBattleEnded:
		if ev.Winner != nil {
			r.player(*ev.Winner, at).Wins++
		}
		if ev.Loser != nil {
			r.player(*ev.Loser, at).Losses++
		}
	}
}

func opponent(players []models.Address, addr models.Address) (models.Address, bool) {
	if len(players) != 2 {
		return "", false
	}
	if players[0] == addr {
		return players[1], true
	}
	return players[0], true
}

// saveMaxHit replaces the day's record if h dealt more damage. Ties keep the
// earlier hit.
func (r *Recorder) saveMaxHit(h Hit) {
	key := dateKey(h.At)
	if cur, ok := r.dailyMax[key]; ok && cur.Damage >= h.Damage {
		return
	}
	r.dailyMax[key] = h
}

// Player returns a copy of the stats of addr. Unknown players get zero stats.
func (r *Recorder) Player(addr models.Address) PlayerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.players[addr]; ok {
		return *s
	}
	return PlayerStats{Address: addr}
}

// MaxHitToday returns the largest hit of the current UTC day.
func (r *Recorder) MaxHitToday() (Hit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.dailyMax[dateKey(r.now())]
	return h, ok
}
