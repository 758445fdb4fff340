package models

import (
	"fmt"
	"strings"
)

// ========================= Domain Models =========================
// Shapes shared by the engine, the HTTP API and the storage layer.

// Address identifies an authenticated actor. The empty address is never a valid actor.
type Address string

func (a Address) String() string { return string(a) }

// Valid reports whether a is usable as an actor identity.
func (a Address) Valid() bool { return strings.TrimSpace(string(a)) != "" }

// Player is a registered participant.
type Player struct {
	Address  Address `json:"address"`
	Name     string  `json:"name"`
	Mana     uint    `json:"mana"`
	Health   uint    `json:"health"`
	InBattle bool    `json:"in_battle"`
}

// TokenKind is one of the six collectible kinds.
type TokenKind uint8

const (
	KindDevil TokenKind = iota + 1
	KindGriffin
	KindFirebird
	KindKamo
	KindKukulkan
	KindCelestion
)

const (
	MinTokenKind = KindDevil
	MaxTokenKind = KindCelestion
)

var kindNames = map[TokenKind]string{
	KindDevil:     "devil",
	KindGriffin:   "griffin",
	KindFirebird:  "firebird",
	KindKamo:      "kamo",
	KindKukulkan:  "kukulkan",
	KindCelestion: "celestion",
}

func (k TokenKind) Valid() bool { return k >= MinTokenKind && k <= MaxTokenKind }

func (k TokenKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// GameToken is the collectible a player fights with. Attack+Defense always equals
// the configured maximum strength.
type GameToken struct {
	ID      uint64    `json:"id"`
	Name    string    `json:"name"`
	Owner   Address   `json:"owner"`
	Kind    TokenKind `json:"kind"`
	Attack  uint      `json:"attack"`
	Defense uint      `json:"defense"`
}

// BattleStatus is the lifecycle stage of a battle.
type BattleStatus uint8

const (
	BattlePending BattleStatus = iota
	BattleStarted
	BattleEnded
)

func (s BattleStatus) String() string {
	switch s {
	case BattlePending:
		return "pending"
	case BattleStarted:
		return "started"
	case BattleEnded:
		return "ended"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s BattleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *BattleStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = BattlePending
	case "started":
		*s = BattleStarted
	case "ended":
		*s = BattleEnded
	default:
		return fmt.Errorf("unknown battle status %q", string(b))
	}
	return nil
}

// Move is a participant's choice for one round. Wire codes are 1 (attack) and 2 (defend).
type Move uint8

const (
	MoveAttack Move = 1
	MoveDefend Move = 2
)

func (m Move) Valid() bool { return m == MoveAttack || m == MoveDefend }

func (m Move) String() string {
	switch m {
	case MoveAttack:
		return "attack"
	case MoveDefend:
		return "defend"
	}
	return fmt.Sprintf("move(%d)", uint8(m))
}

// Battle pairs a creator with a joiner. Optional fields are nil until set; the
// pointed-to values are never mutated in place, so copies of a Battle are safe to share.
type Battle struct {
	Name    string       `json:"name"`
	Hash    string       `json:"hash"`
	Status  BattleStatus `json:"status"`
	Creator Address      `json:"creator"`
	Joiner  *Address     `json:"joiner,omitempty"`
	Moves   [2]*Move     `json:"-"`
	Winner  *Address     `json:"winner,omitempty"`
	Round   uint         `json:"round"`
}

// Participants returns the filled player slots in slot order.
func (b Battle) Participants() []Address {
	if b.Joiner == nil {
		return []Address{b.Creator}
	}
	return []Address{b.Creator, *b.Joiner}
}

// Slot returns the move slot of addr (0 for the creator, 1 for the joiner).
func (b Battle) Slot(addr Address) (int, bool) {
	switch {
	case addr == b.Creator:
		return 0, true
	case b.Joiner != nil && addr == *b.Joiner:
		return 1, true
	}
	return 0, false
}

// Opponent returns the other participant of addr, if there is one.
func (b Battle) Opponent(addr Address) (Address, bool) {
	slot, ok := b.Slot(addr)
	if !ok {
		return "", false
	}
	if slot == 0 {
		if b.Joiner == nil {
			return "", false
		}
		return *b.Joiner, true
	}
	return b.Creator, true
}

// MovesPending reports, per slot, whether the participant still has to move this round.
func (b Battle) MovesPending() [2]bool {
	return [2]bool{b.Moves[0] == nil, b.Moves[1] == nil}
}

// AddressPtr is a small helper for the optional address fields.
func AddressPtr(a Address) *Address { return &a }

// MovePtr is a small helper for the optional move slots.
func MovePtr(m Move) *Move { return &m }
