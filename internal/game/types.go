package game

import "github.com/narasim-teja/Sorobon-Battles/internal/models"

// combatant captures the minimal stats needed to resolve one round for one slot.
type combatant struct {
	Address models.Address
	Move    models.Move
	Health  uint
	Mana    uint
	Attack  uint
	Defense uint
}

// outcome is the pure result of resolving a round.
type outcome struct {
	// Winner is the slot that won outright, or -1.
	Winner  int
	Health  [2]uint
	Mana    [2]uint
	Damaged []int
}

// RoundResult describes what a SubmitMove call resolved, if anything.
type RoundResult struct {
	// Resolved is false when the submitted move was the first of the round.
	Resolved bool             `json:"resolved"`
	Round    uint             `json:"round,omitempty"`
	Moves    [2]models.Move   `json:"moves,omitempty"`
	Damage   []Damage         `json:"damage,omitempty"`
	Winner   *models.Address  `json:"winner,omitempty"`
	Ended    bool             `json:"ended"`
	Players  [2]models.Player `json:"players"`
}
