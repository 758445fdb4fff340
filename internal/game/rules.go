package game

import "fmt"

// Fixed rule values.
const (
	DefaultStartingHealth   = 25
	DefaultStartingMana     = 10
	DefaultAttackCost       = 3
	DefaultDefendGain       = 3
	MaxAttackDefendStrength = 10
)

// Rules holds the numeric constants of the game.
type Rules struct {
	StartingHealth uint `yaml:"starting_health" json:"starting_health"`
	StartingMana   uint `yaml:"starting_mana" json:"starting_mana"`
	AttackCost     uint `yaml:"attack_cost" json:"attack_cost"`
	DefendGain     uint `yaml:"defend_gain" json:"defend_gain"`
	MaxStrength    uint `yaml:"max_attack_defend_strength" json:"max_attack_defend_strength"`
	// ManaCap bounds mana gained by defending. 0 means uncapped.
	ManaCap uint `yaml:"mana_cap" json:"mana_cap"`
}

func DefaultRules() Rules {
	return Rules{
		StartingHealth: DefaultStartingHealth,
		StartingMana:   DefaultStartingMana,
		AttackCost:     DefaultAttackCost,
		DefendGain:     DefaultDefendGain,
		MaxStrength:    MaxAttackDefendStrength,
	}
}

func (r Rules) Validate() error {
	if r.StartingHealth == 0 {
		return fmt.Errorf("starting health must be positive")
	}
	if r.MaxStrength < 2 {
		return fmt.Errorf("max attack/defend strength must be at least 2, got %d", r.MaxStrength)
	}
	if r.ManaCap != 0 && r.ManaCap < r.StartingMana {
		return fmt.Errorf("mana cap %d is below starting mana %d", r.ManaCap, r.StartingMana)
	}
	return nil
}

// subSat subtracts without wrapping below zero.
func subSat(a, b uint) uint {
	if b >= a {
		return 0
	}
	return a - b
}

func (r Rules) gainMana(mana uint) uint {
	mana += r.DefendGain
	if r.ManaCap != 0 && mana > r.ManaCap {
		return r.ManaCap
	}
	return mana
}
