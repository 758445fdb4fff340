// Package ledger is an in-memory multi-token balance book in the style of
// ERC-1155: every token kind is a fungible id, balances are tracked per
// (kind, owner) and the supply of each kind always equals the sum of its balances.
//
// The game engine mints one unit of the rolled kind through Ledger.Mint whenever
// a player mints a token. Holders may then transfer, burn and delegate their units
// through the HTTP API; the engine's battle token is not affected by ledger moves.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrNotApproved         = errors.New("ledger: caller is not owner nor approved")
	ErrInvalidKind         = errors.New("ledger: invalid token kind")
	ErrZeroAddress         = errors.New("ledger: zero address")
	ErrOverflow            = errors.New("ledger: balance overflow")
	ErrLengthMismatch      = errors.New("ledger: length mismatch")
)

type Ledger struct {
	mu        sync.RWMutex
	balances  map[models.TokenKind]map[models.Address]uint64
	supply    map[models.TokenKind]uint64
	operators map[models.Address]map[models.Address]bool
}

func New() *Ledger {
	return &Ledger{
		balances:  make(map[models.TokenKind]map[models.Address]uint64),
		supply:    make(map[models.TokenKind]uint64),
		operators: make(map[models.Address]map[models.Address]bool),
	}
}

func (l *Ledger) checkKind(kind models.TokenKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, uint8(kind))
	}
	return nil
}

// Mint credits amount units of kind to owner.
func (l *Ledger) Mint(_ context.Context, owner models.Address, kind models.TokenKind, amount uint64) error {
	if !owner.Valid() {
		return ErrZeroAddress
	}
	if err := l.checkKind(kind); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.supply[kind]+amount < l.supply[kind] {
		return ErrOverflow
	}
	b := l.balances[kind]
	if b == nil {
		b = make(map[models.Address]uint64)
		l.balances[kind] = b
	}
	b[owner] += amount
	l.supply[kind] += amount
	return nil
}

// Burn destroys amount units of kind held by from. caller must be from or an
// approved operator of from.
func (l *Ledger) Burn(caller, from models.Address, kind models.TokenKind, amount uint64) error {
	if err := l.checkKind(kind); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.approvedLocked(caller, from) {
		return ErrNotApproved
	}
	if l.balances[kind][from] < amount {
		return fmt.Errorf("%w: %s holds %d of %s", ErrInsufficientBalance, from, l.balances[kind][from], kind)
	}
	if amount == 0 {
		return nil
	}
	l.balances[kind][from] -= amount
	l.supply[kind] -= amount
	return nil
}

// Transfer moves amount units of kind from one owner to another.
func (l *Ledger) Transfer(caller, from, to models.Address, kind models.TokenKind, amount uint64) error {
	return l.BatchTransfer(caller, from, to, []models.TokenKind{kind}, []uint64{amount})
}

// BatchTransfer moves several kinds at once. Either every move applies or none does.
func (l *Ledger) BatchTransfer(caller, from, to models.Address, kinds []models.TokenKind, amounts []uint64) error {
	if len(kinds) != len(amounts) {
		return fmt.Errorf("%w: %d kinds for %d amounts", ErrLengthMismatch, len(kinds), len(amounts))
	}
	if !to.Valid() {
		return ErrZeroAddress
	}
	for _, k := range kinds {
		if err := l.checkKind(k); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.approvedLocked(caller, from) {
		return ErrNotApproved
	}
	need := make(map[models.TokenKind]uint64, len(kinds))
	for i, k := range kinds {
		need[k] += amounts[i]
	}
	for k, n := range need {
		if l.balances[k][from] < n {
			return fmt.Errorf("%w: %s holds %d of %s", ErrInsufficientBalance, from, l.balances[k][from], k)
		}
	}
	for k, n := range need {
		if n == 0 {
			continue
		}
		l.balances[k][from] -= n
		l.balances[k][to] += n
	}
	return nil
}

// SetApprovalForAll lets operator move and burn every kind held by owner.
func (l *Ledger) SetApprovalForAll(owner, operator models.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.operators[owner]
	if ops == nil {
		ops = make(map[models.Address]bool)
		l.operators[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
}

func (l *Ledger) IsApprovedForAll(owner, operator models.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[owner][operator]
}

func (l *Ledger) approvedLocked(caller, from models.Address) bool {
	return caller == from || l.operators[from][caller]
}

func (l *Ledger) BalanceOf(owner models.Address, kind models.TokenKind) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[kind][owner]
}

// BalanceOfBatch returns the balance of owners[i] in kinds[i].
func (l *Ledger) BalanceOfBatch(owners []models.Address, kinds []models.TokenKind) ([]uint64, error) {
	if len(owners) != len(kinds) {
		return nil, fmt.Errorf("%w: %d owners for %d kinds", ErrLengthMismatch, len(owners), len(kinds))
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]uint64, len(owners))
	for i := range owners {
		out[i] = l.balances[kinds[i]][owners[i]]
	}
	return out, nil
}

// Balance is one non-zero holding.
type Balance struct {
	Kind   models.TokenKind `json:"kind"`
	Name   string           `json:"name"`
	Amount uint64           `json:"amount"`
}

// Holdings lists every kind owner holds, ordered by kind.
func (l *Ledger) Holdings(owner models.Address) []Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Balance
	for kind, b := range l.balances {
		if n := b[owner]; n > 0 {
			out = append(out, Balance{Kind: kind, Name: kind.String(), Amount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (l *Ledger) Supply(kind models.TokenKind) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[kind]
}

// TotalSupply sums the supply of every kind.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n uint64
	for _, s := range l.supply {
		n += s
	}
	return n
}
