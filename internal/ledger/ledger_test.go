package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

const (
	alice models.Address = "0xa11ce"
	bob   models.Address = "0xb0b"
	carol models.Address = "0xca401"
)

var _ game.Minter = (*Ledger)(nil)

func TestMintAndBalances(t *testing.T) {
	ctx := context.Background()
	l := New()
	require.NoError(t, l.Mint(ctx, alice, models.KindGriffin, 2))
	require.NoError(t, l.Mint(ctx, alice, models.KindDevil, 1))
	require.NoError(t, l.Mint(ctx, bob, models.KindGriffin, 1))

	assert.Equal(t, uint64(2), l.BalanceOf(alice, models.KindGriffin))
	assert.Equal(t, uint64(3), l.Supply(models.KindGriffin))
	assert.Equal(t, uint64(4), l.TotalSupply())
	assert.Equal(t, []Balance{
		{Kind: models.KindDevil, Name: models.KindDevil.String(), Amount: 1},
		{Kind: models.KindGriffin, Name: models.KindGriffin.String(), Amount: 2},
	}, l.Holdings(alice))

	got, err := l.BalanceOfBatch([]models.Address{alice, bob}, []models.TokenKind{models.KindDevil, models.KindGriffin})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1}, got)

	require.ErrorIs(t, l.Mint(ctx, alice, models.TokenKind(0), 1), ErrInvalidKind)
	require.ErrorIs(t, l.Mint(ctx, "", models.KindDevil, 1), ErrZeroAddress)
}

func TestTransferNeedsApproval(t *testing.T) {
	ctx := context.Background()
	l := New()
	require.NoError(t, l.Mint(ctx, alice, models.KindKamo, 3))

	require.ErrorIs(t, l.Transfer(bob, alice, bob, models.KindKamo, 1), ErrNotApproved)

	l.SetApprovalForAll(alice, bob, true)
	assert.True(t, l.IsApprovedForAll(alice, bob))
	require.NoError(t, l.Transfer(bob, alice, carol, models.KindKamo, 2))
	assert.Equal(t, uint64(1), l.BalanceOf(alice, models.KindKamo))
	assert.Equal(t, uint64(2), l.BalanceOf(carol, models.KindKamo))

	require.ErrorIs(t, l.Transfer(alice, alice, bob, models.KindKamo, 5), ErrInsufficientBalance)

	l.SetApprovalForAll(alice, bob, false)
	require.ErrorIs(t, l.Burn(bob, alice, models.KindKamo, 1), ErrNotApproved)
	require.NoError(t, l.Burn(alice, alice, models.KindKamo, 1))
	assert.Equal(t, uint64(2), l.Supply(models.KindKamo))
}

func TestBatchTransferIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := New()
	require.NoError(t, l.Mint(ctx, alice, models.KindDevil, 1))
	require.NoError(t, l.Mint(ctx, alice, models.KindFirebird, 1))

	err := l.BatchTransfer(alice, alice, bob,
		[]models.TokenKind{models.KindDevil, models.KindFirebird, models.KindFirebird},
		[]uint64{1, 1, 1})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(1), l.BalanceOf(alice, models.KindDevil))
	assert.Zero(t, l.BalanceOf(bob, models.KindDevil))
}

func TestEngineMintsThroughLedger(t *testing.T) {
	ctx := context.Background()
	l := New()
	e, err := game.New(game.WithMinter(l))
	require.NoError(t, err)
	_, err = e.RegisterPlayer(ctx, alice, "Alice")
	require.NoError(t, err)

	tok, err := e.MintToken(ctx, alice, "Blaze")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), l.BalanceOf(alice, tok.Kind))
	assert.Equal(t, e.TotalSupply(), l.TotalSupply())
}

// TestSupplyConservation checks that the supply of every kind always equals
// the sum of its balances.
func TestSupplyConservation(t *testing.T) {
	owners := []models.Address{alice, bob, carol}
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		l := New()
		for i := rapid.IntRange(1, 50).Draw(rt, "ops"); i > 0; i-- {
			kind := models.TokenKind(rapid.IntRange(int(models.MinTokenKind), int(models.MaxTokenKind)).Draw(rt, "kind"))
			from := rapid.SampledFrom(owners).Draw(rt, "from")
			to := rapid.SampledFrom(owners).Draw(rt, "to")
			amount := rapid.Uint64Range(0, 5).Draw(rt, "amount")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_ = l.Mint(ctx, to, kind, amount)
			case 1:
				_ = l.Transfer(from, from, to, kind, amount)
			case 2:
				_ = l.Burn(from, from, kind, amount)
			}
		}
		for k := models.MinTokenKind; k <= models.MaxTokenKind; k++ {
			var sum uint64
			for _, o := range owners {
				sum += l.BalanceOf(o, k)
			}
			if sum != l.Supply(k) {
				rt.Fatalf("kind %s: balances %d, supply %d", k, sum, l.Supply(k))
			}
		}
	})
}
