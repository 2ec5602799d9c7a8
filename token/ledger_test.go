package token_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/store/sqlite"
	"github.com/warp/vesting-ledger/token"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	minter = generic.MustParseAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	alice  = generic.MustParseAddress("0x00000000000000000000000000000000000A11cE")
	bob    = generic.MustParseAddress("0x0000000000000000000000000000000000000B0b")
)

func newTestLedger(t *testing.T, supply int64) (*token.Ledger, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := token.NewLedger(store, "VEST", minter)
	if supply > 0 {
		require.NoError(t, ledger.Mint(context.Background(), minter, minter, generic.NewAmount(supply)))
	}
	return ledger, store
}

func balance(t *testing.T, l *token.Ledger, addr generic.Address) string {
	t.Helper()
	bal, err := l.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return bal.String()
}

// =============================================================================
// TRANSFER
// =============================================================================

func TestLedger_Transfer(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()

	require.NoError(t, ledger.Transfer(ctx, minter, alice, generic.NewAmount(300)))

	assert.Equal(t, "700", balance(t, ledger, minter))
	assert.Equal(t, "300", balance(t, ledger, alice))
}

func TestLedger_Transfer_InsufficientBalance(t *testing.T) {
	// GIVEN: Alice holds 50
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()
	require.NoError(t, ledger.Transfer(ctx, minter, alice, generic.NewAmount(50)))

	// WHEN: Alice sends 51
	err := ledger.Transfer(ctx, alice, bob, generic.NewAmount(51))

	// THEN: Rejected with details, balances untouched
	var balErr *generic.InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, alice, balErr.Account)
	assert.Equal(t, "50", balErr.Available.String())
	assert.Equal(t, "51", balErr.Requested.String())
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)

	assert.Equal(t, "50", balance(t, ledger, alice))
	assert.Equal(t, "0", balance(t, ledger, bob))
}

func TestLedger_Transfer_RejectsZeroRecipientAndNegative(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()

	err := ledger.Transfer(ctx, minter, generic.ZeroAddress, generic.NewAmount(1))
	assert.ErrorIs(t, err, generic.ErrInvalidAddress)

	err = ledger.Transfer(ctx, minter, alice, generic.NewAmount(-1))
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)

	assert.Equal(t, "1000", balance(t, ledger, minter))
}

func TestLedger_Transfer_ToSelfKeepsBalance(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)

	require.NoError(t, ledger.Transfer(context.Background(), minter, minter, generic.NewAmount(400)))
	assert.Equal(t, "1000", balance(t, ledger, minter))
}

// =============================================================================
// APPROVE / TRANSFER FROM
// =============================================================================

func TestLedger_TransferFrom_ConsumesAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()

	require.NoError(t, ledger.Approve(ctx, minter, alice, generic.NewAmount(400)))
	require.NoError(t, ledger.TransferFrom(ctx, alice, minter, bob, generic.NewAmount(150)))

	assert.Equal(t, "850", balance(t, ledger, minter))
	assert.Equal(t, "150", balance(t, ledger, bob))
	assert.Equal(t, "0", balance(t, ledger, alice), "spender receives nothing")

	left, err := ledger.Allowance(ctx, minter, alice)
	require.NoError(t, err)
	assert.Equal(t, "250", left.String())
}

func TestLedger_TransferFrom_InsufficientAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()
	require.NoError(t, ledger.Approve(ctx, minter, alice, generic.NewAmount(100)))

	err := ledger.TransferFrom(ctx, alice, minter, bob, generic.NewAmount(101))

	var allowErr *generic.InsufficientAllowanceError
	require.ErrorAs(t, err, &allowErr)
	assert.Equal(t, minter, allowErr.Owner)
	assert.Equal(t, alice, allowErr.Spender)
	assert.Equal(t, "1000", balance(t, ledger, minter))
}

func TestLedger_TransferFrom_InsufficientBalanceKeepsAllowance(t *testing.T) {
	// GIVEN: Alice approved bob for more than she holds
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()
	require.NoError(t, ledger.Transfer(ctx, minter, alice, generic.NewAmount(10)))
	require.NoError(t, ledger.Approve(ctx, alice, bob, generic.NewAmount(100)))

	// WHEN: Bob pulls 50
	err := ledger.TransferFrom(ctx, bob, alice, bob, generic.NewAmount(50))

	// THEN: Rejected and the allowance is intact
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	left, _ := ledger.Allowance(ctx, alice, bob)
	assert.Equal(t, "100", left.String())
}

func TestLedger_Approve_RejectsZeroSpender(t *testing.T) {
	ledger, _ := newTestLedger(t, 0)

	err := ledger.Approve(context.Background(), minter, generic.ZeroAddress, generic.NewAmount(1))
	assert.ErrorIs(t, err, generic.ErrInvalidAddress)
}

// =============================================================================
// MINT & BOOTSTRAP
// =============================================================================

func TestLedger_Mint_MinterOnly(t *testing.T) {
	ledger, _ := newTestLedger(t, 0)
	ctx := context.Background()

	err := ledger.Mint(ctx, alice, alice, generic.NewAmount(1))
	var authErr *generic.UnauthorizedError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, alice, authErr.Caller)

	require.NoError(t, ledger.Mint(ctx, minter, bob, generic.NewAmount(5)))
	assert.Equal(t, "5", balance(t, ledger, bob))
}

func TestLedger_Bootstrap_MintsOnce(t *testing.T) {
	ledger, store := newTestLedger(t, 0)
	ctx := context.Background()

	minted, err := ledger.Bootstrap(ctx, generic.NewAmount(1000000), 1000)
	require.NoError(t, err)
	assert.True(t, minted)

	minted, err = ledger.Bootstrap(ctx, generic.NewAmount(1000000), 2000)
	require.NoError(t, err)
	assert.False(t, minted, "second start must not mint again")

	assert.Equal(t, "1000000", balance(t, ledger, minter))

	events, err := store.Events(ctx, generic.EventFilter{Kinds: []generic.EventKind{generic.EventMinted}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, generic.Timestamp(1000), events[0].At)
}

func TestLedger_Bootstrap_ZeroSupply(t *testing.T) {
	ledger, _ := newTestLedger(t, 0)

	minted, err := ledger.Bootstrap(context.Background(), generic.NewAmount(0), 1000)
	require.NoError(t, err)
	assert.False(t, minted)
	assert.Equal(t, "0", balance(t, ledger, minter))
}

// =============================================================================
// BOUND VIEWS
// =============================================================================

func TestLedger_WithStore_JoinsCallerTransaction(t *testing.T) {
	// GIVEN: A transfer made through a bound view
	ledger, store := newTestLedger(t, 1000)
	ctx := context.Background()
	boom := errors.New("later step failed")

	// WHEN: The surrounding transaction fails after the transfer
	err := store.WithTx(ctx, func(s generic.Store) error {
		if err := generic.Bind(ledger, s).Transfer(ctx, minter, alice, generic.NewAmount(600)); err != nil {
			return err
		}
		return boom
	})

	// THEN: The transfer rolled back with it
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "1000", balance(t, ledger, minter))
	assert.Equal(t, "0", balance(t, ledger, alice))
}

func TestLedger_WithoutStore(t *testing.T) {
	ledger := token.NewLedger(nil, "VEST", minter)
	ctx := context.Background()

	_, err := ledger.BalanceOf(ctx, alice)
	assert.ErrorIs(t, err, generic.ErrStoreRequired)

	_, err = ledger.Allowance(ctx, alice, bob)
	assert.ErrorIs(t, err, generic.ErrStoreRequired)

	err = ledger.Transfer(ctx, alice, bob, generic.NewAmount(1))
	assert.ErrorIs(t, err, generic.ErrStoreRequired)
}
