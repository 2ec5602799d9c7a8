package allowance_test

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vesting-ledger/allowance"
	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/store/sqlite"
	"github.com/warp/vesting-ledger/token"
)

var (
	owner    = generic.MustParseAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	contract = generic.MustParseAddress("0x000000000000000000000000000000000000bEEF")
	alice    = generic.MustParseAddress("0x00000000000000000000000000000000000A11cE")
	bob      = generic.MustParseAddress("0x0000000000000000000000000000000000000B0b")
)

func newTestContract(t *testing.T, ownerBalance int64) (*allowance.Contract, *token.Ledger, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := token.NewLedger(store, "VEST", owner)
	if ownerBalance > 0 {
		require.NoError(t, ledger.Mint(context.Background(), owner, owner, generic.NewAmount(ownerBalance)))
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := allowance.New(allowance.Config{
		Owner:   owner,
		Account: contract,
		Token:   ledger,
		Store:   store,
		Clock:   generic.NewManualClock(1700000000),
		Logger:  log,
	})
	require.NoError(t, err)
	return c, ledger, store
}

func balanceOf(t *testing.T, l *token.Ledger, addr generic.Address) string {
	t.Helper()
	bal, err := l.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return bal.String()
}

func TestContract_ApproveThenClaim(t *testing.T) {
	// GIVEN: The owner approved 500
	c, ledger, store := newTestContract(t, 1000)
	ctx := context.Background()
	require.NoError(t, c.Approve(ctx, owner, generic.NewAmount(500)))

	// WHEN: Alice claims 200 and bob claims 300
	require.NoError(t, c.Claim(ctx, alice, generic.NewAmount(200)))
	require.NoError(t, c.Claim(ctx, bob, generic.NewAmount(300)))

	// THEN: Tokens left the owner's account and the allowance is used up
	assert.Equal(t, "200", balanceOf(t, ledger, alice))
	assert.Equal(t, "300", balanceOf(t, ledger, bob))
	assert.Equal(t, "500", balanceOf(t, ledger, owner))
	assert.Equal(t, "0", balanceOf(t, ledger, contract))

	left, err := c.Allowance(ctx)
	require.NoError(t, err)
	assert.True(t, left.IsZero())

	events, err := store.Events(ctx, generic.EventFilter{Kinds: []generic.EventKind{generic.EventAllowanceClaimed}})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestContract_Claim_ExceedsAllowance(t *testing.T) {
	c, ledger, _ := newTestContract(t, 1000)
	ctx := context.Background()
	require.NoError(t, c.Approve(ctx, owner, generic.NewAmount(100)))

	err := c.Claim(ctx, alice, generic.NewAmount(101))

	var exErr *allowance.ExceedsAllowanceError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "100", exErr.Allowance.String())
	assert.Equal(t, "101", exErr.Requested.String())
	assert.Equal(t, "VEST", exErr.Symbol)
	assert.Equal(t, "0", balanceOf(t, ledger, alice))
}

func TestContract_Claim_OwnerCannotCover(t *testing.T) {
	// GIVEN: An allowance larger than the owner's balance
	c, ledger, _ := newTestContract(t, 50)
	ctx := context.Background()
	require.NoError(t, c.Approve(ctx, owner, generic.NewAmount(100)))

	// WHEN: Claiming within the allowance but beyond the balance
	err := c.Claim(ctx, alice, generic.NewAmount(80))

	// THEN: The ledger rejects it and the allowance is untouched
	assert.ErrorIs(t, err, allowance.ErrTransferFailed)
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)

	left, _ := c.Allowance(ctx)
	assert.Equal(t, "100", left.String())
	assert.Equal(t, "50", balanceOf(t, ledger, owner))
}

func TestContract_Approve_OwnerOnly(t *testing.T) {
	c, _, store := newTestContract(t, 1000)
	ctx := context.Background()

	err := c.Approve(ctx, alice, generic.NewAmount(100))
	assert.ErrorIs(t, err, generic.ErrNotAuthorized)

	left, _ := c.Allowance(ctx)
	assert.True(t, left.IsZero())
	events, _ := store.Events(ctx, generic.EventFilter{})
	assert.Empty(t, events)
}

func TestContract_Approve_Overwrites(t *testing.T) {
	c, _, _ := newTestContract(t, 1000)
	ctx := context.Background()

	require.NoError(t, c.Approve(ctx, owner, generic.NewAmount(100)))
	require.NoError(t, c.Approve(ctx, owner, generic.NewAmount(40)))

	left, _ := c.Allowance(ctx)
	assert.Equal(t, "40", left.String())
}

func TestContract_Claim_RejectsNonPositive(t *testing.T) {
	c, _, _ := newTestContract(t, 1000)
	require.NoError(t, c.Approve(context.Background(), owner, generic.NewAmount(100)))

	err := c.Claim(context.Background(), alice, generic.NewAmount(0))
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
}

func TestNew_RequiresAddresses(t *testing.T) {
	_, err := allowance.New(allowance.Config{Owner: owner})
	assert.ErrorIs(t, err, generic.ErrInvalidAddress)
}
