package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/generic/store"
)

var (
	alice = generic.MustParseAddress("0x00000000000000000000000000000000000A11cE")
	bob   = generic.MustParseAddress("0x0000000000000000000000000000000000000B0b")
)

func TestMemory_MissingClaimerIsZero(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	c, err := s.GetClaimer(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, c.Address)
	assert.False(t, c.Exists())
}

func TestMemory_MissingStateIsNotFound(t *testing.T) {
	s := store.NewTxMemory()

	_, err := s.GetState(context.Background(), "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestMemory_ListClaimersInRegistrationOrder(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	require.NoError(t, s.SaveClaimer(ctx, generic.Claimer{Address: bob, TotalClaimableAmount: generic.NewAmount(10), CreatedAt: 200}))
	require.NoError(t, s.SaveClaimer(ctx, generic.Claimer{Address: alice, TotalClaimableAmount: generic.NewAmount(10), CreatedAt: 100}))
	// Update must not duplicate
	require.NoError(t, s.SaveClaimer(ctx, generic.Claimer{Address: bob, TotalClaimableAmount: generic.NewAmount(10), ClaimedTimes: 1, CreatedAt: 200}))

	claimers, err := s.ListClaimers(ctx)
	require.NoError(t, err)
	require.Len(t, claimers, 2)
	assert.Equal(t, alice, claimers[0].Address)
	assert.Equal(t, bob, claimers[1].Address)
	assert.Equal(t, uint64(1), claimers[1].ClaimedTimes)
}

func TestMemory_EventsSequencedAndFiltered(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	e1, err := s.AppendEvent(ctx, generic.Event{Kind: generic.EventClaimerAdded, Subject: alice})
	require.NoError(t, err)
	e2, err := s.AppendEvent(ctx, generic.Event{Kind: generic.EventClaimed, Subject: alice})
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, generic.Event{Kind: generic.EventClaimed, Subject: bob})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, uint64(2), e2.Seq)

	events, err := s.Events(ctx, generic.EventFilter{Kinds: []generic.EventKind{generic.EventClaimed}})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.Events(ctx, generic.EventFilter{Subject: &alice, Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, generic.EventClaimerAdded, events[0].Kind)
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.SetBalance(ctx, alice, generic.NewAmount(100)); err != nil {
			return err
		}
		return tx.SetAllowance(ctx, alice, bob, generic.NewAmount(40))
	})
	require.NoError(t, err)

	bal, _ := s.GetBalance(ctx, alice)
	allowed, _ := s.GetAllowance(ctx, alice, bob)
	assert.Equal(t, "100", bal.String())
	assert.Equal(t, "40", allowed.String())
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: Existing state
	s := store.NewTxMemory()
	ctx := context.Background()
	require.NoError(t, s.SetBalance(ctx, alice, generic.NewAmount(100)))
	require.NoError(t, s.SetState(ctx, "k", "before"))

	// WHEN: A transaction writes everywhere and then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx generic.Store) error {
		_ = tx.SetBalance(ctx, alice, generic.NewAmount(0))
		_ = tx.SetBalance(ctx, bob, generic.NewAmount(100))
		_ = tx.SetState(ctx, "k", "after")
		_ = tx.SaveClaimer(ctx, generic.Claimer{Address: bob, TotalClaimableAmount: generic.NewAmount(10)})
		_, _ = tx.AppendEvent(ctx, generic.Event{Kind: generic.EventClaimed})
		return boom
	})

	// THEN: Nothing is visible
	assert.ErrorIs(t, err, boom)

	bal, _ := s.GetBalance(ctx, alice)
	assert.Equal(t, "100", bal.String())
	bal, _ = s.GetBalance(ctx, bob)
	assert.True(t, bal.IsZero())

	v, _ := s.GetState(ctx, "k")
	assert.Equal(t, "before", v)

	claimers, _ := s.ListClaimers(ctx)
	assert.Empty(t, claimers)
	events, _ := s.Events(ctx, generic.EventFilter{})
	assert.Empty(t, events)
}

func TestTxMemory_RollbackOnPanic(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	require.NoError(t, s.SetBalance(ctx, alice, generic.NewAmount(100)))

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx generic.Store) error {
			_ = tx.SetBalance(ctx, alice, generic.NewAmount(0))
			_, _ = tx.AppendEvent(ctx, generic.Event{Kind: generic.EventClaimed})
			panic("boom")
		})
	})

	// The partial writes are gone and the store is usable again
	bal, err := s.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "100", bal.String())
	events, _ := s.Events(ctx, generic.EventFilter{})
	assert.Empty(t, events)

	require.NoError(t, s.WithTx(ctx, func(tx generic.Store) error {
		return tx.SetBalance(ctx, bob, generic.NewAmount(5))
	}))
}

func TestTxMemory_ViewSeesOwnWrites(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.SetState(ctx, "k", "v"))
		got, err := tx.GetState(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
		return nil
	})
	require.NoError(t, err)
}
