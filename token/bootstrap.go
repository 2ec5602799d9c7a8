package token

import (
	"context"
	"errors"

	"github.com/warp/vesting-ledger/generic"
)

const bootstrapKey = "token.bootstrapped"

// Bootstrap mints the initial supply to the minter exactly once per store.
// It reports whether minting happened on this call.
func (l *Ledger) Bootstrap(ctx context.Context, supply generic.Amount, at generic.Timestamp) (bool, error) {
	if l.txStore == nil {
		return false, generic.ErrStoreRequired
	}
	minted := false
	err := l.txStore.WithTx(ctx, func(s generic.Store) error {
		_, err := s.GetState(ctx, bootstrapKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, generic.ErrNotFound) {
			return err
		}
		if supply.IsPositive() {
			if err := l.WithStore(s).(*Ledger).Mint(ctx, l.minter, l.minter, supply); err != nil {
				return err
			}
			if _, err := s.AppendEvent(ctx, generic.Event{
				Kind:    generic.EventMinted,
				Actor:   l.minter,
				Subject: l.minter,
				Amount:  supply,
				At:      at,
			}); err != nil {
				return err
			}
			minted = true
		}
		return s.SetState(ctx, bootstrapKey, supply.String())
	})
	return minted, err
}
