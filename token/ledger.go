/*
Package token implements the fungible token ledger the vesting core pays out of.

PURPOSE:
  An ERC-20 style ledger (balances, allowances, transfer, approve,
  transferFrom) persisted through generic.TokenStore. It is the
  collaborator behind generic.TokenLedger; the vesting and allowance
  contracts only ever instruct it.

INVARIANTS:
  1. NO OVERDRAFT: A transfer never leaves a negative balance.
  2. ALLOWANCE: TransferFrom consumes exactly the amount moved.
  3. ATOMIC: Each operation's reads and writes run in one store transaction.

TRANSACTIONS:
  An unbound Ledger opens its own transaction per operation (the store
  must be a generic.TxStore). WithStore returns a bound view that writes
  through a caller's transaction instead; the vesting core uses that so a
  claim and its payout commit together.

MINTING:
  Mint creates supply out of nothing and is restricted to the minter
  account. It exists to bootstrap a fresh deployment.

SEE ALSO:
  - generic/ledger.go: TokenLedger interface
  - vesting/vesting.go: Main consumer
*/
package token

import (
	"context"
	"fmt"

	"github.com/warp/vesting-ledger/generic"
)

// Ledger is a store-backed token ledger.
type Ledger struct {
	symbol string
	minter generic.Address

	txStore generic.TxStore // set on unbound ledgers
	bound   generic.Store   // set on views returned by WithStore
}

// NewLedger creates a ledger for symbol. Only minter may call Mint.
func NewLedger(store generic.TxStore, symbol string, minter generic.Address) *Ledger {
	return &Ledger{symbol: symbol, minter: minter, txStore: store}
}

// WithStore returns a view of the ledger bound to s.
func (l *Ledger) WithStore(s generic.Store) generic.TokenLedger {
	return &Ledger{symbol: l.symbol, minter: l.minter, bound: s}
}

func (l *Ledger) Symbol() string { return l.symbol }

// run executes fn against the bound store, or inside a fresh transaction.
func (l *Ledger) run(ctx context.Context, fn func(generic.Store) error) error {
	if l.bound != nil {
		return fn(l.bound)
	}
	if l.txStore == nil {
		return generic.ErrStoreRequired
	}
	return l.txStore.WithTx(ctx, fn)
}

func (l *Ledger) reader() (generic.Store, error) {
	if l.bound != nil {
		return l.bound, nil
	}
	if l.txStore == nil {
		return nil, generic.ErrStoreRequired
	}
	return l.txStore, nil
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) BalanceOf(ctx context.Context, account generic.Address) (generic.Amount, error) {
	s, err := l.reader()
	if err != nil {
		return generic.Amount{}, err
	}
	return s.GetBalance(ctx, account)
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender generic.Address) (generic.Amount, error) {
	s, err := l.reader()
	if err != nil {
		return generic.Amount{}, err
	}
	return s.GetAllowance(ctx, owner, spender)
}

// =============================================================================
// WRITES
// =============================================================================

func (l *Ledger) Transfer(ctx context.Context, from, to generic.Address, amount generic.Amount) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	return l.run(ctx, func(s generic.Store) error {
		return l.move(ctx, s, from, to, amount)
	})
}

func (l *Ledger) Approve(ctx context.Context, owner, spender generic.Address, amount generic.Amount) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if spender.IsZero() {
		return fmt.Errorf("%w: approve to the zero address", generic.ErrInvalidAddress)
	}
	return l.run(ctx, func(s generic.Store) error {
		return s.SetAllowance(ctx, owner, spender, amount)
	})
}

func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to generic.Address, amount generic.Amount) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	return l.run(ctx, func(s generic.Store) error {
		allowed, err := s.GetAllowance(ctx, from, spender)
		if err != nil {
			return err
		}
		if allowed.LessThan(amount) {
			return &generic.InsufficientAllowanceError{
				Owner:     from,
				Spender:   spender,
				Symbol:    l.symbol,
				Available: allowed,
				Requested: amount,
			}
		}
		if err := l.move(ctx, s, from, to, amount); err != nil {
			return err
		}
		return s.SetAllowance(ctx, from, spender, allowed.Sub(amount))
	})
}

// Mint credits amount to account out of new supply.
func (l *Ledger) Mint(ctx context.Context, caller, to generic.Address, amount generic.Amount) error {
	if caller != l.minter {
		return &generic.UnauthorizedError{Caller: caller, Operation: "mint " + l.symbol}
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("%w: mint to the zero address", generic.ErrInvalidAddress)
	}
	return l.run(ctx, func(s generic.Store) error {
		bal, err := s.GetBalance(ctx, to)
		if err != nil {
			return err
		}
		return s.SetBalance(ctx, to, bal.Add(amount))
	})
}

func (l *Ledger) move(ctx context.Context, s generic.Store, from, to generic.Address, amount generic.Amount) error {
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to the zero address", generic.ErrInvalidAddress)
	}
	fromBal, err := s.GetBalance(ctx, from)
	if err != nil {
		return err
	}
	if fromBal.LessThan(amount) {
		return &generic.InsufficientBalanceError{
			Account:   from,
			Symbol:    l.symbol,
			Available: fromBal,
			Requested: amount,
		}
	}
	if from == to {
		return nil
	}
	if err := s.SetBalance(ctx, from, fromBal.Sub(amount)); err != nil {
		return err
	}
	toBal, err := s.GetBalance(ctx, to)
	if err != nil {
		return err
	}
	return s.SetBalance(ctx, to, toBal.Add(amount))
}

func validateAmount(amount generic.Amount) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", generic.ErrInvalidAmount, amount)
	}
	return nil
}
