/*
ledger.go - The token ledger collaborator

PURPOSE:
  The vesting core never holds token balances. It keeps its own
  bookkeeping (how much each claimer may still take) and instructs a
  fungible-token ledger to move tokens. TokenLedger is that ledger.

CONTRACT:
  1. ATOMIC: A transfer either fully applies or returns an error.
  2. SIGNALLING: Failure is always an error, never a silent no-op.
  3. NO OVERDRAFT: Balances and allowances never go negative.

TRANSACTIONS:
  A ledger that persists through a Store can implement StoreBinder. The
  vesting core then binds it to the transaction-scoped store handed out
  by TxStore.WithTx, so a claim's bookkeeping and its transfer commit or
  roll back together.

SEE ALSO:
  - token/ledger.go: Store-backed implementation
  - vesting/vesting.go: Calls Transfer/TransferFrom
*/
package generic

import "context"

// TokenLedger is an ERC-20 style fungible token ledger.
type TokenLedger interface {
	// Symbol is the ticker used in error messages.
	Symbol() string

	BalanceOf(ctx context.Context, account Address) (Amount, error)
	Allowance(ctx context.Context, owner, spender Address) (Amount, error)

	// Transfer moves amount from one account to another.
	Transfer(ctx context.Context, from, to Address, amount Amount) error

	// Approve sets the amount spender may move out of owner's account.
	Approve(ctx context.Context, owner, spender Address, amount Amount) error

	// TransferFrom moves amount out of from's account on spender's authority,
	// consuming the allowance from -> spender.
	TransferFrom(ctx context.Context, spender, from, to Address, amount Amount) error
}

// StoreBinder is implemented by ledgers that persist through a Store.
type StoreBinder interface {
	// WithStore returns a view of the ledger that reads and writes through s.
	WithStore(s Store) TokenLedger
}

// Bind returns ledger bound to s when it supports binding, or ledger itself.
func Bind(ledger TokenLedger, s Store) TokenLedger {
	if b, ok := ledger.(StoreBinder); ok {
		return b.WithStore(s)
	}
	return ledger
}
