/*
Package allowance implements the claim-allowance contract.

PURPOSE:
  A simpler sibling of the vesting schedule built on the same token
  ledger. The owner approves this contract to spend up to some amount of
  the owner's tokens; any caller may then pull tokens, up to what is left
  of that allowance, with Claim(amount).

  There is no per-caller bookkeeping: the token ledger's allowance from
  owner to contract is the only state, and every claim consumes it.

EXAMPLE:
  c, _ := allowance.New(allowance.Config{Owner: owner, Account: contractAddr, Token: ledger, Store: store})
  _ = c.Approve(ctx, owner, generic.NewAmount(500))
  _ = c.Claim(ctx, alice, generic.NewAmount(200)) // alice +200, allowance 300
  err := c.Claim(ctx, bob, generic.NewAmount(400)) // ExceedsAllowanceError

SEE ALSO:
  - vesting/: The scheduled release contract
  - token/ledger.go: Allowance storage and TransferFrom
*/
package allowance

import (
	"context"
	"errors"
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/warp/vesting-ledger/generic"
)

var (
	ErrExceedsAllowance = errors.New("amount exceeds allowance")
	ErrTransferFailed   = errors.New("token transfer failed")
)

type ExceedsAllowanceError struct {
	Requested generic.Amount
	Allowance generic.Amount
	Symbol    string
}

func (e *ExceedsAllowanceError) Error() string {
	return fmt.Sprintf("amount %s %s exceeds allowance %s", e.Requested, e.Symbol, e.Allowance)
}

func (e *ExceedsAllowanceError) Unwrap() error { return ErrExceedsAllowance }

type TransferFailedError struct {
	To     generic.Address
	Amount generic.Amount
	Err    error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("failed to transfer %s to %s: %v", e.Amount, e.To, e.Err)
}

func (e *TransferFailedError) Unwrap() []error { return []error{ErrTransferFailed, e.Err} }

// Config wires a Contract.
type Config struct {
	Owner   generic.Address // account whose tokens are claimed
	Account generic.Address // the contract's own address, the approved spender
	Token   generic.TokenLedger
	Store   generic.TxStore
	Clock   generic.Clock
	Logger  *logrus.Logger
}

type Contract struct {
	mu      *deadlock.Mutex
	owner   generic.Address
	account generic.Address
	token   generic.TokenLedger
	store   generic.TxStore
	clock   generic.Clock
	log     *logrus.Logger
}

func New(cfg Config) (*Contract, error) {
	if cfg.Owner.IsZero() || cfg.Account.IsZero() {
		return nil, fmt.Errorf("%w: owner and account are required", generic.ErrInvalidAddress)
	}
	if cfg.Token == nil || cfg.Store == nil {
		return nil, generic.ErrStoreRequired
	}
	if cfg.Clock == nil {
		cfg.Clock = generic.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Contract{
		mu:      &deadlock.Mutex{},
		owner:   cfg.Owner,
		account: cfg.Account,
		token:   cfg.Token,
		store:   cfg.Store,
		clock:   cfg.Clock,
		log:     cfg.Logger,
	}, nil
}

func (c *Contract) Owner() generic.Address   { return c.owner }
func (c *Contract) Account() generic.Address { return c.account }

// Allowance is what callers may still claim in total.
func (c *Contract) Allowance(ctx context.Context) (generic.Amount, error) {
	return c.token.Allowance(ctx, c.owner, c.account)
}

// Approve sets the claimable allowance. Owner only.
func (c *Contract) Approve(ctx context.Context, caller generic.Address, amount generic.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return &generic.UnauthorizedError{Caller: caller, Operation: "approve allowance"}
	}

	now := c.clock.Now()
	err := c.store.WithTx(ctx, func(s generic.Store) error {
		if err := generic.Bind(c.token, s).Approve(ctx, c.owner, c.account, amount); err != nil {
			return err
		}
		_, err := s.AppendEvent(ctx, generic.Event{
			Kind:    generic.EventAllowanceApproved,
			Actor:   caller,
			Subject: c.account,
			Amount:  amount,
			At:      now,
		})
		return err
	})
	if err != nil {
		return err
	}

	c.log.WithField("amount", amount.String()).Info("allowance approved")
	return nil
}

// Claim moves amount from the owner to caller if the allowance covers it.
func (c *Contract) Claim(ctx context.Context, caller generic.Address, amount generic.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !amount.IsPositive() {
		return fmt.Errorf("%w: claim amount must be positive", generic.ErrInvalidAmount)
	}

	now := c.clock.Now()
	err := c.store.WithTx(ctx, func(s generic.Store) error {
		token := generic.Bind(c.token, s)
		current, err := token.Allowance(ctx, c.owner, c.account)
		if err != nil {
			return err
		}
		if amount.GreaterThan(current) {
			return &ExceedsAllowanceError{Requested: amount, Allowance: current, Symbol: token.Symbol()}
		}
		if err := token.TransferFrom(ctx, c.account, c.owner, caller, amount); err != nil {
			return &TransferFailedError{To: caller, Amount: amount, Err: err}
		}
		_, err = s.AppendEvent(ctx, generic.Event{
			Kind:    generic.EventAllowanceClaimed,
			Actor:   caller,
			Subject: caller,
			Amount:  amount,
			At:      now,
		})
		return err
	})
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"caller": caller.Hex(),
		"amount": amount.String(),
	}).Info("allowance claimed")
	return nil
}
