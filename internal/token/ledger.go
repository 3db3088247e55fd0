// Package token provides fungible-token bookkeeping on top of the shared
// journaled state. One Ledger serves one asset address; holders are plain
// addresses, so contracts and externally owned accounts are treated alike.
package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/state"
)

var (
	// ErrInsufficientBalance means the holder owns fewer tokens than the
	// operation needs.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance means the spender's approval does not cover
	// the requested transfer.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrNegativeAmount means a token amount was negative.
	ErrNegativeAmount = errors.New("negative amount")
)

// Ledger exposes the token operations of a single asset.
type Ledger struct {
	db   *state.StateDB
	addr common.Address
}

// NewLedger binds a ledger for the asset at addr.
func NewLedger(db *state.StateDB, addr common.Address) *Ledger {
	return &Ledger{db: db, addr: addr}
}

// Address returns the asset address this ledger serves.
func (l *Ledger) Address() common.Address {
	return l.addr
}

// BalanceOf returns holder's balance.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	return l.db.Balance(l.addr, holder)
}

// TotalSupply returns the minted supply.
func (l *Ledger) TotalSupply() *big.Int {
	return l.db.TotalSupply(l.addr)
}

// Allowance returns what spender may move from owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	return l.db.Allowance(l.addr, owner, spender)
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	amount = normalize(amount)
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if l.db.Balance(l.addr, from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.db.SubBalance(l.addr, from, amount)
	l.db.AddBalance(l.addr, to, amount)
	return nil
}

// Approve lets spender move up to amount from owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	amount = normalize(amount)
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.db.SetAllowance(l.addr, owner, spender, amount)
	return nil
}

// TransferFrom moves amount from one holder to another on behalf of spender,
// consuming spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	amount = normalize(amount)
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	allowed := l.db.Allowance(l.addr, from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.Transfer(from, to, amount); err != nil {
		return err
	}
	l.db.SetAllowance(l.addr, from, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

// Mint creates amount new tokens for holder.
func (l *Ledger) Mint(holder common.Address, amount *big.Int) error {
	amount = normalize(amount)
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.db.AddBalance(l.addr, holder, amount)
	l.db.SetTotalSupply(l.addr, new(big.Int).Add(l.db.TotalSupply(l.addr), amount))
	return nil
}

// Burn destroys amount tokens held by holder.
func (l *Ledger) Burn(holder common.Address, amount *big.Int) error {
	amount = normalize(amount)
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if l.db.Balance(l.addr, holder).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.db.SubBalance(l.addr, holder, amount)
	l.db.SetTotalSupply(l.addr, new(big.Int).Sub(l.db.TotalSupply(l.addr), amount))
	return nil
}

func normalize(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return amount
}
