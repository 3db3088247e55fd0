// Package refuel implements the vault at the center of the system: a
// contract that periodically converts pool shares it holds into permanent
// pool liquidity. One refuel pays a fixed fee in shares, withdraws the rest
// proportionally, and deposits the withdrawn coins back as a donation whose
// minted shares nobody can redeem. The round trip only sticks when the
// donated shares clear a configurable efficiency floor; otherwise every
// effect is rolled back.
package refuel

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/model"
	"poolrefuel/internal/ownable"
	"poolrefuel/internal/state"
)

const (
	// FeeBps is the share of every refuel paid to the fee recipient, in
	// basis points of the configured refuel amount.
	FeeBps = 500
	// DefaultThresholdBps is the donation efficiency floor new vaults start
	// with.
	DefaultThresholdBps = 9500

	maxBps = 10000
)

var bpsDivisor = big.NewInt(maxBps)

// Vault holds pool shares and turns them into donated liquidity on demand.
// Vaults are not safe for concurrent use; the engine serializes access.
type Vault struct {
	db   *state.StateDB
	host Host
	addr common.Address

	ownable      *ownable.Ownable
	poolAddr     common.Address
	refuelAmount *big.Int
	thresholdBps uint64
	feeRecipient common.Address
	initialized  bool
}

// NewVault creates a standalone vault owned and fee-collected by owner. It
// comes up initialized, unlike blueprint instances which go through
// Initialize.
func NewVault(db *state.StateDB, addr, owner common.Address, host Host) *Vault {
	v := newVault(db, addr, DefaultThresholdBps, host)
	v.ownable.SetOwner(owner)
	v.feeRecipient = owner
	v.initialized = true
	return v
}

func newVault(db *state.StateDB, addr common.Address, thresholdBps uint64, host Host) *Vault {
	return &Vault{
		db:           db,
		host:         host,
		addr:         addr,
		ownable:      ownable.New(db, common.Address{}),
		refuelAmount: new(big.Int),
		thresholdBps: thresholdBps,
	}
}

// Address returns the vault's own address.
func (v *Vault) Address() common.Address { return v.addr }

// Owner returns the current owner.
func (v *Vault) Owner() common.Address { return v.ownable.Owner() }

// Pool returns the configured pool address, zero when unset.
func (v *Vault) Pool() common.Address { return v.poolAddr }

// RefuelAmount returns the configured per-refuel share amount, zero when
// unset. The result is a copy.
func (v *Vault) RefuelAmount() *big.Int { return new(big.Int).Set(v.refuelAmount) }

// DonationThreshold returns the efficiency floor in basis points.
func (v *Vault) DonationThreshold() uint64 { return v.thresholdBps }

// FeeRecipient returns the address refuel fees are paid to.
func (v *Vault) FeeRecipient() common.Address { return v.feeRecipient }

// Initialized reports whether the one-time initialization has happened.
func (v *Vault) Initialized() bool { return v.initialized }

// Initialize installs the owner and fee recipient of a blueprint-created
// vault. It can happen exactly once per vault.
func (v *Vault) Initialize(owner, feeRecipient common.Address) error {
	if v.initialized {
		return ErrAlreadyInitialized
	}
	if owner == (common.Address{}) {
		return ownable.ErrInvalidOwner
	}
	return v.db.Atomic(func() error {
		v.ownable.SetOwner(owner)
		v.setFeeRecipient(feeRecipient)
		v.setInitialized()
		v.db.Emit(model.Event{
			Address: v.addr.Hex(),
			Name:    model.EventInitialized,
			Data: model.InitializedEventData{
				Owner:        owner.Hex(),
				FeeRecipient: feeRecipient.Hex(),
			},
		})
		return nil
	})
}

// SetPool points the vault at a pool. Owner only; the zero address is
// refused. The refuel amount and threshold carry over unchanged.
func (v *Vault) SetPool(caller, poolAddr common.Address) error {
	if err := v.ownable.RequireOwner(caller); err != nil {
		return err
	}
	if poolAddr == (common.Address{}) {
		return ErrInvalidPool
	}
	return v.db.Atomic(func() error {
		v.setPoolAddr(poolAddr)
		v.db.Emit(model.Event{
			Address: v.addr.Hex(),
			Name:    model.EventPoolSet,
			Data:    model.PoolSetEventData{Pool: poolAddr.Hex()},
		})
		return nil
	})
}

// SetRefuelAmount configures how many shares one refuel consumes. Owner
// only; the amount must be positive.
func (v *Vault) SetRefuelAmount(caller common.Address, amount *big.Int) error {
	if err := v.ownable.RequireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return v.db.Atomic(func() error {
		v.setRefuelAmount(amount)
		v.db.Emit(model.Event{
			Address: v.addr.Hex(),
			Name:    model.EventRefuelAmountSet,
			Data:    model.RefuelAmountSetEventData{Amount: amount.String()},
		})
		return nil
	})
}

// SetDonationThreshold configures the efficiency floor in basis points.
// Owner only; 10000 means the full withdrawn amount must come back as
// donated shares, and zero disables the check.
func (v *Vault) SetDonationThreshold(caller common.Address, thresholdBps uint64) error {
	if err := v.ownable.RequireOwner(caller); err != nil {
		return err
	}
	if thresholdBps > maxBps {
		return ErrThresholdOutOfRange
	}
	return v.db.Atomic(func() error {
		v.setThreshold(thresholdBps)
		v.db.Emit(model.Event{
			Address: v.addr.Hex(),
			Name:    model.EventThresholdSet,
			Data:    model.ThresholdSetEventData{ThresholdBps: thresholdBps},
		})
		return nil
	})
}

// TransferOwnership hands the vault to newOwner. Owner only; the zero
// address is refused.
func (v *Vault) TransferOwnership(caller, newOwner common.Address) error {
	previous := v.ownable.Owner()
	return v.db.Atomic(func() error {
		if err := v.ownable.TransferOwnership(caller, newOwner); err != nil {
			return err
		}
		v.db.Emit(model.Event{
			Address: v.addr.Hex(),
			Name:    model.EventOwnershipTransferred,
			Data: model.OwnershipTransferredEventData{
				PreviousOwner: previous.Hex(),
				NewOwner:      newOwner.Hex(),
			},
		})
		return nil
	})
}

// LPBalance returns the pool shares the vault currently holds. It reads
// zero when no pool is set or the configured address does not resolve.
func (v *Vault) LPBalance() *big.Int {
	if v.poolAddr == (common.Address{}) {
		return new(big.Int)
	}
	p, ok := v.host.Pool(v.poolAddr)
	if !ok {
		return new(big.Int)
	}
	return p.BalanceOf(v.addr)
}

// CalculateDonationShare projects the donation efficiency of refueling with
// the full configured amount at the pool's current reserves: the shares a
// proportional withdrawal would redeposit to, as basis points of the refuel
// amount, capped at 10000. The projection is advisory; the pool is shared,
// so Refuel measures again against actual outcomes.
func (v *Vault) CalculateDonationShare() (uint64, error) {
	if v.poolAddr == (common.Address{}) {
		return 0, ErrPoolNotSet
	}
	if v.refuelAmount.Sign() == 0 {
		return 0, ErrAmountNotSet
	}
	p, ok := v.host.Pool(v.poolAddr)
	if !ok {
		return 0, fmt.Errorf("resolve pool %s: %w", v.poolAddr.Hex(), ErrInvalidPool)
	}
	supply := p.TotalSupply()
	if supply.Sign() == 0 {
		return 0, nil
	}
	reserves := p.Reserves()
	var amounts [2]*big.Int
	for i := range amounts {
		amounts[i] = new(big.Int).Div(new(big.Int).Mul(reserves[i], v.refuelAmount), supply)
	}
	projected := p.CalcTokenAmount(amounts, true)
	share := new(big.Int).Div(new(big.Int).Mul(projected, bpsDivisor), v.refuelAmount)
	if share.Cmp(bpsDivisor) >= 0 {
		return maxBps, nil
	}
	return share.Uint64(), nil
}

// Refuel executes one donation round trip: pay the fee in shares, withdraw
// the remainder proportionally, and deposit the coins back as donated
// liquidity. The whole trip either sticks or rolls back; it rolls back when
// the donated shares fall short of the threshold relative to the shares
// withdrawn. Returns the donated share amount. Owner only.
func (v *Vault) Refuel(caller common.Address) (*big.Int, error) {
	if err := v.ownable.RequireOwner(caller); err != nil {
		return nil, err
	}
	if v.poolAddr == (common.Address{}) {
		return nil, ErrPoolNotSet
	}
	if v.refuelAmount.Sign() == 0 {
		return nil, ErrAmountNotSet
	}
	p, ok := v.host.Pool(v.poolAddr)
	if !ok {
		return nil, fmt.Errorf("resolve pool %s: %w", v.poolAddr.Hex(), ErrInvalidPool)
	}
	if p.BalanceOf(v.addr).Cmp(v.refuelAmount) < 0 {
		return nil, ErrInsufficientShares
	}

	donated := new(big.Int)
	err := v.db.Atomic(func() error {
		fee := new(big.Int).Div(new(big.Int).Mul(v.refuelAmount, big.NewInt(FeeBps)), bpsDivisor)
		if fee.Sign() > 0 {
			if err := p.Transfer(v.addr, v.feeRecipient, fee); err != nil {
				return fmt.Errorf("pay fee: %w", err)
			}
		}
		removed := new(big.Int).Sub(v.refuelAmount, fee)

		amounts, err := p.RemoveLiquidity(v.addr, removed, [2]*big.Int{}, v.addr)
		if err != nil {
			return fmt.Errorf("remove liquidity: %w", err)
		}

		coins := p.Coins()
		for i := range coins {
			tok, ok := v.host.Token(coins[i])
			if !ok {
				return fmt.Errorf("resolve coin %s: %w", coins[i].Hex(), ErrInvalidPool)
			}
			if err := tok.Approve(v.addr, p.Address(), amounts[i]); err != nil {
				return fmt.Errorf("approve coin %d: %w", i, err)
			}
		}

		minted, err := p.AddLiquidity(v.addr, amounts, nil, v.addr, true)
		if err != nil {
			return fmt.Errorf("add liquidity: %w", err)
		}

		share := new(big.Int).Div(new(big.Int).Mul(minted, bpsDivisor), removed)
		if share.Cmp(new(big.Int).SetUint64(v.thresholdBps)) < 0 {
			return fmt.Errorf("donation share %s bps, threshold %d bps: %w", share, v.thresholdBps, ErrThresholdNotMet)
		}

		donated.Set(minted)
		v.db.Emit(model.Event{
			Address: v.addr.Hex(),
			Name:    model.EventRefueled,
			Data: model.RefueledEventData{
				ShareAmount:   v.refuelAmount.String(),
				FeeShares:     fee.String(),
				DonatedShares: minted.String(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return donated, nil
}

// WithdrawLPTokens sends amount of the vault's pool shares to the owner.
// Owner only.
func (v *Vault) WithdrawLPTokens(caller common.Address, amount *big.Int) error {
	if err := v.ownable.RequireOwner(caller); err != nil {
		return err
	}
	if v.poolAddr == (common.Address{}) {
		return ErrPoolNotSet
	}
	p, ok := v.host.Pool(v.poolAddr)
	if !ok {
		return fmt.Errorf("resolve pool %s: %w", v.poolAddr.Hex(), ErrInvalidPool)
	}
	return v.db.Atomic(func() error {
		return p.Transfer(v.addr, v.ownable.Owner(), amount)
	})
}

// WithdrawTokens sends amount of an arbitrary token held by the vault to
// the owner. Owner only.
func (v *Vault) WithdrawTokens(caller, tokenAddr common.Address, amount *big.Int) error {
	if err := v.ownable.RequireOwner(caller); err != nil {
		return err
	}
	tok, ok := v.host.Token(tokenAddr)
	if !ok {
		return fmt.Errorf("resolve token %s: %w", tokenAddr.Hex(), ErrInvalidPool)
	}
	return v.db.Atomic(func() error {
		return tok.Transfer(v.addr, v.ownable.Owner(), amount)
	})
}

func (v *Vault) setPoolAddr(a common.Address) {
	prev := v.poolAddr
	v.db.Append(state.UndoFunc(func() { v.poolAddr = prev }))
	v.poolAddr = a
}

func (v *Vault) setRefuelAmount(amount *big.Int) {
	prev := v.refuelAmount
	v.db.Append(state.UndoFunc(func() { v.refuelAmount = prev }))
	v.refuelAmount = new(big.Int).Set(amount)
}

func (v *Vault) setThreshold(bps uint64) {
	prev := v.thresholdBps
	v.db.Append(state.UndoFunc(func() { v.thresholdBps = prev }))
	v.thresholdBps = bps
}

func (v *Vault) setFeeRecipient(a common.Address) {
	prev := v.feeRecipient
	v.db.Append(state.UndoFunc(func() { v.feeRecipient = prev }))
	v.feeRecipient = a
}

func (v *Vault) setInitialized() {
	prev := v.initialized
	v.db.Append(state.UndoFunc(func() { v.initialized = prev }))
	v.initialized = true
}
