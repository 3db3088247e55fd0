// Package pool simulates a two-coin swap pool of the Curve family: the pool
// contract is its own share token, so share balances and transfers are
// addressed to the pool itself. Withdrawals pay out proportionally; deposit
// quotes carry a fixed haircut standing in for invariant slippage.
package pool

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/state"
	"poolrefuel/internal/token"
)

// ErrSlippage means an output fell below the caller's stated minimum.
var ErrSlippage = errors.New("slippage limit exceeded")

var (
	depositHaircutNum = big.NewInt(97)
	depositHaircutDen = big.NewInt(100)
)

// SwapPool is a two-coin pool bound to an address in the shared state.
// Reserves are pool-internal accounting; the underlying coin balances live
// in their own ledgers under the pool's address.
type SwapPool struct {
	db       *state.StateDB
	addr     common.Address
	coins    [2]*token.Ledger
	reserves [2]*big.Int
	shares   *token.Ledger
}

// New creates a pool at addr over the two coins with the given starting
// reserves. The pool's underlying coin holdings are not funded here; seed
// them separately so reserves and holdings agree.
func New(db *state.StateDB, addr common.Address, coins [2]common.Address, reserves [2]*big.Int) *SwapPool {
	p := &SwapPool{
		db:     db,
		addr:   addr,
		coins:  [2]*token.Ledger{token.NewLedger(db, coins[0]), token.NewLedger(db, coins[1])},
		shares: token.NewLedger(db, addr),
	}
	for i := range reserves {
		if reserves[i] == nil {
			p.reserves[i] = new(big.Int)
			continue
		}
		p.reserves[i] = new(big.Int).Set(reserves[i])
	}
	return p
}

// Address returns the pool's address, which doubles as its share token
// address.
func (p *SwapPool) Address() common.Address {
	return p.addr
}

// Coins returns the two coin addresses in index order.
func (p *SwapPool) Coins() [2]common.Address {
	return [2]common.Address{p.coins[0].Address(), p.coins[1].Address()}
}

// Reserves returns copies of the current reserves in index order.
func (p *SwapPool) Reserves() [2]*big.Int {
	return [2]*big.Int{new(big.Int).Set(p.reserves[0]), new(big.Int).Set(p.reserves[1])}
}

// TotalSupply returns the outstanding share supply.
func (p *SwapPool) TotalSupply() *big.Int {
	return p.shares.TotalSupply()
}

// BalanceOf returns holder's share balance.
func (p *SwapPool) BalanceOf(holder common.Address) *big.Int {
	return p.shares.BalanceOf(holder)
}

// Transfer moves shares between holders.
func (p *SwapPool) Transfer(from, to common.Address, amount *big.Int) error {
	return p.shares.Transfer(from, to, amount)
}

// MintShares creates shares for holder and grows the supply without touching
// reserves, the way pool seeding does.
func (p *SwapPool) MintShares(holder common.Address, amount *big.Int) error {
	return p.shares.Mint(holder, amount)
}

// RemoveLiquidity burns shareAmount of caller's shares and pays receiver the
// proportional amounts of both coins. Each output must meet its entry in
// minAmounts (nil entries mean no minimum). The whole call reverts on any
// failure.
func (p *SwapPool) RemoveLiquidity(caller common.Address, shareAmount *big.Int, minAmounts [2]*big.Int, receiver common.Address) ([2]*big.Int, error) {
	out := [2]*big.Int{new(big.Int), new(big.Int)}
	err := p.db.Atomic(func() error {
		if shareAmount == nil {
			shareAmount = new(big.Int)
		}
		supply := p.shares.TotalSupply()
		if supply.Sign() > 0 {
			for i := range out {
				out[i].Div(new(big.Int).Mul(p.reserves[i], shareAmount), supply)
			}
		}
		for i := range out {
			if minAmounts[i] != nil && out[i].Cmp(minAmounts[i]) < 0 {
				return ErrSlippage
			}
		}
		if err := p.shares.Burn(caller, shareAmount); err != nil {
			return err
		}
		for i := range out {
			p.setReserve(i, new(big.Int).Sub(p.reserves[i], out[i]))
			if err := p.coins[i].Transfer(p.addr, receiver, out[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return [2]*big.Int{new(big.Int), new(big.Int)}, err
	}
	return out, nil
}

// AddLiquidity pulls amounts of both coins from caller (which must have
// approved the pool) and mints the quoted shares. With donation set the
// shares go to the zero address, so the deposit grows the pool for every
// remaining holder and can never be redeemed. Otherwise receiver gets them.
// The mint must meet minShares (nil means no minimum).
func (p *SwapPool) AddLiquidity(caller common.Address, amounts [2]*big.Int, minShares *big.Int, receiver common.Address, donation bool) (*big.Int, error) {
	minted := new(big.Int)
	err := p.db.Atomic(func() error {
		for i := range amounts {
			if amounts[i] == nil {
				amounts[i] = new(big.Int)
			}
			if err := p.coins[i].TransferFrom(p.addr, caller, p.addr, amounts[i]); err != nil {
				return err
			}
		}
		// Quote against pre-deposit reserves, like the pool it models.
		minted.Set(p.CalcTokenAmount(amounts, true))
		if minShares != nil && minted.Cmp(minShares) < 0 {
			return ErrSlippage
		}
		for i := range amounts {
			p.setReserve(i, new(big.Int).Add(p.reserves[i], amounts[i]))
		}
		recipient := receiver
		if donation {
			recipient = common.Address{}
		}
		return p.shares.Mint(recipient, minted)
	})
	if err != nil {
		return new(big.Int), err
	}
	return minted, nil
}

// CalcTokenAmount quotes the shares a deposit of amounts would mint (or a
// withdrawal would need). The quote is the minimum of the per-coin
// proportional figures; deposits keep 97 parts in 100 of it.
func (p *SwapPool) CalcTokenAmount(amounts [2]*big.Int, deposit bool) *big.Int {
	supply := p.shares.TotalSupply()
	if supply.Sign() == 0 {
		return new(big.Int)
	}
	quotes := [2]*big.Int{new(big.Int), new(big.Int)}
	for i := range quotes {
		if amounts[i] == nil {
			continue
		}
		if p.reserves[i].Sign() > 0 {
			quotes[i].Div(new(big.Int).Mul(amounts[i], supply), p.reserves[i])
		}
	}
	quote := quotes[0]
	if quotes[1].Cmp(quote) < 0 {
		quote = quotes[1]
	}
	if deposit {
		return quote.Div(quote.Mul(quote, depositHaircutNum), depositHaircutDen)
	}
	return new(big.Int).Set(quote)
}

func (p *SwapPool) setReserve(i int, v *big.Int) {
	prev := p.reserves[i]
	p.db.Append(state.UndoFunc(func() { p.reserves[i] = prev }))
	p.reserves[i] = v
}
