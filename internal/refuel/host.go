package refuel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ShareToken is the transferable-balance surface shared by pools and plain
// tokens.
type ShareToken interface {
	BalanceOf(holder common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// Token adds the approval surface of a fungible token.
type Token interface {
	ShareToken
	Approve(owner, spender common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// Pool is the liquidity pool surface a vault drives. The pool is its own
// share token, so ShareToken calls address the pool's shares.
type Pool interface {
	ShareToken
	Address() common.Address
	Coins() [2]common.Address
	Reserves() [2]*big.Int
	TotalSupply() *big.Int
	RemoveLiquidity(caller common.Address, shares *big.Int, minAmounts [2]*big.Int, receiver common.Address) ([2]*big.Int, error)
	AddLiquidity(caller common.Address, amounts [2]*big.Int, minShares *big.Int, receiver common.Address, donation bool) (*big.Int, error)
	CalcTokenAmount(amounts [2]*big.Int, deposit bool) *big.Int
}

// Host resolves the addresses a vault is configured with to live contracts.
type Host interface {
	Pool(addr common.Address) (Pool, bool)
	Token(addr common.Address) (Token, bool)
}
