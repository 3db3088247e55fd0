package refuel

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolrefuel/internal/model"
	"poolrefuel/internal/ownable"
	"poolrefuel/internal/pool"
	"poolrefuel/internal/state"
	"poolrefuel/internal/token"
)

var (
	vaultAddr = common.HexToAddress("0x100")
	poolAddr  = common.HexToAddress("0x200")
	coin0     = common.HexToAddress("0x300")
	coin1     = common.HexToAddress("0x301")
	owner     = common.HexToAddress("0xA1")
	user      = common.HexToAddress("0xB2")
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// testHost resolves pools from a map and treats every address as a token
// ledger, standing in for the engine.
type testHost struct {
	db    *state.StateDB
	pools map[common.Address]Pool
}

func (h *testHost) Pool(addr common.Address) (Pool, bool) {
	p, ok := h.pools[addr]
	return p, ok
}

func (h *testHost) Token(addr common.Address) (Token, bool) {
	return token.NewLedger(h.db, addr), true
}

type fixture struct {
	db    *state.StateDB
	host  *testHost
	pool  *pool.SwapPool
	vault *Vault
}

// newFixture seeds a balanced pool with 100000e18 of each coin and an
// unattributed share supply of 1000e18, plus a standalone vault.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := state.New()
	host := &testHost{db: db, pools: make(map[common.Address]Pool)}

	p := pool.New(db, poolAddr, [2]common.Address{coin0, coin1}, [2]*big.Int{e18(100000), e18(100000)})
	require.NoError(t, token.NewLedger(db, coin0).Mint(poolAddr, e18(100000)))
	require.NoError(t, token.NewLedger(db, coin1).Mint(poolAddr, e18(100000)))
	db.SetTotalSupply(poolAddr, e18(1000))
	host.pools[poolAddr] = p

	return &fixture{
		db:    db,
		host:  host,
		pool:  p,
		vault: NewVault(db, vaultAddr, owner, host),
	}
}

// newRefuelReady configures the fixture's vault for a 10e18 refuel at the
// given threshold and funds it with exactly that many shares.
func newRefuelReady(t *testing.T, thresholdBps uint64) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.vault.SetPool(owner, poolAddr))
	require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
	require.NoError(t, f.vault.SetDonationThreshold(owner, thresholdBps))
	require.NoError(t, f.pool.MintShares(vaultAddr, e18(10)))
	return f
}

func lastEvent(t *testing.T, db *state.StateDB) model.Event {
	t.Helper()
	logs := db.Logs()
	require.NotEmpty(t, logs)
	return logs[len(logs)-1]
}

func TestVaultDefaults(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, owner, f.vault.Owner())
	assert.Equal(t, owner, f.vault.FeeRecipient())
	assert.Equal(t, uint64(DefaultThresholdBps), f.vault.DonationThreshold())
	assert.Equal(t, common.Address{}, f.vault.Pool())
	assert.Zero(t, f.vault.RefuelAmount().Sign())
	assert.True(t, f.vault.Initialized())
}

func TestInitialize(t *testing.T) {
	t.Run("blueprint instance initializes once", func(t *testing.T) {
		f := newFixture(t)
		v := NewBlueprint().NewVault(f.db, common.HexToAddress("0x101"), f.host)
		require.False(t, v.Initialized())

		require.NoError(t, v.Initialize(owner, user))
		assert.True(t, v.Initialized())
		assert.Equal(t, owner, v.Owner())
		assert.Equal(t, user, v.FeeRecipient())

		ev := lastEvent(t, f.db)
		assert.Equal(t, model.EventInitialized, ev.Name)
		assert.Equal(t, model.InitializedEventData{Owner: owner.Hex(), FeeRecipient: user.Hex()}, ev.Data)

		require.ErrorIs(t, v.Initialize(owner, user), ErrAlreadyInitialized)
	})

	t.Run("standalone vault is born initialized", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.Initialize(owner, user), ErrAlreadyInitialized)
	})

	t.Run("zero owner refused", func(t *testing.T) {
		f := newFixture(t)
		v := NewBlueprint().NewVault(f.db, common.HexToAddress("0x101"), f.host)
		require.ErrorIs(t, v.Initialize(common.Address{}, user), ownable.ErrInvalidOwner)
		assert.False(t, v.Initialized())
	})
}

func TestSetPool(t *testing.T) {
	t.Run("owner sets the pool", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		assert.Equal(t, poolAddr, f.vault.Pool())

		ev := lastEvent(t, f.db)
		assert.Equal(t, model.EventPoolSet, ev.Name)
		assert.Equal(t, vaultAddr.Hex(), ev.Address)
		assert.Equal(t, model.PoolSetEventData{Pool: poolAddr.Hex()}, ev.Data)
	})

	t.Run("non-owner refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.SetPool(user, poolAddr), ownable.ErrUnauthorized)
		assert.Equal(t, common.Address{}, f.vault.Pool())
	})

	t.Run("zero address refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.SetPool(owner, common.Address{}), ErrInvalidPool)
	})

	t.Run("rebinding keeps amount and threshold", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
		require.NoError(t, f.vault.SetDonationThreshold(owner, 9000))
		require.NoError(t, f.vault.SetPool(owner, poolAddr))

		assert.Equal(t, e18(10), f.vault.RefuelAmount())
		assert.Equal(t, uint64(9000), f.vault.DonationThreshold())
	})
}

func TestSetRefuelAmount(t *testing.T) {
	t.Run("owner sets a positive amount", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
		assert.Equal(t, e18(10), f.vault.RefuelAmount())

		ev := lastEvent(t, f.db)
		assert.Equal(t, model.EventRefuelAmountSet, ev.Name)
		assert.Equal(t, model.RefuelAmountSetEventData{Amount: e18(10).String()}, ev.Data)
	})

	t.Run("non-owner refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.SetRefuelAmount(user, e18(10)), ownable.ErrUnauthorized)
	})

	t.Run("zero and negative refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.SetRefuelAmount(owner, big.NewInt(0)), ErrInvalidAmount)
		require.ErrorIs(t, f.vault.SetRefuelAmount(owner, big.NewInt(-1)), ErrInvalidAmount)
		require.ErrorIs(t, f.vault.SetRefuelAmount(owner, nil), ErrInvalidAmount)
	})
}

func TestSetDonationThreshold(t *testing.T) {
	t.Run("owner sets the floor", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetDonationThreshold(owner, 9000))
		assert.Equal(t, uint64(9000), f.vault.DonationThreshold())

		ev := lastEvent(t, f.db)
		assert.Equal(t, model.EventThresholdSet, ev.Name)
		assert.Equal(t, model.ThresholdSetEventData{ThresholdBps: 9000}, ev.Data)
	})

	t.Run("bounds are 0 and 10000 inclusive", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetDonationThreshold(owner, 0))
		require.NoError(t, f.vault.SetDonationThreshold(owner, 10000))
		require.ErrorIs(t, f.vault.SetDonationThreshold(owner, 10001), ErrThresholdOutOfRange)
		assert.Equal(t, uint64(10000), f.vault.DonationThreshold())
	})

	t.Run("non-owner refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.SetDonationThreshold(user, 9000), ownable.ErrUnauthorized)
	})
}

func TestVaultTransferOwnership(t *testing.T) {
	t.Run("owner hands over", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.TransferOwnership(owner, user))
		assert.Equal(t, user, f.vault.Owner())

		ev := lastEvent(t, f.db)
		assert.Equal(t, model.EventOwnershipTransferred, ev.Name)
		assert.Equal(t, model.OwnershipTransferredEventData{PreviousOwner: owner.Hex(), NewOwner: user.Hex()}, ev.Data)

		// The old owner is locked out, the new one is in charge.
		require.ErrorIs(t, f.vault.SetDonationThreshold(owner, 9000), ownable.ErrUnauthorized)
		require.NoError(t, f.vault.SetDonationThreshold(user, 9000))
	})

	t.Run("non-owner refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.TransferOwnership(user, user), ownable.ErrUnauthorized)
	})

	t.Run("zero address refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.TransferOwnership(owner, common.Address{}), ownable.ErrInvalidOwner)
		assert.Equal(t, owner, f.vault.Owner())
	})
}

func TestLPBalance(t *testing.T) {
	t.Run("zero without a pool", func(t *testing.T) {
		f := newFixture(t)
		assert.Zero(t, f.vault.LPBalance().Sign())
	})

	t.Run("reads the vault's share balance", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.NoError(t, f.pool.MintShares(vaultAddr, e18(50)))
		assert.Equal(t, e18(50), f.vault.LPBalance())
	})

	t.Run("zero when the pool does not resolve", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, common.HexToAddress("0xDEAD")))
		assert.Zero(t, f.vault.LPBalance().Sign())
	})
}

func TestCalculateDonationShare(t *testing.T) {
	t.Run("needs a pool", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
		_, err := f.vault.CalculateDonationShare()
		require.ErrorIs(t, err, ErrPoolNotSet)
	})

	t.Run("needs an amount", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		_, err := f.vault.CalculateDonationShare()
		require.ErrorIs(t, err, ErrAmountNotSet)
	})

	t.Run("projects the haircut round trip", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))

		share, err := f.vault.CalculateDonationShare()
		require.NoError(t, err)
		// Proportional withdraw and redeposit at 97 in 100, floors included.
		assert.Equal(t, uint64(9699), share)
	})

	t.Run("projection does not move the pool", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))

		first, err := f.vault.CalculateDonationShare()
		require.NoError(t, err)
		second, err := f.vault.CalculateDonationShare()
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, e18(100000), f.pool.Reserves()[0])
		assert.Equal(t, e18(1000), f.pool.TotalSupply())
	})

	t.Run("unresolvable pool errors", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, common.HexToAddress("0xDEAD")))
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
		_, err := f.vault.CalculateDonationShare()
		require.ErrorIs(t, err, ErrInvalidPool)
	})
}

func TestRefuelPreconditions(t *testing.T) {
	t.Run("non-owner refused", func(t *testing.T) {
		f := newRefuelReady(t, 9000)
		_, err := f.vault.Refuel(user)
		require.ErrorIs(t, err, ownable.ErrUnauthorized)
	})

	t.Run("needs a pool", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
		_, err := f.vault.Refuel(owner)
		require.ErrorIs(t, err, ErrPoolNotSet)
	})

	t.Run("needs an amount", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		_, err := f.vault.Refuel(owner)
		require.ErrorIs(t, err, ErrAmountNotSet)
	})

	t.Run("needs enough shares", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.NoError(t, f.vault.SetRefuelAmount(owner, e18(10)))
		_, err := f.vault.Refuel(owner)
		require.ErrorIs(t, err, ErrInsufficientShares)

		// One share short still fails.
		require.NoError(t, f.pool.MintShares(vaultAddr, new(big.Int).Sub(e18(10), big.NewInt(1))))
		_, err = f.vault.Refuel(owner)
		require.ErrorIs(t, err, ErrInsufficientShares)
	})
}

func TestRefuelSuccess(t *testing.T) {
	f := newRefuelReady(t, 9000)

	supplyBefore := f.pool.TotalSupply()
	donated, err := f.vault.Refuel(owner)
	require.NoError(t, err)

	fee := big.NewInt(500000000000000000) // 5% of 10e18, paid in shares
	removed := new(big.Int).Sub(e18(10), fee)

	// The round trip donates the withdrawn amount less the deposit haircut
	// and flooring dust.
	assert.Equal(t, big.NewInt(9214999999999999999), donated)

	// The vault's shares are fully consumed.
	assert.Zero(t, f.vault.LPBalance().Sign())
	// The fee recipient was paid in shares.
	assert.Equal(t, fee, f.pool.BalanceOf(owner))
	// The donated shares sit on the zero address for good.
	assert.Equal(t, donated, f.pool.BalanceOf(common.Address{}))
	// Supply shrank by the burn and grew back by the donation.
	wantSupply := new(big.Int).Add(new(big.Int).Sub(supplyBefore, removed), donated)
	assert.Equal(t, wantSupply, f.pool.TotalSupply())
	// Every withdrawn coin went back in.
	assert.Equal(t, e18(100000), f.pool.Reserves()[0])
	assert.Equal(t, e18(100000), f.pool.Reserves()[1])
	assert.Zero(t, f.db.Balance(coin0, vaultAddr).Sign())
	assert.Zero(t, f.db.Balance(coin1, vaultAddr).Sign())

	ev := lastEvent(t, f.db)
	assert.Equal(t, model.EventRefueled, ev.Name)
	assert.Equal(t, model.RefueledEventData{
		ShareAmount:   e18(10).String(),
		FeeShares:     fee.String(),
		DonatedShares: donated.String(),
	}, ev.Data)
}

func TestRefuelBelowThreshold(t *testing.T) {
	f := newRefuelReady(t, 9900)

	logsBefore := len(f.db.Logs())
	_, err := f.vault.Refuel(owner)
	require.ErrorIs(t, err, ErrThresholdNotMet)

	// Nothing moved: shares, fee, reserves, supply, coins, events.
	assert.Equal(t, e18(10), f.vault.LPBalance())
	assert.Zero(t, f.pool.BalanceOf(owner).Sign())
	assert.Zero(t, f.pool.BalanceOf(common.Address{}).Sign())
	assert.Equal(t, new(big.Int).Add(e18(1000), e18(10)), f.pool.TotalSupply())
	assert.Equal(t, e18(100000), f.pool.Reserves()[0])
	assert.Equal(t, e18(100000), f.pool.Reserves()[1])
	assert.Zero(t, f.db.Balance(coin0, vaultAddr).Sign())
	assert.Len(t, f.db.Logs(), logsBefore)
}

func TestRefuelThresholdBoundary(t *testing.T) {
	// Measure the efficiency of the deterministic scenario first, then pin
	// the threshold exactly on and one notch above it.
	measured := func() uint64 {
		f := newRefuelReady(t, 0)
		donated, err := f.vault.Refuel(owner)
		require.NoError(t, err)
		removed := new(big.Int).Sub(e18(10), big.NewInt(500000000000000000))
		return new(big.Int).Div(new(big.Int).Mul(donated, big.NewInt(10000)), removed).Uint64()
	}()

	t.Run("exactly at the floor passes", func(t *testing.T) {
		f := newRefuelReady(t, measured)
		_, err := f.vault.Refuel(owner)
		require.NoError(t, err)
	})

	t.Run("one notch above fails", func(t *testing.T) {
		f := newRefuelReady(t, measured+1)
		_, err := f.vault.Refuel(owner)
		require.ErrorIs(t, err, ErrThresholdNotMet)
	})
}

// faultyPool wraps a real pool and fails selected operations, to probe that
// a failed refuel leaves no trace.
type faultyPool struct {
	Pool
	failTransfer bool
	failRemove   bool
	failAdd      bool
}

var errInjected = errors.New("injected pool failure")

func (f *faultyPool) Transfer(from, to common.Address, amount *big.Int) error {
	if f.failTransfer {
		return errInjected
	}
	return f.Pool.Transfer(from, to, amount)
}

func (f *faultyPool) RemoveLiquidity(caller common.Address, shares *big.Int, minAmounts [2]*big.Int, receiver common.Address) ([2]*big.Int, error) {
	if f.failRemove {
		return [2]*big.Int{}, errInjected
	}
	return f.Pool.RemoveLiquidity(caller, shares, minAmounts, receiver)
}

func (f *faultyPool) AddLiquidity(caller common.Address, amounts [2]*big.Int, minShares *big.Int, receiver common.Address, donation bool) (*big.Int, error) {
	if f.failAdd {
		return nil, errInjected
	}
	return f.Pool.AddLiquidity(caller, amounts, minShares, receiver, donation)
}

func TestRefuelAtomicity(t *testing.T) {
	cases := []struct {
		name string
		rig  func(fp *faultyPool)
	}{
		{"fee payment fails", func(fp *faultyPool) { fp.failTransfer = true }},
		{"withdrawal fails", func(fp *faultyPool) { fp.failRemove = true }},
		{"deposit fails", func(fp *faultyPool) { fp.failAdd = true }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRefuelReady(t, 9000)
			fp := &faultyPool{Pool: f.pool}
			tc.rig(fp)
			f.host.pools[poolAddr] = fp

			logsBefore := len(f.db.Logs())
			_, err := f.vault.Refuel(owner)
			require.ErrorIs(t, err, errInjected)

			assert.Equal(t, e18(10), f.pool.BalanceOf(vaultAddr))
			assert.Zero(t, f.pool.BalanceOf(owner).Sign())
			assert.Zero(t, f.pool.BalanceOf(common.Address{}).Sign())
			assert.Equal(t, new(big.Int).Add(e18(1000), e18(10)), f.pool.TotalSupply())
			assert.Equal(t, e18(100000), f.pool.Reserves()[0])
			assert.Zero(t, f.db.Balance(coin0, vaultAddr).Sign())
			assert.Zero(t, f.db.Allowance(coin0, vaultAddr, poolAddr).Sign())
			assert.Len(t, f.db.Logs(), logsBefore)
		})
	}
}

func TestWithdrawLPTokens(t *testing.T) {
	t.Run("owner pulls shares out", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.NoError(t, f.pool.MintShares(vaultAddr, e18(50)))

		require.NoError(t, f.vault.WithdrawLPTokens(owner, e18(50)))
		assert.Zero(t, f.vault.LPBalance().Sign())
		assert.Equal(t, e18(50), f.pool.BalanceOf(owner))
	})

	t.Run("non-owner refused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.ErrorIs(t, f.vault.WithdrawLPTokens(user, e18(1)), ownable.ErrUnauthorized)
	})

	t.Run("needs a pool", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.WithdrawLPTokens(owner, e18(1)), ErrPoolNotSet)
	})

	t.Run("overdraft surfaces from the ledger", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vault.SetPool(owner, poolAddr))
		require.ErrorIs(t, f.vault.WithdrawLPTokens(owner, e18(1)), token.ErrInsufficientBalance)
	})
}

func TestWithdrawTokens(t *testing.T) {
	t.Run("owner pulls tokens out", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, token.NewLedger(f.db, coin0).Mint(vaultAddr, e18(100)))

		require.NoError(t, f.vault.WithdrawTokens(owner, coin0, e18(100)))
		assert.Zero(t, f.db.Balance(coin0, vaultAddr).Sign())
		assert.Equal(t, e18(100), f.db.Balance(coin0, owner))
	})

	t.Run("non-owner refused", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.WithdrawTokens(user, coin0, e18(1)), ownable.ErrUnauthorized)
	})

	t.Run("overdraft surfaces from the ledger", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.vault.WithdrawTokens(owner, coin0, e18(1)), token.ErrInsufficientBalance)
	})
}
