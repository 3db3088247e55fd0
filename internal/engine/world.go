// Package engine hosts the contract world: one journaled state with
// addresses bound to tokens, pools, vaults, factories, and blueprints. The
// World serializes every public operation under a single mutex; the
// contract types themselves stay single-threaded.
package engine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"poolrefuel/internal/model"
	"poolrefuel/internal/pool"
	"poolrefuel/internal/refuel"
	"poolrefuel/internal/registry"
	"poolrefuel/internal/state"
	"poolrefuel/internal/token"
)

var (
	// ErrUnknownVault means no vault is bound at the address.
	ErrUnknownVault = errors.New("unknown vault address")
	// ErrUnknownFactory means no factory is bound at the address.
	ErrUnknownFactory = errors.New("unknown factory address")
	// ErrUnknownBlueprint means no blueprint is bound at the address.
	ErrUnknownBlueprint = errors.New("unknown blueprint address")
	// ErrAddressOccupied means something is already bound at the address.
	ErrAddressOccupied = errors.New("address already occupied")
)

// World is the concurrency-safe surface of the system.
type World struct {
	mu     sync.Mutex
	db     *state.StateDB
	host   *hostView
	logger *zap.Logger

	pools      map[common.Address]*pool.SwapPool
	vaults     map[common.Address]*refuel.Vault
	factories  map[common.Address]*registry.Factory
	blueprints map[common.Address]*refuel.Blueprint
}

// NewWorld returns an empty world. A nil logger disables logging.
func NewWorld(logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &World{
		db:         state.New(),
		logger:     logger,
		pools:      make(map[common.Address]*pool.SwapPool),
		vaults:     make(map[common.Address]*refuel.Vault),
		factories:  make(map[common.Address]*registry.Factory),
		blueprints: make(map[common.Address]*refuel.Blueprint),
	}
	w.host = &hostView{w: w}
	return w
}

// Mint credits holder with amount of asset. Minting to a pool address mints
// pool shares, since a pool is its own share token.
func (w *World) Mint(asset, holder common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db.Atomic(func() error {
		return token.NewLedger(w.db, asset).Mint(holder, amount)
	})
}

// BalanceOf returns holder's balance of asset.
func (w *World) BalanceOf(asset, holder common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db.Balance(asset, holder)
}

// SetNonce seeds an account's nonce so contract addresses created from it
// line up with an external chain's view of the account.
func (w *World) SetNonce(account common.Address, nonce uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.db.SetNonce(account, nonce)
}

// CreatePool binds a pool at addr over two coins, funds its coin holdings
// to match the starting reserves, and seeds the unattributed share supply.
func (w *World) CreatePool(addr common.Address, coins [2]common.Address, reserves [2]*big.Int, shareSupply *big.Int) (*pool.SwapPool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var p *pool.SwapPool
	err := w.db.Atomic(func() error {
		if w.occupied(addr) {
			return fmt.Errorf("pool at %s: %w", addr.Hex(), ErrAddressOccupied)
		}
		p = pool.New(w.db, addr, coins, reserves)
		for i := range coins {
			if err := token.NewLedger(w.db, coins[i]).Mint(addr, reserves[i]); err != nil {
				return fmt.Errorf("fund pool coin %d: %w", i, err)
			}
		}
		if shareSupply != nil {
			w.db.SetTotalSupply(addr, shareSupply)
		}
		w.bindPool(addr, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.logger.Info("pool created",
		zap.String("address", addr.Hex()),
		zap.String("coin0", coins[0].Hex()),
		zap.String("coin1", coins[1].Hex()))
	return p, nil
}

// PublishBlueprint binds a vault blueprint at the creator's next contract
// address and returns that address.
func (w *World) PublishBlueprint(creator common.Address, bp *refuel.Blueprint) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if bp == nil {
		return common.Address{}, registry.ErrNilBlueprint
	}
	var addr common.Address
	err := w.db.Atomic(func() error {
		addr = w.host.CreateAddress(creator)
		if w.occupied(addr) {
			return fmt.Errorf("blueprint at %s: %w", addr.Hex(), ErrAddressOccupied)
		}
		w.bindBlueprint(addr, bp)
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	w.logger.Info("blueprint published", zap.String("address", addr.Hex()))
	return addr, nil
}

// PublishFactory binds a factory at the creator's next contract address,
// stamping from the blueprint bound at blueprintAddr.
func (w *World) PublishFactory(creator, owner, blueprintAddr common.Address) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bp, ok := w.blueprints[blueprintAddr]
	if !ok {
		return common.Address{}, fmt.Errorf("blueprint %s: %w", blueprintAddr.Hex(), ErrUnknownBlueprint)
	}
	var addr common.Address
	err := w.db.Atomic(func() error {
		addr = w.host.CreateAddress(creator)
		if w.occupied(addr) {
			return fmt.Errorf("factory at %s: %w", addr.Hex(), ErrAddressOccupied)
		}
		f, err := registry.New(w.db, addr, owner, bp, w.host)
		if err != nil {
			return err
		}
		w.bindFactory(addr, f)
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	w.logger.Info("factory published",
		zap.String("address", addr.Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("blueprint", blueprintAddr.Hex()))
	return addr, nil
}

// PublishVault binds a standalone vault at the creator's next contract
// address. It comes up initialized with owner as both owner and fee
// recipient.
func (w *World) PublishVault(creator, owner common.Address) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var addr common.Address
	err := w.db.Atomic(func() error {
		addr = w.host.CreateAddress(creator)
		v := refuel.NewVault(w.db, addr, owner, w.host)
		return w.host.BindVault(addr, v)
	})
	if err != nil {
		return common.Address{}, err
	}
	w.logger.Info("vault published",
		zap.String("address", addr.Hex()),
		zap.String("owner", owner.Hex()))
	return addr, nil
}

// Vault returns the vault bound at addr.
func (w *World) Vault(addr common.Address) (*refuel.Vault, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[addr]
	return v, ok
}

// Factory returns the factory bound at addr.
func (w *World) Factory(addr common.Address) (*registry.Factory, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[addr]
	return f, ok
}

// Pool returns the pool bound at addr.
func (w *World) Pool(addr common.Address) (*pool.SwapPool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pools[addr]
	return p, ok
}

// Logs returns a copy of the world event log in emission order.
func (w *World) Logs() []model.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db.Logs()
}

// SetPool points the vault at a pool.
func (w *World) SetPool(vault, caller, poolAddr common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return ErrUnknownVault
	}
	return v.SetPool(caller, poolAddr)
}

// SetRefuelAmount configures the vault's per-refuel share amount.
func (w *World) SetRefuelAmount(vault, caller common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return ErrUnknownVault
	}
	return v.SetRefuelAmount(caller, amount)
}

// SetDonationThreshold configures the vault's efficiency floor.
func (w *World) SetDonationThreshold(vault, caller common.Address, thresholdBps uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return ErrUnknownVault
	}
	return v.SetDonationThreshold(caller, thresholdBps)
}

// LPBalance returns the vault's pool share balance.
func (w *World) LPBalance(vault common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return nil, ErrUnknownVault
	}
	return v.LPBalance(), nil
}

// CalculateDonationShare projects the vault's donation efficiency in basis
// points.
func (w *World) CalculateDonationShare(vault common.Address) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return 0, ErrUnknownVault
	}
	return v.CalculateDonationShare()
}

// Refuel runs one donation round trip on the vault and returns the donated
// share amount.
func (w *World) Refuel(vault, caller common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return nil, ErrUnknownVault
	}
	donated, err := v.Refuel(caller)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("refueled",
		zap.String("vault", vault.Hex()),
		zap.String("donated", donated.String()))
	return donated, nil
}

// WithdrawLPTokens sends vault shares to the vault owner.
func (w *World) WithdrawLPTokens(vault, caller common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return ErrUnknownVault
	}
	return v.WithdrawLPTokens(caller, amount)
}

// WithdrawTokens sends arbitrary tokens held by the vault to its owner.
func (w *World) WithdrawTokens(vault, caller, asset common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.vaults[vault]
	if !ok {
		return ErrUnknownVault
	}
	return v.WithdrawTokens(caller, asset, amount)
}

// Deploy stamps a new vault from the factory bound at factoryAddr.
func (w *World) Deploy(factoryAddr, owner, feeRecipient common.Address) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return common.Address{}, ErrUnknownFactory
	}
	addr, err := f.Deploy(owner, feeRecipient)
	if err != nil {
		return common.Address{}, err
	}
	w.logger.Info("vault deployed",
		zap.String("factory", factoryAddr.Hex()),
		zap.String("vault", addr.Hex()),
		zap.String("owner", owner.Hex()))
	return addr, nil
}

// DeploySimple stamps a new vault whose fees go to the factory.
func (w *World) DeploySimple(factoryAddr, owner common.Address) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return common.Address{}, ErrUnknownFactory
	}
	addr, err := f.DeploySimple(owner)
	if err != nil {
		return common.Address{}, err
	}
	w.logger.Info("vault deployed",
		zap.String("factory", factoryAddr.Hex()),
		zap.String("vault", addr.Hex()),
		zap.String("owner", owner.Hex()))
	return addr, nil
}

// DeploymentCount returns how many vaults the factory has stamped.
func (w *World) DeploymentCount(factoryAddr common.Address) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return 0, ErrUnknownFactory
	}
	return f.DeploymentCount(), nil
}

// Deployment returns the i-th vault the factory stamped.
func (w *World) Deployment(factoryAddr common.Address, i int) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return common.Address{}, ErrUnknownFactory
	}
	return f.Deployment(i)
}

// UpdateBlueprint swaps the factory's template for future deployments.
func (w *World) UpdateBlueprint(factoryAddr, caller common.Address, bp *refuel.Blueprint) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return ErrUnknownFactory
	}
	return f.UpdateBlueprint(caller, bp)
}

// FeeBalance returns the fees the factory has accumulated in asset.
func (w *World) FeeBalance(factoryAddr, asset common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return nil, ErrUnknownFactory
	}
	return f.FeeBalance(asset), nil
}

// WithdrawFees sends part of the factory's asset fees to recipient.
func (w *World) WithdrawFees(factoryAddr, caller, asset, recipient common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return ErrUnknownFactory
	}
	return f.WithdrawFees(caller, asset, recipient, amount)
}

// WithdrawAllFees sweeps the factory's asset fees to recipient.
func (w *World) WithdrawAllFees(factoryAddr, caller, asset, recipient common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.factories[factoryAddr]
	if !ok {
		return ErrUnknownFactory
	}
	return f.WithdrawAllFees(caller, asset, recipient)
}

// TransferOwnership hands the vault or factory at addr to newOwner.
func (w *World) TransferOwnership(addr, caller, newOwner common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.vaults[addr]; ok {
		return v.TransferOwnership(caller, newOwner)
	}
	if f, ok := w.factories[addr]; ok {
		return f.TransferOwnership(caller, newOwner)
	}
	return ErrUnknownVault
}

func (w *World) occupied(addr common.Address) bool {
	if _, ok := w.pools[addr]; ok {
		return true
	}
	if _, ok := w.vaults[addr]; ok {
		return true
	}
	if _, ok := w.factories[addr]; ok {
		return true
	}
	_, ok := w.blueprints[addr]
	return ok
}

func (w *World) bindPool(addr common.Address, p *pool.SwapPool) {
	w.db.Append(state.UndoFunc(func() { delete(w.pools, addr) }))
	w.pools[addr] = p
}

func (w *World) bindFactory(addr common.Address, f *registry.Factory) {
	w.db.Append(state.UndoFunc(func() { delete(w.factories, addr) }))
	w.factories[addr] = f
}

func (w *World) bindBlueprint(addr common.Address, bp *refuel.Blueprint) {
	w.db.Append(state.UndoFunc(func() { delete(w.blueprints, addr) }))
	w.blueprints[addr] = bp
}

// hostView is the contract-facing surface of the world. Its methods run
// inside world operations with the lock already held, so they do not lock.
type hostView struct {
	w *World
}

func (h *hostView) Pool(addr common.Address) (refuel.Pool, bool) {
	p, ok := h.w.pools[addr]
	if !ok {
		return nil, false
	}
	return p, true
}

func (h *hostView) Token(addr common.Address) (refuel.Token, bool) {
	return token.NewLedger(h.w.db, addr), true
}

func (h *hostView) Asset(addr common.Address) refuel.ShareToken {
	if p, ok := h.w.pools[addr]; ok {
		return p
	}
	return token.NewLedger(h.w.db, addr)
}

// CreateAddress allocates the next contract address for creator from its
// journaled nonce.
func (h *hostView) CreateAddress(creator common.Address) common.Address {
	nonce := h.w.db.Nonce(creator)
	h.w.db.SetNonce(creator, nonce+1)
	return crypto.CreateAddress(creator, nonce)
}

func (h *hostView) BindVault(addr common.Address, v *refuel.Vault) error {
	if h.w.occupied(addr) {
		return fmt.Errorf("vault at %s: %w", addr.Hex(), ErrAddressOccupied)
	}
	h.w.db.Append(state.UndoFunc(func() { delete(h.w.vaults, addr) }))
	h.w.vaults[addr] = v
	return nil
}
