// Package registry implements the factory that stamps refuel vaults from a
// blueprint and keeps the central books: an append-only deployment ledger
// and the fee balances vaults pay in pool shares.
package registry

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/model"
	"poolrefuel/internal/ownable"
	"poolrefuel/internal/refuel"
	"poolrefuel/internal/state"
)

var (
	// ErrIndexOutOfRange means the deployment ledger has no such entry.
	ErrIndexOutOfRange = errors.New("deployment index out of range")
	// ErrNilBlueprint means the factory needs a blueprint to stamp from.
	ErrNilBlueprint = errors.New("nil blueprint")
)

// Host is the platform surface the factory drives: resolution for the
// vaults it stamps, deterministic address allocation, and asset lookups for
// fee bookkeeping.
type Host interface {
	refuel.Host
	// CreateAddress allocates the next contract address for creator.
	// Allocation is journaled with everything else, so a rolled-back
	// creation frees its address again.
	CreateAddress(creator common.Address) common.Address
	// BindVault registers a stamped vault at addr.
	BindVault(addr common.Address, v *refuel.Vault) error
	// Asset resolves addr to a transferable balance: the pool bound there,
	// or the plain token ledger otherwise.
	Asset(addr common.Address) refuel.ShareToken
}

// Factory stamps vaults and collects their fees. Factories are not safe for
// concurrent use; the engine serializes access.
type Factory struct {
	db   *state.StateDB
	host Host
	addr common.Address

	ownable     *ownable.Ownable
	blueprint   *refuel.Blueprint
	deployments []common.Address
}

// New creates a factory owned by owner, stamping vaults from blueprint.
func New(db *state.StateDB, addr, owner common.Address, blueprint *refuel.Blueprint, host Host) (*Factory, error) {
	if blueprint == nil {
		return nil, ErrNilBlueprint
	}
	return &Factory{
		db:        db,
		host:      host,
		addr:      addr,
		ownable:   ownable.New(db, owner),
		blueprint: blueprint,
	}, nil
}

// Address returns the factory's own address.
func (f *Factory) Address() common.Address { return f.addr }

// Owner returns the current owner.
func (f *Factory) Owner() common.Address { return f.ownable.Owner() }

// Blueprint returns the template future deployments are stamped from.
func (f *Factory) Blueprint() *refuel.Blueprint { return f.blueprint }

// Deploy stamps a new vault owned by owner that pays its fees to
// feeRecipient. Anyone may deploy. Exactly one ledger entry appears per
// successful call; a failed creation leaves the ledger, the allocated
// address, and the world untouched.
func (f *Factory) Deploy(owner, feeRecipient common.Address) (common.Address, error) {
	var addr common.Address
	err := f.db.Atomic(func() error {
		addr = f.host.CreateAddress(f.addr)
		v := f.blueprint.NewVault(f.db, addr, f.host)
		if err := f.host.BindVault(addr, v); err != nil {
			return fmt.Errorf("bind vault: %w", err)
		}
		if err := v.Initialize(owner, feeRecipient); err != nil {
			return err
		}
		f.appendDeployment(addr)
		f.db.Emit(model.Event{
			Address: f.addr.Hex(),
			Name:    model.EventRefuelDeployed,
			Data: model.RefuelDeployedEventData{
				Instance:     addr.Hex(),
				Owner:        owner.Hex(),
				FeeRecipient: feeRecipient.Hex(),
			},
		})
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// DeploySimple stamps a vault whose fees come back to the factory itself.
func (f *Factory) DeploySimple(owner common.Address) (common.Address, error) {
	return f.Deploy(owner, f.addr)
}

// DeploymentCount returns how many vaults this factory has stamped.
func (f *Factory) DeploymentCount() int {
	return len(f.deployments)
}

// Deployment returns the address of the i-th stamped vault, in creation
// order.
func (f *Factory) Deployment(i int) (common.Address, error) {
	if i < 0 || i >= len(f.deployments) {
		return common.Address{}, ErrIndexOutOfRange
	}
	return f.deployments[i], nil
}

// Deployments returns a copy of the ledger in creation order.
func (f *Factory) Deployments() []common.Address {
	out := make([]common.Address, len(f.deployments))
	copy(out, f.deployments)
	return out
}

// UpdateBlueprint swaps the template used for future deployments. Existing
// vaults are untouched. Owner only; nil is refused.
func (f *Factory) UpdateBlueprint(caller common.Address, blueprint *refuel.Blueprint) error {
	if err := f.ownable.RequireOwner(caller); err != nil {
		return err
	}
	if blueprint == nil {
		return ErrNilBlueprint
	}
	return f.db.Atomic(func() error {
		f.setBlueprint(blueprint)
		f.db.Emit(model.Event{
			Address: f.addr.Hex(),
			Name:    model.EventBlueprintUpdated,
			Data:    model.BlueprintUpdatedEventData{DefaultThresholdBps: blueprint.DefaultThresholdBps},
		})
		return nil
	})
}

// FeeBalance returns the fees accumulated in asset: the factory's balance
// on that asset's ledger. For share fees the asset is the pool address.
func (f *Factory) FeeBalance(asset common.Address) *big.Int {
	return f.host.Asset(asset).BalanceOf(f.addr)
}

// WithdrawFees sends amount of the accumulated asset fees to recipient.
// Owner only; overdrafts surface from the ledger.
func (f *Factory) WithdrawFees(caller, asset, recipient common.Address, amount *big.Int) error {
	if err := f.ownable.RequireOwner(caller); err != nil {
		return err
	}
	return f.withdraw(asset, recipient, amount)
}

// WithdrawAllFees sweeps the whole accumulated asset balance to recipient.
// Owner only.
func (f *Factory) WithdrawAllFees(caller, asset, recipient common.Address) error {
	if err := f.ownable.RequireOwner(caller); err != nil {
		return err
	}
	return f.withdraw(asset, recipient, f.FeeBalance(asset))
}

func (f *Factory) withdraw(asset, recipient common.Address, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	return f.db.Atomic(func() error {
		if err := f.host.Asset(asset).Transfer(f.addr, recipient, amount); err != nil {
			return fmt.Errorf("withdraw fees: %w", err)
		}
		f.db.Emit(model.Event{
			Address: f.addr.Hex(),
			Name:    model.EventFeesWithdrawn,
			Data: model.FeesWithdrawnEventData{
				Asset:     asset.Hex(),
				Recipient: recipient.Hex(),
				Amount:    amount.String(),
			},
		})
		return nil
	})
}

// TransferOwnership hands the factory to newOwner. Owner only; the zero
// address is refused.
func (f *Factory) TransferOwnership(caller, newOwner common.Address) error {
	previous := f.ownable.Owner()
	return f.db.Atomic(func() error {
		if err := f.ownable.TransferOwnership(caller, newOwner); err != nil {
			return err
		}
		f.db.Emit(model.Event{
			Address: f.addr.Hex(),
			Name:    model.EventOwnershipTransferred,
			Data: model.OwnershipTransferredEventData{
				PreviousOwner: previous.Hex(),
				NewOwner:      newOwner.Hex(),
			},
		})
		return nil
	})
}

func (f *Factory) appendDeployment(addr common.Address) {
	f.db.Append(state.UndoFunc(func() {
		f.deployments = f.deployments[:len(f.deployments)-1]
	}))
	f.deployments = append(f.deployments, addr)
}

func (f *Factory) setBlueprint(blueprint *refuel.Blueprint) {
	prev := f.blueprint
	f.db.Append(state.UndoFunc(func() { f.blueprint = prev }))
	f.blueprint = blueprint
}
