package refuel

import (
	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/state"
)

// Blueprint is the template the factory stamps vaults from. Instances come
// up uninitialized and take their owner and fee recipient through
// Initialize.
type Blueprint struct {
	// DefaultThresholdBps seeds the donation threshold of every instance.
	DefaultThresholdBps uint64
}

// NewBlueprint returns a blueprint with the stock defaults.
func NewBlueprint() *Blueprint {
	return &Blueprint{DefaultThresholdBps: DefaultThresholdBps}
}

// NewVault stamps an uninitialized vault at addr.
func (b *Blueprint) NewVault(db *state.StateDB, addr common.Address, host Host) *Vault {
	return newVault(db, addr, b.DefaultThresholdBps, host)
}
