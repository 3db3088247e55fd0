// Package ownable provides the single-owner access control shared by the
// vault and the factory. Owner changes journal their previous value, so a
// rolled-back scope restores ownership along with everything else.
package ownable

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/state"
)

var (
	// ErrUnauthorized means the caller is not the owner.
	ErrUnauthorized = errors.New("caller is not the owner")
	// ErrInvalidOwner means the proposed owner address is unusable.
	ErrInvalidOwner = errors.New("invalid owner address")
)

// Ownable tracks the owning address of one contract.
type Ownable struct {
	db    *state.StateDB
	owner common.Address
}

// New returns an Ownable held by owner.
func New(db *state.StateDB, owner common.Address) *Ownable {
	return &Ownable{db: db, owner: owner}
}

// Owner returns the current owner.
func (o *Ownable) Owner() common.Address {
	return o.owner
}

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (o *Ownable) RequireOwner(caller common.Address) error {
	if caller != o.owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands the contract to newOwner. Only the current owner
// may call it, and the zero address is refused.
func (o *Ownable) TransferOwnership(caller, newOwner common.Address) error {
	if err := o.RequireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrInvalidOwner
	}
	o.setOwner(newOwner)
	return nil
}

// SetOwner installs owner without authorization checks. Initialization paths
// use it before any owner exists.
func (o *Ownable) SetOwner(owner common.Address) {
	o.setOwner(owner)
}

func (o *Ownable) setOwner(owner common.Address) {
	prev := o.owner
	o.db.Append(state.UndoFunc(func() { o.owner = prev }))
	o.owner = owner
}
