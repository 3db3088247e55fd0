package ownable

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolrefuel/internal/state"
)

var (
	owner    = common.HexToAddress("0x1")
	newOwner = common.HexToAddress("0x2")
	stranger = common.HexToAddress("0x3")
)

func TestRequireOwner(t *testing.T) {
	o := New(state.New(), owner)

	require.NoError(t, o.RequireOwner(owner))
	require.ErrorIs(t, o.RequireOwner(stranger), ErrUnauthorized)
}

func TestTransferOwnership(t *testing.T) {
	t.Run("owner hands over", func(t *testing.T) {
		o := New(state.New(), owner)
		require.NoError(t, o.TransferOwnership(owner, newOwner))
		assert.Equal(t, newOwner, o.Owner())

		require.ErrorIs(t, o.RequireOwner(owner), ErrUnauthorized)
		require.NoError(t, o.RequireOwner(newOwner))
	})

	t.Run("non-owner cannot transfer", func(t *testing.T) {
		o := New(state.New(), owner)
		require.ErrorIs(t, o.TransferOwnership(stranger, stranger), ErrUnauthorized)
		assert.Equal(t, owner, o.Owner())
	})

	t.Run("zero address refused", func(t *testing.T) {
		o := New(state.New(), owner)
		require.ErrorIs(t, o.TransferOwnership(owner, common.Address{}), ErrInvalidOwner)
		assert.Equal(t, owner, o.Owner())
	})
}

func TestOwnerRollsBackWithState(t *testing.T) {
	db := state.New()
	o := New(db, owner)

	snap := db.Snapshot()
	require.NoError(t, o.TransferOwnership(owner, newOwner))
	require.NoError(t, o.TransferOwnership(newOwner, stranger))
	db.RevertToSnapshot(snap)

	assert.Equal(t, owner, o.Owner())
}
