package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// JournalEntry is one reversible mutation of world state. Entries are
// reverted in LIFO order when a snapshot is rolled back.
type JournalEntry interface {
	Revert()
}

// UndoFunc adapts a plain closure to a JournalEntry. Components that keep
// state outside the StateDB (pool reserves, registry ledgers, address
// bindings) use it to participate in the same rollback scope.
type UndoFunc func()

// Revert runs the closure.
func (f UndoFunc) Revert() { f() }

// journal records the ordered undo entries accumulated since the last
// finalise.
type journal struct {
	entries []JournalEntry
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(entry JournalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes entries down to (and excluding) index snapshot.
func (j *journal) revert(snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].Revert()
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) length() int {
	return len(j.entries)
}

type balanceChange struct {
	db            *StateDB
	asset, holder common.Address
	prev          *big.Int
}

func (c balanceChange) Revert() {
	holders := c.db.balances[c.asset]
	if c.prev == nil {
		delete(holders, c.holder)
		if len(holders) == 0 {
			delete(c.db.balances, c.asset)
		}
		return
	}
	holders[c.holder] = c.prev
}

type allowanceChange struct {
	db   *StateDB
	key  approvalKey
	prev *big.Int
}

func (c allowanceChange) Revert() {
	if c.prev == nil {
		delete(c.db.allowances, c.key)
		return
	}
	c.db.allowances[c.key] = c.prev
}

type supplyChange struct {
	db    *StateDB
	asset common.Address
	prev  *big.Int
}

func (c supplyChange) Revert() {
	if c.prev == nil {
		delete(c.db.supplies, c.asset)
		return
	}
	c.db.supplies[c.asset] = c.prev
}

type nonceChange struct {
	db   *StateDB
	addr common.Address
	prev uint64
}

func (c nonceChange) Revert() {
	c.db.nonces[c.addr] = c.prev
}

type logChange struct {
	db *StateDB
}

func (c logChange) Revert() {
	c.db.logs = c.db.logs[:len(c.db.logs)-1]
	c.db.seq--
}
