// Package state holds the in-process world state: per-asset holder balances,
// allowances, total supplies, account nonces, and the event log. Every
// mutation journals an undo entry, so any span of work can be rolled back to
// a snapshot taken before it.
package state

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"poolrefuel/internal/model"
)

type approvalKey struct {
	asset   common.Address
	owner   common.Address
	spender common.Address
}

type revision struct {
	id           int
	journalIndex int
}

// StateDB is deliberately not safe for concurrent use. Serialization belongs
// to the owning environment (see the engine package).
type StateDB struct {
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[approvalKey]*big.Int
	supplies   map[common.Address]*big.Int
	nonces     map[common.Address]uint64

	logs []model.Event
	seq  uint64

	journal        *journal
	validRevisions []revision
	nextRevisionID int
	depth          int
}

// New returns an empty StateDB.
func New() *StateDB {
	return &StateDB{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[approvalKey]*big.Int),
		supplies:   make(map[common.Address]*big.Int),
		nonces:     make(map[common.Address]uint64),
		journal:    newJournal(),
	}
}

// Balance returns holder's balance of asset. The result is a copy.
func (db *StateDB) Balance(asset, holder common.Address) *big.Int {
	if cur, ok := db.balances[asset][holder]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// SetBalance records holder's balance of asset and journals the previous
// value. A nil amount is treated as zero.
func (db *StateDB) SetBalance(asset, holder common.Address, amount *big.Int) {
	holders, ok := db.balances[asset]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		db.balances[asset] = holders
	}
	db.journal.append(balanceChange{db: db, asset: asset, holder: holder, prev: holders[holder]})
	if amount == nil {
		amount = new(big.Int)
	}
	holders[holder] = new(big.Int).Set(amount)
}

// AddBalance increases holder's balance of asset by amount.
func (db *StateDB) AddBalance(asset, holder common.Address, amount *big.Int) {
	db.SetBalance(asset, holder, new(big.Int).Add(db.Balance(asset, holder), amount))
}

// SubBalance decreases holder's balance of asset by amount. Funds checks
// happen at the token ledger, not here.
func (db *StateDB) SubBalance(asset, holder common.Address, amount *big.Int) {
	db.SetBalance(asset, holder, new(big.Int).Sub(db.Balance(asset, holder), amount))
}

// Allowance returns the amount spender may move from owner's asset balance.
// The result is a copy.
func (db *StateDB) Allowance(asset, owner, spender common.Address) *big.Int {
	if cur, ok := db.allowances[approvalKey{asset, owner, spender}]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// SetAllowance records spender's allowance over owner's asset balance.
func (db *StateDB) SetAllowance(asset, owner, spender common.Address, amount *big.Int) {
	key := approvalKey{asset, owner, spender}
	db.journal.append(allowanceChange{db: db, key: key, prev: db.allowances[key]})
	if amount == nil {
		amount = new(big.Int)
	}
	db.allowances[key] = new(big.Int).Set(amount)
}

// TotalSupply returns the recorded total supply of asset. The result is a
// copy.
func (db *StateDB) TotalSupply(asset common.Address) *big.Int {
	if cur, ok := db.supplies[asset]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// SetTotalSupply records the total supply of asset.
func (db *StateDB) SetTotalSupply(asset common.Address, amount *big.Int) {
	db.journal.append(supplyChange{db: db, asset: asset, prev: db.supplies[asset]})
	if amount == nil {
		amount = new(big.Int)
	}
	db.supplies[asset] = new(big.Int).Set(amount)
}

// Nonce returns the creation nonce of addr.
func (db *StateDB) Nonce(addr common.Address) uint64 {
	return db.nonces[addr]
}

// SetNonce records the creation nonce of addr.
func (db *StateDB) SetNonce(addr common.Address, nonce uint64) {
	db.journal.append(nonceChange{db: db, addr: addr, prev: db.nonces[addr]})
	db.nonces[addr] = nonce
}

// Emit appends ev to the event log, assigning its sequence number. Events
// are journaled: a rollback drops everything emitted inside the reverted
// span.
func (db *StateDB) Emit(ev model.Event) {
	ev.Seq = db.seq
	db.seq++
	db.logs = append(db.logs, ev)
	db.journal.append(logChange{db: db})
}

// Logs returns a copy of the event log in emission order.
func (db *StateDB) Logs() []model.Event {
	out := make([]model.Event, len(db.logs))
	copy(out, db.logs)
	return out
}

// Append attaches an external undo entry to the current journal scope.
func (db *StateDB) Append(entry JournalEntry) {
	db.journal.append(entry)
}

// Snapshot marks the current state and returns an identifier usable with
// RevertToSnapshot. Snapshots do not survive the completion of an outermost
// Atomic scope.
func (db *StateDB) Snapshot() int {
	id := db.nextRevisionID
	db.nextRevisionID++
	db.validRevisions = append(db.validRevisions, revision{id, db.journal.length()})
	return id
}

// RevertToSnapshot undoes every mutation recorded after the given snapshot
// was taken. Reverting to an unknown or already-reverted snapshot is a
// programming error and panics.
func (db *StateDB) RevertToSnapshot(id int) {
	idx := sort.Search(len(db.validRevisions), func(i int) bool {
		return db.validRevisions[i].id >= id
	})
	if idx == len(db.validRevisions) || db.validRevisions[idx].id != id {
		panic(fmt.Errorf("revision id %v cannot be reverted", id))
	}
	db.journal.revert(db.validRevisions[idx].journalIndex)
	db.validRevisions = db.validRevisions[:idx]
}

// Atomic runs fn and, if it returns an error, rolls back every journaled
// mutation fn made, returning that error. Scopes nest; an inner revert does
// not disturb the outer scope. When the outermost scope completes
// successfully the accumulated undo log is discarded.
func (db *StateDB) Atomic(fn func() error) error {
	snap := db.Snapshot()
	db.depth++
	err := fn()
	db.depth--
	if err != nil {
		db.RevertToSnapshot(snap)
		return err
	}
	if db.depth == 0 {
		db.finalise()
	}
	return nil
}

func (db *StateDB) finalise() {
	db.journal = newJournal()
	db.validRevisions = db.validRevisions[:0]
	db.nextRevisionID = 0
}
