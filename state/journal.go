package state

import "github.com/parables-dev/parables/common"

// journalEntry is one undoable mutation, adapted from the teacher's
// core/state/journal.go entry interface. revert is applied directly
// against the account map — it must not itself go through World's
// mutable()/journal-appending setters, or undoing an undo would re-journal
// the undo.
type journalEntry interface {
	revert(w *World)
}

type createAccountEntry struct {
	addr common.Address
}

func (e createAccountEntry) revert(w *World) {
	delete(w.accounts, e.addr)
	delete(w.owned, e.addr)
}

type balanceEntry struct {
	addr common.Address
	prev *common.U256
}

func (e balanceEntry) revert(w *World) {
	w.accounts[e.addr].Balance = e.prev
}

type nonceEntry struct {
	addr common.Address
	prev uint64
}

func (e nonceEntry) revert(w *World) {
	w.accounts[e.addr].Nonce = e.prev
}

type codeEntry struct {
	addr common.Address
	prev common.Bytes
}

func (e codeEntry) revert(w *World) {
	w.accounts[e.addr].Code = e.prev
}

type storageEntry struct {
	addr common.Address
	key  common.Hash
	prev common.Hash
}

func (e storageEntry) revert(w *World) {
	acc := w.accounts[e.addr]
	if e.prev.IsZero() {
		delete(acc.Storage, e.key)
		return
	}
	acc.Storage[e.key] = e.prev
}

// Journal is an append-only log of mutations applied to a World, used to
// unwind a reverted call (or a reverted nested CALL/CREATE frame) without
// discarding changes made before the revert point.
type Journal struct {
	entries []journalEntry
}

// NewJournal constructs an empty Journal.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) append(e journalEntry) {
	j.entries = append(j.entries, e)
}

// Snapshot returns an opaque marker for the journal's current length, to be
// passed to RevertToSnapshot to unwind everything recorded since.
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

// RevertToSnapshot undoes every entry recorded since id, most recent first.
func (j *Journal) RevertToSnapshot(w *World, id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i].revert(w)
	}
	j.entries = j.entries[:id]
}

// Len reports how many entries are currently journaled.
func (j *Journal) Len() int { return len(j.entries) }
