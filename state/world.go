// Package state owns the in-memory EVM World: accounts, storage, code and
// block context, plus the copy-on-write cloning that makes Snapshot.Get
// cheap.
package state

import (
	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/params"
)

// ErrInsufficientBalance is returned by SubBalance when an account's
// balance would go negative.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// Account is the per-address record the spec's data model names: balance,
// nonce, code and storage. An absent account is equivalent to the zero
// Account; materialization happens on first write (see World.mutable).
type Account struct {
	Balance *common.U256
	Nonce   uint64
	Code    common.Bytes
	Storage map[common.Hash]common.Hash
}

func newAccount() *Account {
	return &Account{
		Balance: common.ZeroU256(),
		Storage: make(map[common.Hash]common.Hash),
	}
}

// emptyAccount is the read-only zero value returned for addresses that have
// never been materialized. It must never be mutated.
var emptyAccount = &Account{Balance: common.ZeroU256()}

func (a *Account) clone() *Account {
	storage := make(map[common.Hash]common.Hash, len(a.Storage))
	for k, v := range a.Storage {
		storage[k] = v
	}
	code := make(common.Bytes, len(a.Code))
	copy(code, a.Code)
	return &Account{
		Balance: new(common.U256).Set(a.Balance),
		Nonce:   a.Nonce,
		Code:    code,
		Storage: storage,
	}
}

// BlockContext is the immutable-within-one-call, explicitly advanceable
// block environment a World executes calls against.
type BlockContext struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	Difficulty     *common.U256
	GasLimit       uint64
	Coinbase       common.Address
}

// defaultContext is the genesis-like context a freshly constructed World
// starts from.
func defaultContext() BlockContext {
	return BlockContext{
		BlockNumber:    0,
		BlockTimestamp: 0,
		Difficulty:     common.NewU256(1),
		GasLimit:       10_000_000,
	}
}

// World is the in-memory EVM state: accounts plus block context, selected
// by a Foundation that fixes the gas schedule for its lifetime.
type World struct {
	spec     params.Foundation
	context  BlockContext
	accounts map[common.Address]*Account
	// owned marks which entries of accounts are private to this World —
	// i.e. safe to mutate in place rather than copy first. A freshly
	// cloned World starts with none owned; every entry is shared with its
	// parent until first written.
	owned   map[common.Address]bool
	journal *Journal
}

// New constructs an empty World under the given foundation.
func New(spec params.Foundation) *World {
	return &World{
		spec:     spec,
		context:  defaultContext(),
		accounts: make(map[common.Address]*Account),
		owned:    make(map[common.Address]bool),
		journal:  NewJournal(),
	}
}

// Spec returns the foundation this World was constructed with.
func (w *World) Spec() params.Foundation { return w.spec }

// Context returns the current block context.
func (w *World) Context() BlockContext { return w.context }

// AdvanceBlock advances the block number and timestamp by the given deltas.
func (w *World) AdvanceBlock(deltaNumber, deltaTimestamp uint64) {
	w.context.BlockNumber += deltaNumber
	w.context.BlockTimestamp += deltaTimestamp
}

// Journal exposes the World's change journal so Executor can snapshot and
// unwind a single call's side effects.
func (w *World) Journal() *Journal { return w.journal }

// Clone produces a structurally-shared, independent copy of the World: the
// accounts map is shallow-copied (cheap), and each Account is only
// deep-copied the first time it is written through the clone. This is what
// makes Snapshot.Get cheap even for a World with many touched accounts.
func (w *World) Clone() *World {
	accounts := make(map[common.Address]*Account, len(w.accounts))
	for addr, acc := range w.accounts {
		accounts[addr] = acc
	}
	return &World{
		spec:     w.spec,
		context:  w.context,
		accounts: accounts,
		owned:    make(map[common.Address]bool),
		journal:  NewJournal(),
	}
}

// Account returns a read-only view of the account at addr. Absent accounts
// read as the zero Account; they are not materialized by reading.
func (w *World) Account(addr common.Address) *Account {
	if acc, ok := w.accounts[addr]; ok {
		return acc
	}
	return emptyAccount
}

// Exists reports whether addr has been materialized.
func (w *World) Exists(addr common.Address) bool {
	_, ok := w.accounts[addr]
	return ok
}

// mutable returns an Account pointer private to this World, materializing
// it (and recording its creation in the journal) if absent, and
// copy-on-write-forking it if it is still shared with a parent/sibling
// World.
func (w *World) mutable(addr common.Address) *Account {
	acc, ok := w.accounts[addr]
	if !ok {
		acc = newAccount()
		w.accounts[addr] = acc
		w.owned[addr] = true
		w.journal.append(createAccountEntry{addr: addr})
		return acc
	}
	if w.owned[addr] {
		return acc
	}
	cp := acc.clone()
	w.accounts[addr] = cp
	w.owned[addr] = true
	return cp
}

// Balance returns the balance of addr.
func (w *World) Balance(addr common.Address) *common.U256 {
	return new(common.U256).Set(w.Account(addr).Balance)
}

// Nonce returns the nonce of addr.
func (w *World) Nonce(addr common.Address) uint64 {
	return w.Account(addr).Nonce
}

// Code returns the code deployed at addr.
func (w *World) Code(addr common.Address) common.Bytes {
	return w.Account(addr).Code
}

// StorageGet returns the storage value at (addr, key), the zero Hash if
// unset.
func (w *World) StorageGet(addr common.Address, key common.Hash) common.Hash {
	acc := w.Account(addr)
	if acc.Storage == nil {
		return common.Hash{}
	}
	return acc.Storage[key]
}

// SetBalance sets addr's balance, journaling the prior value.
func (w *World) SetBalance(addr common.Address, balance *common.U256) {
	acc := w.mutable(addr)
	w.journal.append(balanceEntry{addr: addr, prev: new(common.U256).Set(acc.Balance)})
	acc.Balance = new(common.U256).Set(balance)
}

// AddBalance credits addr with amount.
func (w *World) AddBalance(addr common.Address, amount *common.U256) {
	if amount.IsZero() {
		w.mutable(addr) // still materializes, matching the teacher's CleanupMode::ForceCreate
		return
	}
	acc := w.mutable(addr)
	w.journal.append(balanceEntry{addr: addr, prev: new(common.U256).Set(acc.Balance)})
	acc.Balance = new(common.U256).Add(acc.Balance, amount)
}

// SubBalance debits addr by amount, failing ErrInsufficientBalance if the
// balance would go negative.
func (w *World) SubBalance(addr common.Address, amount *common.U256) error {
	if amount.IsZero() {
		return nil
	}
	acc := w.Account(addr)
	if acc.Balance.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s has %s, needs %s", addr, acc.Balance, amount)
	}
	m := w.mutable(addr)
	w.journal.append(balanceEntry{addr: addr, prev: new(common.U256).Set(m.Balance)})
	m.Balance = new(common.U256).Sub(m.Balance, amount)
	return nil
}

// SetNonce sets addr's nonce, journaling the prior value.
func (w *World) SetNonce(addr common.Address, nonce uint64) {
	acc := w.mutable(addr)
	w.journal.append(nonceEntry{addr: addr, prev: acc.Nonce})
	acc.Nonce = nonce
}

// IncNonce increments addr's nonce by one, journaling the prior value.
func (w *World) IncNonce(addr common.Address) {
	acc := w.mutable(addr)
	w.journal.append(nonceEntry{addr: addr, prev: acc.Nonce})
	acc.Nonce = acc.Nonce + 1
}

// SetCode sets addr's code, journaling the prior value.
func (w *World) SetCode(addr common.Address, code common.Bytes) {
	acc := w.mutable(addr)
	prev := make(common.Bytes, len(acc.Code))
	copy(prev, acc.Code)
	w.journal.append(codeEntry{addr: addr, prev: prev})
	cp := make(common.Bytes, len(code))
	copy(cp, code)
	acc.Code = cp
}

// StorageSet sets the storage value at (addr, key), journaling the prior
// value.
func (w *World) StorageSet(addr common.Address, key, value common.Hash) {
	acc := w.mutable(addr)
	prev := acc.Storage[key]
	w.journal.append(storageEntry{addr: addr, key: key, prev: prev})
	if value.IsZero() {
		delete(acc.Storage, key)
		return
	}
	acc.Storage[key] = value
}

// TotalBalance sums the balance of every materialized account, used by
// tests asserting the conservation invariant.
func (w *World) TotalBalance() *common.U256 {
	total := common.ZeroU256()
	for _, acc := range w.accounts {
		total = new(common.U256).Add(total, acc.Balance)
	}
	return total
}
