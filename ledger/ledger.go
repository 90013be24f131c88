// Package ledger reconciles an externally tracked expectation against
// whatever the EVM's own state actually says, for any entry type that
// knows how to clone, compare, and resync itself.
package ledger

import (
	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
)

// LedgerState is the strategy a Ledger delegates truth-reading and
// comparison to. E is the tracked entry type (e.g. *common.U256 for an
// account-balance ledger).
type LedgerState[E any] interface {
	NewInstance() E
	Sync(addr common.Address) E
	Verify(addr common.Address, expected E) error
}

// entry holds both sides of one tracked address: expected (mutated by
// Add/Sub/Set) and baseline (the value captured at the last Sync).
type entry[E any] struct {
	expected E
	baseline E
}

// MismatchError reports one address whose expected value diverged from
// what LedgerState.Verify observed.
type MismatchError struct {
	Address  common.Address
	Expected interface{}
	Actual   interface{}
}

func (m *MismatchError) Error() string {
	return errors.Errorf("ledger: %s expected %v, got %v", m.Address, m.Expected, m.Actual).Error()
}

// MismatchesError aggregates every MismatchError found in one Verify
// call, for a single diagnostic dump instead of stopping at the first.
type MismatchesError struct {
	Mismatches []*MismatchError
}

func (m *MismatchesError) Error() string {
	s := errors.Errorf("ledger: %d mismatches", len(m.Mismatches)).Error()
	for _, e := range m.Mismatches {
		s += "\n  " + e.Error()
	}
	return s
}

// Ledger tracks a set of addresses' expected state against a
// LedgerState's notion of ground truth.
type Ledger[E any] struct {
	state   LedgerState[E]
	entries map[common.Address]*entry[E]
}

// New builds an empty Ledger backed by state.
func New[E any](state LedgerState[E]) *Ledger[E] {
	return &Ledger[E]{state: state, entries: make(map[common.Address]*entry[E])}
}

// Sync snapshots addr's current truth into both expected and baseline.
func (l *Ledger[E]) Sync(addr common.Address) {
	v := l.state.Sync(addr)
	l.entries[addr] = &entry[E]{expected: v, baseline: v}
}

// SyncAll syncs every address in addrs.
func (l *Ledger[E]) SyncAll(addrs []common.Address) {
	for _, a := range addrs {
		l.Sync(a)
	}
}

// Expected returns addr's current expected value, or the zero value plus
// false if addr was never synced.
func (l *Ledger[E]) Expected(addr common.Address) (E, bool) {
	e, ok := l.entries[addr]
	if !ok {
		var zero E
		return zero, false
	}
	return e.expected, true
}

// Baseline returns addr's value as of its last Sync.
func (l *Ledger[E]) Baseline(addr common.Address) (E, bool) {
	e, ok := l.entries[addr]
	if !ok {
		var zero E
		return zero, false
	}
	return e.baseline, true
}

// Add folds delta into addr's expected value via combine, for entry
// types that support incremental updates (see AccountBalance for the
// U256 specialization). addr must already be tracked.
func Add[E any](l *Ledger[E], addr common.Address, delta E, combine func(cur, delta E) E) error {
	e, ok := l.entries[addr]
	if !ok {
		return errors.Errorf("ledger: %s is not tracked", addr)
	}
	e.expected = combine(e.expected, delta)
	return nil
}

// Set overwrites addr's expected value directly, for non-additive entry
// types. addr must already be tracked.
func (l *Ledger[E]) Set(addr common.Address, value E) error {
	e, ok := l.entries[addr]
	if !ok {
		return errors.Errorf("ledger: %s is not tracked", addr)
	}
	e.expected = value
	return nil
}

// Verify re-reads truth for every tracked address and requires equality
// with its expected value; the first mismatch starts a MismatchesError
// that collects every other mismatch found in the same pass.
func (l *Ledger[E]) Verify() error {
	var mismatches []*MismatchError
	for addr, e := range l.entries {
		if err := l.state.Verify(addr, e.expected); err != nil {
			mismatches = append(mismatches, &MismatchError{
				Address:  addr,
				Expected: e.expected,
				Actual:   l.state.Sync(addr),
			})
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &MismatchesError{Mismatches: mismatches}
}
