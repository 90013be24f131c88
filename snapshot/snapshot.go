// Package snapshot wraps a baseline World behind an atomically
// refcounted handle so many independent, copy-on-write-derived Evms can
// be handed out cheaply — one per worker, per test — without ever
// mutating the shared baseline. Modeled on the teacher's
// core/state.StateDB.Copy().
package snapshot

import (
	"sync/atomic"

	"github.com/parables-dev/parables/evm"
	"github.com/parables-dev/parables/log"
	"github.com/parables-dev/parables/state"
)

// Snapshot owns an immutable baseline World. Concurrent Get calls are
// safe and wait-free beyond the underlying refcount's atomic add.
type Snapshot struct {
	baseline *state.World
	refs     atomic.Int64
	log      log.Logger
}

// New consumes e's World as the new baseline; e itself should not be
// used again by the caller after this call.
func New(e *evm.Evm) *Snapshot {
	s := &Snapshot{baseline: e.World(), log: log.New("component", "snapshot")}
	s.log.Debug("baseline captured")
	return s
}

// Get clones the baseline World copy-on-write and returns a fresh Evm
// with an empty log drain. Mutations in the returned Evm never reach
// the baseline or any sibling snapshot derived from it.
func (s *Snapshot) Get() *evm.Evm {
	n := s.refs.Add(1)
	s.log.Trace("cloning baseline", "ref", n)
	return evm.New(s.baseline.Clone())
}

// Refs reports the number of Get calls made so far, for diagnostics —
// the refcount is never decremented since derived Evms are plain
// garbage-collected values, not explicitly released.
func (s *Snapshot) Refs() int64 { return s.refs.Load() }
