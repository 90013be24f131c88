// Package evm is the façade a test closure actually calls: deploy, call,
// balance/nonce/storage reads, and a drainable log stream, all scoped to
// one World and backed by executor.Executor for the heavy lifting.
package evm

import (
	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/executor"
	"github.com/parables-dev/parables/params"
	"github.com/parables-dev/parables/state"
	"github.com/parables-dev/parables/vm"
)

// taggedLog is one log record plus the call_index of the call that
// emitted it, matching §4.4's ordering requirement.
type taggedLog struct {
	callIndex uint64
	entry     vm.LogEntry
}

// DeployResult is what Deploy returns on success.
type DeployResult struct {
	Address common.Address
	GasUsed uint64
	Logs    []vm.LogEntry
}

// CallOk is what Call/CallDefault return for anything short of a fatal
// VmFailure: a normal return and an EVM-level REVERT both come back this
// way, distinguished by Reverted.
type CallOk struct {
	Output   common.Bytes
	GasUsed  uint64
	Logs     []vm.LogEntry
	Reverted bool
}

// Evm owns one World and one ordered log drain; it is the unit a test
// closure receives from Snapshot.Get and mutates freely.
type Evm struct {
	world     *state.World
	exec      *executor.Executor
	callIndex uint64
	logs      []taggedLog
}

// New wraps w in a fresh façade with an empty log drain and an Executor
// built from w's own foundation.
func New(w *state.World) *Evm {
	return &Evm{world: w, exec: executor.New(w.Spec())}
}

// World exposes the underlying World for packages (snapshot, ledger)
// that need to read or clone it directly.
func (e *Evm) World() *state.World { return e.world }

func (e *Evm) nextCallIndex() uint64 {
	idx := e.callIndex
	e.callIndex++
	return idx
}

func (e *Evm) record(idx uint64, logs []vm.LogEntry) {
	for _, l := range logs {
		e.logs = append(e.logs, taggedLog{callIndex: idx, entry: l})
	}
}

// Deploy runs constructorCallData as init code under call, returning the
// deployed address on success.
func (e *Evm) Deploy(constructorCallData common.Bytes, call executor.Call) (*DeployResult, error) {
	call.Data = constructorCallData
	idx := e.nextCallIndex()
	outcome, err := e.exec.Apply(e.world, call, nil)
	if err != nil {
		return nil, err
	}
	switch outcome.Status {
	case executor.Reverted:
		return nil, &executor.DeployRevertedError{Output: outcome.Output}
	case executor.Failed:
		return nil, &executor.DeployFailedError{Failure: outcome.Failure}
	}
	e.record(idx, outcome.Logs)
	return &DeployResult{Address: *outcome.NewAddress, GasUsed: outcome.GasUsed, Logs: outcome.Logs}, nil
}

// Call invokes to's code with callData as input.
func (e *Evm) Call(to common.Address, callData common.Bytes, call executor.Call) (*CallOk, error) {
	call.Data = callData
	idx := e.nextCallIndex()
	outcome, err := e.exec.Apply(e.world, call, &to)
	if err != nil {
		return nil, err
	}
	if outcome.Status == executor.Failed {
		return nil, outcome.Failure
	}
	e.record(idx, outcome.Logs)
	return &CallOk{
		Output:   outcome.Output,
		GasUsed:  outcome.GasUsed,
		Logs:     outcome.Logs,
		Reverted: outcome.Status == executor.Reverted,
	}, nil
}

// CallDefault invokes to's fallback function: identical to Call with
// empty calldata.
func (e *Evm) CallDefault(to common.Address, call executor.Call) (*CallOk, error) {
	return e.Call(to, nil, call)
}

// AddBalance credits addr directly, bypassing the executor — used by
// tests to fund accounts before exercising a call.
func (e *Evm) AddBalance(addr common.Address, amount *common.U256) {
	e.world.AddBalance(addr, amount)
}

// SubBalance debits addr directly.
func (e *Evm) SubBalance(addr common.Address, amount *common.U256) error {
	return e.world.SubBalance(addr, amount)
}

func (e *Evm) Balance(addr common.Address) *common.U256 { return e.world.Balance(addr) }
func (e *Evm) Nonce(addr common.Address) uint64          { return e.world.Nonce(addr) }
func (e *Evm) Storage(addr common.Address, key common.Hash) common.Hash {
	return e.world.StorageGet(addr, key)
}

// Spec reports the foundation this Evm's World runs under.
func (e *Evm) Spec() params.Foundation { return e.world.Spec() }

// HasLogs reports whether any undrained log record remains.
func (e *Evm) HasLogs() bool { return len(e.logs) > 0 }

// LogDecodeError wraps a log record that matched an event's topic-0 but
// failed to decode against its argument list.
type LogDecodeError struct {
	Event string
	Err   error
}

func (le *LogDecodeError) Error() string {
	return errors.Wrapf(le.Err, "evm: decoding %s log", le.Event).Error()
}
