// Package executor applies a single call or deployment to a World,
// following the buy-gas/run/refund shape of the teacher's
// core/state_transition.go.
package executor

import (
	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
	"github.com/parables-dev/parables/log"
	"github.com/parables-dev/parables/params"
	"github.com/parables-dev/parables/state"
	"github.com/parables-dev/parables/vm"
)

// InsufficientBalanceError reports that sender could not cover
// gas·gas_price + value before execution began.
type InsufficientBalanceError struct {
	Sender  common.Address
	Have    *common.U256
	Need    *common.U256
}

func (e *InsufficientBalanceError) Error() string {
	return errors.Errorf("executor: %s has %s, needs %s", e.Sender, e.Have, e.Need).Error()
}

// InsufficientGasError reports a gas limit too small to cover the
// intrinsic transaction cost.
type InsufficientGasError struct {
	Have, Need uint64
}

func (e *InsufficientGasError) Error() string {
	return errors.Errorf("executor: gas limit %d below intrinsic cost %d", e.Have, e.Need).Error()
}

// NonceMismatchError reports a caller-supplied nonce diverging from the
// sender account's current nonce.
type NonceMismatchError struct {
	Sender     common.Address
	Have, Want uint64
}

func (e *NonceMismatchError) Error() string {
	return errors.Errorf("executor: %s nonce is %d, call specified %d", e.Sender, e.Have, e.Want).Error()
}

// DeployRevertedError wraps a REVERT encountered while running init code.
type DeployRevertedError struct {
	Output common.Bytes
}

func (e *DeployRevertedError) Error() string { return "executor: deployment reverted" }

// DeployFailedError wraps a fatal VM failure encountered while running
// init code.
type DeployFailedError struct {
	Failure *vm.VmFailure
}

func (e *DeployFailedError) Error() string {
	return errors.Errorf("executor: deployment failed: %v", e.Failure).Error()
}

// Call describes one message: sender, optional explicit nonce check,
// value, gas budget/price and calldata.
type Call struct {
	Sender   common.Address
	Nonce    *uint64 // nil: skip the nonce check, use and bump the account's current nonce
	Value    *common.U256
	Gas      uint64
	GasPrice *common.U256
	Data     common.Bytes
}

// Status tags how a call finished: success, EVM-level revert, or a
// fatal VmFailure. Exactly one of CallOutcome's trailing fields is
// meaningful for the given Status.
type Status int

const (
	Ok Status = iota
	Reverted
	Failed
)

// CallOutcome is Executor.Apply's return value: gas usage plus a status
// and whichever payload that status carries.
type CallOutcome struct {
	Status      Status
	Output      common.Bytes
	GasUsed     uint64
	Logs        []vm.LogEntry
	Failure     *vm.VmFailure
	NewAddress  *common.Address // set only for a successful deploy
}

// Executor threads a call through a World: intrinsic-cost validation,
// gas purchase, nonce bump, value transfer, interpreter dispatch and
// gas refund, per the teacher's state-transition shape and the
// original run_transaction algorithm it was ported from.
type Executor struct {
	interpreter *vm.Interpreter
	schedule    params.GasSchedule
	log         log.Logger
}

// New builds an Executor charging under the given foundation's gas
// schedule.
func New(spec params.Foundation) *Executor {
	schedule := spec.Gas()
	return &Executor{
		interpreter: vm.NewInterpreter(schedule),
		schedule:    schedule,
		log:         log.New("component", "executor"),
	}
}

// Apply runs call against w, deploying new code when to is nil or
// invoking to's code otherwise.
func (ex *Executor) Apply(w *state.World, call Call, to *common.Address) (*CallOutcome, error) {
	ex.log.Debug("apply", "sender", call.Sender, "gas", call.Gas, "deploy", to == nil)

	if call.Value == nil {
		call.Value = common.ZeroU256()
	}

	if call.Nonce != nil {
		have := w.Nonce(call.Sender)
		if have != *call.Nonce {
			return nil, &NonceMismatchError{Sender: call.Sender, Have: have, Want: *call.Nonce}
		}
	}

	intrinsic := ex.schedule.TxGas
	if to == nil {
		intrinsic = ex.schedule.TxGasContractCreation
	}
	if call.Gas < intrinsic {
		return nil, &InsufficientGasError{Have: call.Gas, Need: intrinsic}
	}

	upfront := new(common.U256).Mul(common.NewU256(call.Gas), call.GasPrice)
	need := new(common.U256).Add(upfront, call.Value)
	have := w.Balance(call.Sender)
	if have.Lt(need) {
		return nil, &InsufficientBalanceError{Sender: call.Sender, Have: have, Need: need}
	}

	if err := w.SubBalance(call.Sender, upfront); err != nil {
		return nil, errors.Wrap(err, "executor: buying gas")
	}
	nonce := w.Nonce(call.Sender)
	w.IncNonce(call.Sender)

	snap := w.Journal().Snapshot()
	ex.log.Trace("journal snapshot taken", "id", snap, "nonce", nonce)

	var target common.Address
	var code common.Bytes
	var deployed *common.Address
	if to == nil {
		target = crypto.CreateAddress(call.Sender, nonce)
		code = call.Data
		addr := target
		deployed = &addr
	} else {
		target = *to
		code = w.Code(target)
	}

	// have >= upfront+value was checked above and upfront has just been
	// deducted, so this transfer cannot fail on balance.
	_ = w.SubBalance(call.Sender, call.Value)
	w.AddBalance(target, call.Value)

	ex.log.Trace("running interpreter", "target", target, "gas", call.Gas-intrinsic)
	res := ex.interpreter.Run(&vm.Context{
		World:   w,
		Address: target,
		Caller:  call.Sender,
		Origin:  call.Sender,
		Code:    code,
		Input:   call.Data,
		Value:   call.Value,
		Gas:     call.Gas - intrinsic,
		Depth:   0,
	})

	outcome := &CallOutcome{GasUsed: intrinsic + res.GasUsed, Logs: res.Logs}

	switch {
	case res.Failure != nil:
		ex.log.Debug("call failed, reverting to snapshot", "id", snap, "failure", res.Failure)
		w.Journal().RevertToSnapshot(w, snap)
		outcome.Status = Failed
		outcome.Failure = res.Failure
		outcome.Logs = nil
		outcome.GasUsed = call.Gas // fatal failures consume the full budget
	case res.Reverted:
		ex.log.Debug("call reverted, reverting to snapshot", "id", snap)
		w.Journal().RevertToSnapshot(w, snap)
		outcome.Status = Reverted
		outcome.Output = res.Output
		outcome.Logs = nil
	default:
		outcome.Status = Ok
		outcome.Output = res.Output
		if to == nil {
			deployCost := ex.schedule.CreateDataGas * uint64(len(res.Output))
			outcome.GasUsed += deployCost
			if outcome.GasUsed <= call.Gas {
				w.SetCode(*deployed, res.Output)
				outcome.NewAddress = deployed
			} else {
				ex.log.Debug("deploy out of gas, reverting to snapshot", "id", snap)
				w.Journal().RevertToSnapshot(w, snap)
				outcome.Status = Failed
				outcome.Failure = vm.NewVmFailure(vm.OutOfGas)
				outcome.GasUsed = call.Gas
			}
		}
	}

	unused := uint64(0)
	if outcome.GasUsed < call.Gas {
		unused = call.Gas - outcome.GasUsed
	}
	refund := new(common.U256).Mul(common.NewU256(unused), call.GasPrice)
	w.AddBalance(call.Sender, refund)

	ex.log.Debug("apply finished", "status", outcome.Status, "gasUsed", outcome.GasUsed)
	return outcome, nil
}
