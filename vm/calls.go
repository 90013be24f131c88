package vm

import (
	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
)

// execLog pops offset/size plus n topics and appends a LogEntry, charging
// the per-topic and per-byte costs the teacher's core/vm/jump_table.go
// assigns to LOG0..LOG4.
func (in *Interpreter) execLog(ctx *Context, st *stack, mem *memory, n int, gas *uint64, logs *[]LogEntry) *ExecutionResult {
	if ctx.ReadOnly {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: newFailure(InvalidOpcode)}
	}
	offset, size, err := popOffsetSize(st)
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}
	topics := make([]common.Hash, n)
	for i := 0; i < n; i++ {
		t, err := st.pop()
		if err != nil {
			return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
		}
		topics[i] = common.Hash(t.Bytes32())
	}

	cost := memExpansionCost(mem, offset+size, in.schedule) +
		in.schedule.LogGas +
		in.schedule.LogTopicGas*uint64(n) +
		in.schedule.LogDataGas*size
	if *gas < cost {
		*gas = 0
		return &ExecutionResult{GasUsed: ctx.Gas, Failure: newFailure(OutOfGas)}
	}
	*gas -= cost

	data := mem.get(offset, size)
	*logs = append(*logs, LogEntry{Address: ctx.Address, Topics: topics, Data: common.Bytes(data)})
	return nil
}

// execCreate pops value/offset/size, runs the init code in a fresh frame at
// the deterministically derived address, and on success deploys the
// returned bytes as the new account's code — following the teacher's
// core/vm/instructions.go opCreate.
func (in *Interpreter) execCreate(ctx *Context, st *stack, mem *memory, gas *uint64, logs *[]LogEntry) *ExecutionResult {
	if ctx.ReadOnly {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: newFailure(InvalidOpcode)}
	}
	value, err := st.pop()
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}
	offset, size, err := popOffsetSize(st)
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}

	memCost := memExpansionCost(mem, offset+size, in.schedule)
	if *gas < memCost+in.schedule.CreateGas {
		*gas = 0
		return &ExecutionResult{GasUsed: ctx.Gas, Failure: newFailure(OutOfGas)}
	}
	*gas -= memCost + in.schedule.CreateGas

	initCode := mem.get(offset, size)
	newAddr := crypto.CreateAddress(ctx.Address, ctx.World.Nonce(ctx.Address))

	snapshot := ctx.World.Journal().Snapshot()
	ctx.World.IncNonce(ctx.Address)

	if err := ctx.World.SubBalance(ctx.Address, value); err != nil {
		ctx.World.Journal().RevertToSnapshot(ctx.World, snapshot)
		_ = st.push(common.ZeroU256())
		return nil
	}
	ctx.World.AddBalance(newAddr, value)

	childGas := *gas
	res := in.Run(&Context{
		World:    ctx.World,
		Address:  newAddr,
		Caller:   ctx.Address,
		Origin:   ctx.Origin,
		Code:     initCode,
		Input:    nil,
		Value:    value,
		Gas:      childGas,
		Depth:    ctx.Depth + 1,
		ReadOnly: false,
	})
	*gas -= res.GasUsed

	if res.Failure != nil || res.Reverted {
		ctx.World.Journal().RevertToSnapshot(ctx.World, snapshot)
		_ = st.push(common.ZeroU256())
		return nil
	}

	deployCost := in.schedule.CreateDataGas * uint64(len(res.Output))
	if *gas < deployCost {
		*gas = 0
		ctx.World.Journal().RevertToSnapshot(ctx.World, snapshot)
		_ = st.push(common.ZeroU256())
		return nil
	}
	*gas -= deployCost
	ctx.World.SetCode(newAddr, res.Output)
	*logs = append(*logs, res.Logs...)

	_ = st.push(addrToU256(newAddr))
	return nil
}

// execCall handles CALL/CALLCODE/DELEGATECALL/STATICCALL: each pops its own
// stack shape, recurses into a child frame against the same World, writes
// return data into memory, and pushes a 0/1 success flag — mirroring the
// teacher's core/vm/instructions.go opCall family.
func (in *Interpreter) execCall(ctx *Context, st *stack, mem *memory, op OpCode, gas *uint64, logs *[]LogEntry) *ExecutionResult {
	callGas, err := st.pop()
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}
	addr, err := st.pop()
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}

	var value *common.U256
	if op == CALL || op == CALLCODE {
		value, err = st.pop()
		if err != nil {
			return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
		}
	} else {
		value = common.ZeroU256()
	}

	argsOffset, argsSize, err := popOffsetSize(st)
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}
	retOffset, retSize, err := popOffsetSize(st)
	if err != nil {
		return &ExecutionResult{GasUsed: ctx.Gas - *gas, Failure: err.(*VmFailure)}
	}

	target := u256ToAddr(addr)

	memCost := memExpansionCost(mem, max64(argsOffset+argsSize, retOffset+retSize), in.schedule)
	transferCost := uint64(0)
	if (op == CALL) && !value.IsZero() {
		transferCost = in.schedule.CallValueTransferGas
		if !ctx.World.Exists(target) {
			transferCost += in.schedule.CallNewAccountGas
		}
	}
	if *gas < memCost+transferCost {
		*gas = 0
		return &ExecutionResult{GasUsed: ctx.Gas, Failure: newFailure(OutOfGas)}
	}
	*gas -= memCost + transferCost

	requested := callGas.Uint64()
	if requested > *gas {
		requested = *gas
	}
	stipend := uint64(0)
	if !value.IsZero() {
		stipend = in.schedule.CallStipend
	}
	childGas := requested + stipend
	*gas -= requested

	args := mem.get(argsOffset, argsSize)

	snapshot := ctx.World.Journal().Snapshot()

	var callCode common.Bytes
	var callAddress, caller common.Address
	var readOnly bool
	switch op {
	case CALL:
		callCode = ctx.World.Code(target)
		callAddress = target
		caller = ctx.Address
		if !value.IsZero() {
			if err := ctx.World.SubBalance(ctx.Address, value); err != nil {
				ctx.World.Journal().RevertToSnapshot(ctx.World, snapshot)
				*gas += childGas
				_ = st.push(common.ZeroU256())
				return nil
			}
			ctx.World.AddBalance(target, value)
		}
	case CALLCODE:
		callCode = ctx.World.Code(target)
		callAddress = ctx.Address
		caller = ctx.Address
	case DELEGATECALL:
		callCode = ctx.World.Code(target)
		callAddress = ctx.Address
		caller = ctx.Caller
		value = ctx.Value
	case STATICCALL:
		callCode = ctx.World.Code(target)
		callAddress = target
		caller = ctx.Address
		readOnly = true
	}

	res := in.Run(&Context{
		World:    ctx.World,
		Address:  callAddress,
		Caller:   caller,
		Origin:   ctx.Origin,
		Code:     callCode,
		Input:    common.Bytes(args),
		Value:    value,
		Gas:      childGas,
		Depth:    ctx.Depth + 1,
		ReadOnly: ctx.ReadOnly || readOnly,
	})
	*gas += childGas - res.GasUsed

	out := res.Output
	if uint64(len(out)) > retSize {
		out = out[:retSize]
	}
	mem.set(retOffset, uint64(len(out)), out)

	if res.Failure != nil || res.Reverted {
		ctx.World.Journal().RevertToSnapshot(ctx.World, snapshot)
		_ = st.push(common.ZeroU256())
		return nil
	}
	*logs = append(*logs, res.Logs...)
	_ = st.push(common.NewU256(1))
	return nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
