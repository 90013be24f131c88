// Package vm treats the interpreter as the spec's opaque transaction
// executor: Executor hands it a World, an address to run as, and a
// message, and gets back gas usage, output, logs and status. The concrete
// Interpreter here is one such box — the harness could equally be pointed
// at a different one — but nested CALL/CREATE/DELEGATECALL/STATICCALL are
// its own internal business, not something Executor needs to know about.
package vm

import (
	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
	"github.com/parables-dev/parables/params"
	"github.com/parables-dev/parables/state"
)

// LogEntry is a single emitted log, before the Evm façade tags it with a
// call_index.
type LogEntry struct {
	Address common.Address
	Topics  []common.Hash
	Data    common.Bytes
}

// ExecutionResult is what Interpreter.Run returns: gas usage plus either a
// normal/returned output, a revert, or a fatal VmFailure.
type ExecutionResult struct {
	Output   common.Bytes
	GasUsed  uint64
	Logs     []LogEntry
	Reverted bool
	Failure  *VmFailure
}

// Context is one call frame: the World it runs against, the code it
// executes (which for CREATE is the constructor's init code, not
// World.Code(Address)), and the message parameters.
type Context struct {
	World    *state.World
	Address  common.Address
	Caller   common.Address
	Origin   common.Address
	Code     common.Bytes
	Input    common.Bytes
	Value    *common.U256
	Gas      uint64
	Depth    int
	ReadOnly bool
}

const maxCallDepth = 1024

// Interpreter is a stack-machine EVM implementation, structured after the
// teacher's core/vm/interpreter.go main loop and jump table.
type Interpreter struct {
	schedule params.GasSchedule
}

// NewInterpreter builds an Interpreter charging under the given gas
// schedule.
func NewInterpreter(schedule params.GasSchedule) *Interpreter {
	return &Interpreter{schedule: schedule}
}

// Run executes ctx.Code against ctx.World, starting at pc 0.
func (in *Interpreter) Run(ctx *Context) *ExecutionResult {
	if ctx.Depth > maxCallDepth {
		return &ExecutionResult{Failure: newFailure(OutOfGas)}
	}

	st := newStack()
	mem := newMemory()
	dests := jumpDests(ctx.Code)

	gas := ctx.Gas
	pc := uint64(0)
	var logs []LogEntry

	consume := func(amount uint64) bool {
		if gas < amount {
			gas = 0
			return false
		}
		gas -= amount
		return true
	}

	fail := func(kind FailureKind) *ExecutionResult {
		return &ExecutionResult{GasUsed: ctx.Gas, Failure: newFailure(kind)}
	}

	code := ctx.Code

	for {
		if pc >= uint64(len(code)) {
			return &ExecutionResult{GasUsed: ctx.Gas - gas, Logs: logs}
		}

		op := OpCode(code[pc])
		if !consume(in.staticGas(op)) {
			return fail(OutOfGas)
		}

		switch {
		case isPush(op):
			n := pushSize(op)
			var b [32]byte
			end := pc + 1 + uint64(n)
			src := code[min64(pc+1, uint64(len(code))):min64(end, uint64(len(code)))]
			copy(b[32-len(src):], src)
			var v common.U256
			v.SetBytes32(b[:])
			if err := st.push(&v); err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			pc = end
			continue

		case isDup(op):
			if err := st.dup(dupN(op)); err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			pc++
			continue

		case isSwap(op):
			if err := st.swap(swapN(op)); err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			pc++
			continue

		case isLog(op):
			res := in.execLog(ctx, st, mem, logN(op), &gas, &logs)
			if res != nil {
				return res
			}
			pc++
			continue
		}

		switch op {
		case STOP:
			return &ExecutionResult{GasUsed: ctx.Gas - gas, Logs: logs}

		case ADD, MUL, SUB, DIV, SDIV, MOD, SMOD, LT, GT, SLT, SGT, EQ, AND, OR, XOR, SHL, SHR, SAR, BYTE, SIGNEXTEND:
			if r := binOp(st, op); r != nil {
				return fail(r.Kind)
			}

		case ADDMOD, MULMOD:
			if r := triOp(st, op); r != nil {
				return fail(r.Kind)
			}

		case EXP:
			base, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			exp, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			if !consume(uint64(10 + 50*byteLen(exp))) {
				return fail(OutOfGas)
			}
			result := new(common.U256).Exp(base, exp)
			if err := st.push(result); err != nil {
				return fail(err.(*VmFailure).Kind)
			}

		case ISZERO:
			v, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			result := common.NewU256(0)
			if v.IsZero() {
				result = common.NewU256(1)
			}
			_ = st.push(result)

		case NOT:
			v, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			_ = st.push(new(common.U256).Not(v))

		case SHA3:
			offset, size, err := popOffsetSize(st)
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			if !consume(in.schedule.Sha3Gas + in.schedule.Sha3WordGas*wordCount(size)) {
				return fail(OutOfGas)
			}
			data := mem.get(offset, size)
			h := crypto.Keccak256Hash(data)
			_ = st.push(new(common.U256).SetBytes32(h[:]))

		case ADDRESS:
			_ = st.push(addrToU256(ctx.Address))
		case CALLER:
			_ = st.push(addrToU256(ctx.Caller))
		case ORIGIN:
			_ = st.push(addrToU256(ctx.Origin))
		case CALLVALUE:
			_ = st.push(new(common.U256).Set(ctx.Value))
		case CALLDATASIZE:
			_ = st.push(common.NewU256(uint64(len(ctx.Input))))
		case CODESIZE:
			_ = st.push(common.NewU256(uint64(len(code))))
		case RETURNDATASIZE:
			_ = st.push(common.NewU256(0))
		case GASPRICE:
			_ = st.push(common.ZeroU256())
		case TIMESTAMP:
			_ = st.push(common.NewU256(ctx.World.Context().BlockTimestamp))
		case NUMBER:
			_ = st.push(common.NewU256(ctx.World.Context().BlockNumber))
		case DIFFICULTY:
			_ = st.push(new(common.U256).Set(ctx.World.Context().Difficulty))
		case GASLIMIT:
			_ = st.push(common.NewU256(ctx.World.Context().GasLimit))
		case CHAINID:
			_ = st.push(common.NewU256(1))
		case COINBASE:
			_ = st.push(addrToU256(ctx.World.Context().Coinbase))
		case BLOCKHASH:
			if _, err := st.pop(); err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			_ = st.push(common.ZeroU256())
		case GAS:
			_ = st.push(common.NewU256(gas))
		case PC:
			_ = st.push(common.NewU256(pc))
		case MSIZE:
			_ = st.push(common.NewU256(uint64(mem.len())))

		case BALANCE:
			a, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			_ = st.push(ctx.World.Balance(u256ToAddr(a)))
		case SELFBALANCE:
			_ = st.push(ctx.World.Balance(ctx.Address))
		case EXTCODESIZE:
			a, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			_ = st.push(common.NewU256(uint64(len(ctx.World.Code(u256ToAddr(a))))))

		case CALLDATALOAD:
			off, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			_ = st.push(loadWord(ctx.Input, off.Uint64()))

		case CALLDATACOPY:
			if r := memCopy(st, mem, ctx.Input, in.schedule, &gas); r != nil {
				return fail(r.Kind)
			}
		case CODECOPY:
			if r := memCopy(st, mem, code, in.schedule, &gas); r != nil {
				return fail(r.Kind)
			}
		case RETURNDATACOPY:
			if r := memCopy(st, mem, nil, in.schedule, &gas); r != nil {
				return fail(r.Kind)
			}

		case POP:
			if _, err := st.pop(); err != nil {
				return fail(err.(*VmFailure).Kind)
			}

		case MLOAD:
			off, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			o := off.Uint64()
			if !consume(memExpansionCost(mem, o+32, in.schedule)) {
				return fail(OutOfGas)
			}
			_ = st.push(new(common.U256).SetBytes32(mem.get(o, 32)))

		case MSTORE:
			off, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			val, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			o := off.Uint64()
			if !consume(memExpansionCost(mem, o+32, in.schedule)) {
				return fail(OutOfGas)
			}
			mem.setWord(o, val)

		case MSTORE8:
			off, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			val, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			o := off.Uint64()
			if !consume(memExpansionCost(mem, o+1, in.schedule)) {
				return fail(OutOfGas)
			}
			mem.setByte(o, byte(val.Uint64()))

		case SLOAD:
			key, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			k := common.Hash(key.Bytes32())
			v := ctx.World.StorageGet(ctx.Address, k)
			_ = st.push(new(common.U256).SetBytes32(v[:]))

		case SSTORE:
			if ctx.ReadOnly {
				return fail(InvalidOpcode)
			}
			key, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			val, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			k := common.Hash(key.Bytes32())
			v := common.Hash(val.Bytes32())
			cur := ctx.World.StorageGet(ctx.Address, k)
			sstoreCost := in.schedule.SstoreResetGas
			if cur.IsZero() && !v.IsZero() {
				sstoreCost = in.schedule.SstoreSetGas
			}
			if !consume(sstoreCost) {
				return fail(OutOfGas)
			}
			ctx.World.StorageSet(ctx.Address, k, v)

		case JUMP:
			target, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			t := target.Uint64()
			if !dests[t] {
				return fail(BadJump)
			}
			pc = t
			continue

		case JUMPI:
			target, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			cond, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			if !cond.IsZero() {
				t := target.Uint64()
				if !dests[t] {
					return fail(BadJump)
				}
				pc = t
				continue
			}

		case JUMPDEST:
			// no-op marker

		case RETURN:
			offset, size, err := popOffsetSize(st)
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			if !consume(memExpansionCost(mem, offset+size, in.schedule)) {
				return fail(OutOfGas)
			}
			return &ExecutionResult{Output: mem.get(offset, size), GasUsed: ctx.Gas - gas, Logs: logs}

		case REVERT:
			offset, size, err := popOffsetSize(st)
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			return &ExecutionResult{Output: mem.get(offset, size), GasUsed: ctx.Gas - gas, Reverted: true}

		case INVALID:
			return fail(InvalidOpcode)

		case SELFDESTRUCT:
			beneficiary, err := st.pop()
			if err != nil {
				return fail(err.(*VmFailure).Kind)
			}
			bal := ctx.World.Balance(ctx.Address)
			ctx.World.AddBalance(u256ToAddr(beneficiary), bal)
			ctx.World.SetBalance(ctx.Address, common.ZeroU256())
			return &ExecutionResult{GasUsed: ctx.Gas - gas, Logs: logs}

		case CREATE:
			res := in.execCreate(ctx, st, mem, &gas, &logs)
			if res != nil {
				return res
			}

		case CALL, CALLCODE, DELEGATECALL, STATICCALL:
			res := in.execCall(ctx, st, mem, op, &gas, &logs)
			if res != nil {
				return res
			}

		default:
			return fail(InvalidOpcode)
		}

		pc++
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func addrToU256(a common.Address) *common.U256 {
	return new(common.U256).SetBytes(a.Bytes())
}

func u256ToAddr(v *common.U256) common.Address {
	b := v.Bytes32()
	return common.BytesToAddress(b[:])
}

func loadWord(data []byte, offset uint64) *common.U256 {
	var b [32]byte
	if offset < uint64(len(data)) {
		n := copy(b[:], data[offset:])
		_ = n
	}
	return new(common.U256).SetBytes32(b[:])
}

func byteLen(v *common.U256) int {
	b := v.Bytes32()
	for i, c := range b {
		if c != 0 {
			return 32 - i
		}
	}
	return 0
}

func popOffsetSize(st *stack) (uint64, uint64, error) {
	offset, err := st.pop()
	if err != nil {
		return 0, 0, err
	}
	size, err := st.pop()
	if err != nil {
		return 0, 0, err
	}
	return offset.Uint64(), size.Uint64(), nil
}

func memExpansionCost(m *memory, newLen uint64, schedule params.GasSchedule) uint64 {
	if newLen <= uint64(m.len()) {
		return 0
	}
	oldWords := wordCount(uint64(m.len()))
	newWords := wordCount(newLen)
	cost := func(words uint64) uint64 {
		return schedule.MemoryGas*words + (words*words)/schedule.QuadCoeffDiv
	}
	return cost(newWords) - cost(oldWords)
}

func memCopy(st *stack, mem *memory, src []byte, schedule params.GasSchedule, gas *uint64) *VmFailure {
	destOff, err := st.pop()
	if err != nil {
		return err.(*VmFailure)
	}
	srcOff, err := st.pop()
	if err != nil {
		return err.(*VmFailure)
	}
	size, err := st.pop()
	if err != nil {
		return err.(*VmFailure)
	}
	sz := size.Uint64()
	cost := memExpansionCost(mem, destOff.Uint64()+sz, schedule) + schedule.CopyGas*wordCount(sz)
	if *gas < cost {
		*gas = 0
		return newFailure(OutOfGas)
	}
	*gas -= cost

	so := srcOff.Uint64()
	var chunk []byte
	if src != nil {
		end := so + sz
		if so > uint64(len(src)) {
			so = uint64(len(src))
		}
		if end > uint64(len(src)) {
			end = uint64(len(src))
		}
		chunk = make([]byte, sz)
		copy(chunk, src[so:end])
	} else {
		chunk = make([]byte, sz)
	}
	mem.set(destOff.Uint64(), sz, chunk)
	return nil
}
