package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
	"github.com/parables-dev/parables/params"
	"github.com/parables-dev/parables/state"
)

var callerAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de")
var calleeAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")

func runWith(t *testing.T, w *state.World, addr common.Address, code []byte, gas uint64) *ExecutionResult {
	in := NewInterpreter(params.InstantSeal.Gas())
	return in.Run(&Context{World: w, Address: addr, Code: code, Gas: gas})
}

// calleeReturns5 returns a fixed 32-byte word holding 5.
func calleeReturns5() []byte {
	var code []byte
	code = append(code, push1(5)...)
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(RETURN))
	return code
}

func TestExecCallDelegatesAndCapturesReturnData(t *testing.T) {
	w := state.New(params.InstantSeal)
	w.SetCode(calleeAddr, common.Bytes(calleeReturns5()))

	var code []byte
	code = append(code, push1(32)...)  // retSize
	code = append(code, push1(0)...)   // retOffset
	code = append(code, push1(0)...)   // argsSize
	code = append(code, push1(0)...)   // argsOffset
	code = append(code, push1(0)...)   // value
	code = append(code, push1(1)...)   // addr = calleeAddr
	code = append(code, push1(100)...) // callGas
	code = append(code, byte(CALL))
	code = append(code, push1(32)...) // RETURN size
	code = append(code, push1(0)...)  // RETURN offset
	code = append(code, byte(RETURN))

	res := runWith(t, w, callerAddr, code, 100_000)
	require.Nil(t, res.Failure)
	require.False(t, res.Reverted)
	require.True(t, common.NewU256(5).Eq(new(common.U256).SetBytes32(res.Output)))
}

func TestExecCallTransfersValue(t *testing.T) {
	w := state.New(params.InstantSeal)
	w.AddBalance(callerAddr, common.NewU256(1000))
	w.SetCode(calleeAddr, common.Bytes{byte(STOP)})

	var code []byte
	code = append(code, push1(0)...)   // retSize
	code = append(code, push1(0)...)   // retOffset
	code = append(code, push1(0)...)   // argsSize
	code = append(code, push1(0)...)   // argsOffset
	code = append(code, push1(7)...)   // value
	code = append(code, push1(1)...)   // addr
	code = append(code, push1(200)...) // callGas
	code = append(code, byte(CALL))
	code = append(code, byte(STOP))

	res := runWith(t, w, callerAddr, code, 100_000)
	require.Nil(t, res.Failure)
	require.True(t, common.NewU256(7).Eq(w.Balance(calleeAddr)))
	require.True(t, common.NewU256(993).Eq(w.Balance(callerAddr)))
}

func TestExecCallPushesZeroOnChildFailure(t *testing.T) {
	w := state.New(params.InstantSeal)
	w.SetCode(calleeAddr, common.Bytes{byte(INVALID)})

	var code []byte
	code = append(code, push1(0)...)
	code = append(code, push1(0)...)
	code = append(code, push1(0)...)
	code = append(code, push1(0)...)
	code = append(code, push1(0)...)
	code = append(code, push1(1)...)
	code = append(code, push1(100)...)
	code = append(code, byte(CALL))
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(RETURN))

	res := runWith(t, w, callerAddr, code, 100_000)
	require.Nil(t, res.Failure)
	require.True(t, common.NewU256(0).Eq(new(common.U256).SetBytes32(res.Output)), "a failed child call must push 0, not revert the caller")
}

// calleeStoresThenReverts writes 99 to storage slot 1, then reverts —
// both the SSTORE and the caller's preceding value transfer must unwind.
func calleeStoresThenReverts() []byte {
	var code []byte
	code = append(code, push1(99)...)
	code = append(code, push1(1)...)
	code = append(code, byte(SSTORE))
	code = append(code, push1(0)...)
	code = append(code, push1(0)...)
	code = append(code, byte(REVERT))
	return code
}

func TestExecCallRevertsChildStorageAndValueTransfer(t *testing.T) {
	w := state.New(params.InstantSeal)
	w.AddBalance(callerAddr, common.NewU256(1000))
	w.SetCode(calleeAddr, common.Bytes(calleeStoresThenReverts()))

	var code []byte
	code = append(code, push1(0)...)   // retSize
	code = append(code, push1(0)...)   // retOffset
	code = append(code, push1(0)...)   // argsSize
	code = append(code, push1(0)...)   // argsOffset
	code = append(code, push1(7)...)   // value
	code = append(code, push1(1)...)   // addr = calleeAddr
	// callGas = 30000 (PUSH2): enough for the callee's 20000-gas SSTORE,
	// so it reaches its REVERT instead of running out of gas.
	code = append(code, byte(PUSH1)+1, 0x75, 0x30)
	code = append(code, byte(CALL))
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(RETURN))

	res := runWith(t, w, callerAddr, code, 100_000)
	require.Nil(t, res.Failure)
	require.True(t, common.NewU256(0).Eq(new(common.U256).SetBytes32(res.Output)), "a reverted child call must push 0")

	require.True(t, common.NewU256(1000).Eq(w.Balance(callerAddr)), "value transfer to a reverted callee must unwind")
	require.True(t, common.NewU256(0).Eq(w.Balance(calleeAddr)), "the reverted callee must not keep the transferred value")
	require.Equal(t, common.Hash{}, w.StorageGet(calleeAddr, common.HexToHash("0x01")), "a reverted callee's storage write must unwind")
}

func TestExecCreateDeploysAtDerivedAddressAndBumpsNonce(t *testing.T) {
	w := state.New(params.InstantSeal)
	w.AddBalance(callerAddr, common.NewU256(1_000_000))

	wantAddr := crypto.CreateAddress(callerAddr, w.Nonce(callerAddr))

	// Init code is a single STOP byte, written into memory at offset 0,
	// then deployed via CREATE(value=0, offset=0, size=1).
	var code []byte
	code = append(code, push1(byte(STOP))...)
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE8))
	code = append(code, push1(1)...) // size
	code = append(code, push1(0)...) // offset
	code = append(code, push1(0)...) // value
	code = append(code, byte(CREATE))
	code = append(code, byte(STOP))

	res := runWith(t, w, callerAddr, code, 1_000_000)
	require.Nil(t, res.Failure)
	require.Equal(t, uint64(1), w.Nonce(callerAddr))
	require.True(t, w.Exists(wantAddr))
}

func TestExecCreateValueTransfersToNewAccount(t *testing.T) {
	w := state.New(params.InstantSeal)
	w.AddBalance(callerAddr, common.NewU256(1_000_000))
	wantAddr := crypto.CreateAddress(callerAddr, w.Nonce(callerAddr))

	var code []byte
	code = append(code, push1(byte(STOP))...)
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE8))
	code = append(code, push1(1)...)  // size
	code = append(code, push1(0)...)  // offset
	code = append(code, push1(99)...) // value
	code = append(code, byte(CREATE))
	code = append(code, byte(STOP))

	res := runWith(t, w, callerAddr, code, 1_000_000)
	require.Nil(t, res.Failure)
	require.True(t, common.NewU256(99).Eq(w.Balance(wantAddr)))
}
