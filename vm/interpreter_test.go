package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/params"
	"github.com/parables-dev/parables/state"
)

func push1(v byte) []byte { return []byte{byte(PUSH1), v} }

func runCode(t *testing.T, code []byte, gas uint64) *ExecutionResult {
	in := NewInterpreter(params.InstantSeal.Gas())
	w := state.New(params.InstantSeal)
	return in.Run(&Context{
		World:   w,
		Address: common.HexToAddress("0x00000000000000000000000000000000000c0de"),
		Code:    code,
		Gas:     gas,
	})
}

func TestInterpreterAddAndReturn(t *testing.T) {
	var code []byte
	code = append(code, push1(2)...)
	code = append(code, push1(3)...)
	code = append(code, byte(ADD))
	code = append(code, push1(0)...) // MSTORE offset (top); the sum is already
	// beneath it on the stack (second), exactly the order MSTORE expects.
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...) // RETURN size
	code = append(code, push1(0)...)  // RETURN offset
	code = append(code, byte(RETURN))

	res := runCode(t, code, 100_000)
	require.Nil(t, res.Failure)
	require.False(t, res.Reverted)
	require.True(t, common.NewU256(5).Eq(new(common.U256).SetBytes32(res.Output)))
}

func TestInterpreterSstoreSloadRoundTrip(t *testing.T) {
	var code []byte
	code = append(code, push1(42)...) // value
	code = append(code, push1(0)...)  // key
	code = append(code, byte(SSTORE))
	code = append(code, push1(0)...) // key
	code = append(code, byte(SLOAD))
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(RETURN))

	res := runCode(t, code, 100_000)
	require.Nil(t, res.Failure)
	require.True(t, common.NewU256(42).Eq(new(common.U256).SetBytes32(res.Output)))
}

func TestInterpreterJumpiSkipsWhenConditionZero(t *testing.T) {
	// PUSH1 0 (cond) ; PUSH1 <dest> ; JUMPI ; PUSH1 1 ; PUSH1 0 ; MSTORE ;
	// PUSH1 32 ; PUSH1 0 ; RETURN ; JUMPDEST ; PUSH1 2 ; PUSH1 0 ; MSTORE ;
	// PUSH1 32 ; PUSH1 0 ; RETURN
	dest := byte(2 + 2 + 1 + 2 + 2 + 1 + 2 + 2 + 1) // offset of JUMPDEST
	var code []byte
	code = append(code, push1(0)...)    // cond = false
	code = append(code, push1(dest)...) // jump target
	code = append(code, byte(JUMPI))
	code = append(code, push1(1)...)
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(RETURN))
	code = append(code, byte(JUMPDEST))
	code = append(code, push1(2)...)
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(RETURN))

	require.Equal(t, JUMPDEST, OpCode(code[dest]))

	res := runCode(t, code, 100_000)
	require.Nil(t, res.Failure)
	require.True(t, common.NewU256(1).Eq(new(common.U256).SetBytes32(res.Output)), "a false JUMPI condition must not jump")
}

func TestInterpreterOutOfGasFails(t *testing.T) {
	code := push1(1)
	res := runCode(t, code, 0)
	require.NotNil(t, res.Failure)
	require.Equal(t, OutOfGas, res.Failure.Kind)
}

func TestInterpreterRevertCarriesOutput(t *testing.T) {
	var code []byte
	code = append(code, push1(99)...)
	code = append(code, push1(0)...)
	code = append(code, byte(MSTORE))
	code = append(code, push1(32)...)
	code = append(code, push1(0)...)
	code = append(code, byte(REVERT))

	res := runCode(t, code, 100_000)
	require.Nil(t, res.Failure)
	require.True(t, res.Reverted)
	require.True(t, common.NewU256(99).Eq(new(common.U256).SetBytes32(res.Output)))
}
