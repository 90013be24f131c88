package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parables-dev/parables/common"
)

// binOp must compute top OP second, where top is the value popped first
// (the stack's original top element) — getting this backwards is silent
// for commutative opcodes but wrong for every one of these.
func pushTwo(t *testing.T, top, second uint64) *stack {
	s := newStack()
	require.NoError(t, s.push(common.NewU256(second)))
	require.NoError(t, s.push(common.NewU256(top)))
	return s
}

func TestBinOpSubIsTopMinusSecond(t *testing.T) {
	s := pushTwo(t, 10, 3)
	require.Nil(t, binOp(s, SUB))
	result, _ := s.pop()
	require.Equal(t, uint64(7), result.Uint64())
}

func TestBinOpDivIsTopOverSecond(t *testing.T) {
	s := pushTwo(t, 10, 2)
	require.Nil(t, binOp(s, DIV))
	result, _ := s.pop()
	require.Equal(t, uint64(5), result.Uint64())
}

func TestBinOpLtComparesTopAgainstSecond(t *testing.T) {
	s := pushTwo(t, 3, 10)
	require.Nil(t, binOp(s, LT))
	result, _ := s.pop()
	require.Equal(t, uint64(1), result.Uint64(), "3 < 10 is true")

	s2 := pushTwo(t, 10, 3)
	require.Nil(t, binOp(s2, LT))
	result2, _ := s2.pop()
	require.Equal(t, uint64(0), result2.Uint64(), "10 < 3 is false")
}

func TestBinOpGtComparesTopAgainstSecond(t *testing.T) {
	s := pushTwo(t, 10, 3)
	require.Nil(t, binOp(s, GT))
	result, _ := s.pop()
	require.Equal(t, uint64(1), result.Uint64(), "10 > 3 is true")
}

func TestBinOpModIsTopModSecond(t *testing.T) {
	s := pushTwo(t, 10, 3)
	require.Nil(t, binOp(s, MOD))
	result, _ := s.pop()
	require.Equal(t, uint64(1), result.Uint64())
}

func TestBinOpShlShiftsSecondByTop(t *testing.T) {
	// SHL's operands are (shift amount=top, value=second): 1 << 4 == 16.
	s := pushTwo(t, 4, 1)
	require.Nil(t, binOp(s, SHL))
	result, _ := s.pop()
	require.Equal(t, uint64(16), result.Uint64())
}

func TestBinOpByteExtractsIndexedByte(t *testing.T) {
	// BYTE's operands are (index=top, value=second); index 31 is the
	// least significant byte.
	s := pushTwo(t, 31, 0x1234)
	require.Nil(t, binOp(s, BYTE))
	result, _ := s.pop()
	require.Equal(t, uint64(0x34), result.Uint64())
}

func TestBinOpAddIsCommutative(t *testing.T) {
	s := pushTwo(t, 2, 3)
	require.Nil(t, binOp(s, ADD))
	result, _ := s.pop()
	require.Equal(t, uint64(5), result.Uint64())
}

func TestTriOpAddModIsCommutativeOverSum(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(common.NewU256(7))) // modulus
	require.NoError(t, s.push(common.NewU256(5)))
	require.NoError(t, s.push(common.NewU256(10)))
	require.Nil(t, triOp(s, ADDMOD))
	result, _ := s.pop()
	require.Equal(t, uint64((10+5)%7), result.Uint64())
}
