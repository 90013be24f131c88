package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parables-dev/parables/common"
)

func TestStackPushPopOrder(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(common.NewU256(1)))
	require.NoError(t, s.push(common.NewU256(2)))

	top, err := s.pop()
	require.NoError(t, err)
	require.Equal(t, uint64(2), top.Uint64())

	second, err := s.pop()
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.Uint64())
}

func TestStackPopUnderflow(t *testing.T) {
	s := newStack()
	_, err := s.pop()
	require.Error(t, err)
	require.Equal(t, StackUnderflow, err.(*VmFailure).Kind)
}

func TestStackPushOverflow(t *testing.T) {
	s := newStack()
	for i := 0; i < stackLimit; i++ {
		require.NoError(t, s.push(common.NewU256(uint64(i))))
	}
	err := s.push(common.NewU256(9999))
	require.Error(t, err)
	require.Equal(t, StackOverflow, err.(*VmFailure).Kind)
}

func TestStackDupCopiesWithoutAliasing(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(common.NewU256(5)))
	require.NoError(t, s.dup(1))
	require.Equal(t, 2, s.len())

	top, _ := s.pop()
	top.SetUint64(999)
	under, _ := s.pop()
	require.Equal(t, uint64(5), under.Uint64(), "dup must copy, not alias, the duplicated slot")
}

func TestStackSwap(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(common.NewU256(1)))
	require.NoError(t, s.push(common.NewU256(2)))
	require.NoError(t, s.swap(1))

	top, _ := s.pop()
	require.Equal(t, uint64(1), top.Uint64())
	bottom, _ := s.pop()
	require.Equal(t, uint64(2), bottom.Uint64())
}
