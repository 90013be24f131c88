package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/params"
)

var addr = common.HexToAddress("0x000000000000000000000000000000000000beef")

func TestAbsentAccountReadsAsZero(t *testing.T) {
	w := New(params.Null)
	require.False(t, w.Exists(addr))
	require.True(t, w.Balance(addr).IsZero())
	require.Equal(t, uint64(0), w.Nonce(addr))
	require.True(t, w.StorageGet(addr, common.Hash{}).IsZero())
}

func TestAddSubBalance(t *testing.T) {
	w := New(params.Null)
	w.AddBalance(addr, common.NewU256(100))
	require.True(t, common.NewU256(100).Eq(w.Balance(addr)))

	require.NoError(t, w.SubBalance(addr, common.NewU256(40)))
	require.True(t, common.NewU256(60).Eq(w.Balance(addr)))
}

func TestSubBalanceInsufficientFunds(t *testing.T) {
	w := New(params.Null)
	w.AddBalance(addr, common.NewU256(10))
	err := w.SubBalance(addr, common.NewU256(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, common.NewU256(10).Eq(w.Balance(addr)), "a failed debit must not mutate the balance")
}

func TestNonceAndCodeAndStorage(t *testing.T) {
	w := New(params.Null)
	w.IncNonce(addr)
	w.IncNonce(addr)
	require.Equal(t, uint64(2), w.Nonce(addr))

	w.SetCode(addr, common.Bytes{0x60, 0x00})
	require.Equal(t, common.Bytes{0x60, 0x00}, w.Code(addr))

	key := common.HexToHash("0x01")
	val := common.HexToHash("0x2a")
	w.StorageSet(addr, key, val)
	require.Equal(t, val, w.StorageGet(addr, key))

	w.StorageSet(addr, key, common.Hash{})
	require.True(t, w.StorageGet(addr, key).IsZero())
}

func TestJournalRevertUndoesMutationsSincesnapshot(t *testing.T) {
	w := New(params.Null)
	w.AddBalance(addr, common.NewU256(100))

	snap := w.Journal().Snapshot()
	w.AddBalance(addr, common.NewU256(50))
	w.IncNonce(addr)
	require.True(t, common.NewU256(150).Eq(w.Balance(addr)))

	w.Journal().RevertToSnapshot(w, snap)
	require.True(t, common.NewU256(100).Eq(w.Balance(addr)))
	require.Equal(t, uint64(0), w.Nonce(addr))
}

func TestCloneIsolatesMutations(t *testing.T) {
	w := New(params.Null)
	w.AddBalance(addr, common.NewU256(100))

	clone := w.Clone()
	clone.AddBalance(addr, common.NewU256(50))

	require.True(t, common.NewU256(100).Eq(w.Balance(addr)), "mutating a clone must not affect the original")
	require.True(t, common.NewU256(150).Eq(clone.Balance(addr)))
}

func TestCloneSharesUntouchedAccountsCheaply(t *testing.T) {
	w := New(params.Null)
	w.AddBalance(addr, common.NewU256(7))
	clone := w.Clone()
	require.True(t, w.Account(addr) == clone.Account(addr), "an account never written through the clone stays shared")
}

func TestTotalBalanceSumsAllAccounts(t *testing.T) {
	other := common.HexToAddress("0x000000000000000000000000000000000000dead")
	w := New(params.Null)
	w.AddBalance(addr, common.NewU256(10))
	w.AddBalance(other, common.NewU256(20))
	require.True(t, common.NewU256(30).Eq(w.TotalBalance()))
}

func TestAdvanceBlock(t *testing.T) {
	w := New(params.Null)
	before := w.Context()
	w.AdvanceBlock(1, 12)
	after := w.Context()
	require.Equal(t, before.BlockNumber+1, after.BlockNumber)
	require.Equal(t, before.BlockTimestamp+12, after.BlockTimestamp)
}
