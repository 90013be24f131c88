package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parables-dev/parables/common"
)

// fakeState is a minimal LedgerState[int] for exercising Ledger's generic
// bookkeeping independent of any real EVM-backed entry type.
type fakeState struct {
	truth map[common.Address]int
}

func (f *fakeState) NewInstance() int { return 0 }
func (f *fakeState) Sync(addr common.Address) int { return f.truth[addr] }
func (f *fakeState) Verify(addr common.Address, expected int) error {
	if f.truth[addr] != expected {
		return errorsNew("mismatch")
	}
	return nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func errorsNew(s string) error    { return simpleErr(s) }

var a1 = common.HexToAddress("0x000000000000000000000000000000000000a1a1")

func TestLedgerSyncAndExpected(t *testing.T) {
	fs := &fakeState{truth: map[common.Address]int{a1: 7}}
	l := New[int](fs)
	l.Sync(a1)

	got, ok := l.Expected(a1)
	require.True(t, ok)
	require.Equal(t, 7, got)

	base, ok := l.Baseline(a1)
	require.True(t, ok)
	require.Equal(t, 7, base)
}

func TestLedgerExpectedUnsyncedReportsFalse(t *testing.T) {
	fs := &fakeState{truth: map[common.Address]int{}}
	l := New[int](fs)
	_, ok := l.Expected(a1)
	require.False(t, ok)
}

func TestLedgerAddRequiresTrackedAddress(t *testing.T) {
	fs := &fakeState{truth: map[common.Address]int{}}
	l := New[int](fs)
	err := Add(l, a1, 1, func(cur, d int) int { return cur + d })
	require.Error(t, err)
}

func TestLedgerSetOverwritesExpected(t *testing.T) {
	fs := &fakeState{truth: map[common.Address]int{a1: 0}}
	l := New[int](fs)
	l.Sync(a1)
	require.NoError(t, l.Set(a1, 99))
	got, _ := l.Expected(a1)
	require.Equal(t, 99, got)
}

func TestLedgerVerifySucceedsWhenMirrored(t *testing.T) {
	fs := &fakeState{truth: map[common.Address]int{a1: 0}}
	l := New[int](fs)
	l.Sync(a1)

	fs.truth[a1] = 5
	require.NoError(t, Add(l, a1, 5, func(cur, d int) int { return cur + d }))
	require.NoError(t, l.Verify())
}

func TestLedgerVerifyReportsMismatch(t *testing.T) {
	fs := &fakeState{truth: map[common.Address]int{a1: 0}}
	l := New[int](fs)
	l.Sync(a1)

	fs.truth[a1] = 5 // world moves, ledger's expectation doesn't follow

	err := l.Verify()
	require.Error(t, err)
	me, ok := err.(*MismatchesError)
	require.True(t, ok)
	require.Len(t, me.Mismatches, 1)
	require.Equal(t, a1, me.Mismatches[0].Address)
	require.Equal(t, 0, me.Mismatches[0].Expected)
	require.Equal(t, 5, me.Mismatches[0].Actual)
}

func TestAccountBalanceLedgerAddSub(t *testing.T) {
	// AccountBalance itself is not exercised here; this covers the
	// generic Add/Sub helpers in isolation against a Ledger[*common.U256].
	fs := &accountBalanceFake{}
	l := New[*common.U256](fs)
	l.Sync(a1)

	require.NoError(t, AddBalance(l, a1, common.NewU256(10)))
	require.NoError(t, SubBalance(l, a1, common.NewU256(3)))

	got, _ := l.Expected(a1)
	require.True(t, common.NewU256(7).Eq(got))
}

type accountBalanceFake struct{}

func (f *accountBalanceFake) NewInstance() *common.U256            { return common.ZeroU256() }
func (f *accountBalanceFake) Sync(common.Address) *common.U256     { return common.ZeroU256() }
func (f *accountBalanceFake) Verify(common.Address, *common.U256) error { return nil }
