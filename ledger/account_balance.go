package ledger

import (
	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/evm"
)

// AccountBalance is the LedgerState[*common.U256] specialization §4.5
// names explicitly: entries are balances, synced and verified straight
// off an Evm.
type AccountBalance struct {
	e *evm.Evm
}

// NewAccountBalanceLedger builds a Ledger tracking account balances
// against e's current World.
func NewAccountBalanceLedger(e *evm.Evm) *Ledger[*common.U256] {
	return New[*common.U256](&AccountBalance{e: e})
}

func (a *AccountBalance) NewInstance() *common.U256 { return common.ZeroU256() }

func (a *AccountBalance) Sync(addr common.Address) *common.U256 {
	return a.e.Balance(addr)
}

func (a *AccountBalance) Verify(addr common.Address, expected *common.U256) error {
	actual := a.e.Balance(addr)
	if !actual.Eq(expected) {
		return errors.Errorf("have %s, want %s", actual, expected)
	}
	return nil
}

// AddBalance increases addr's expected balance by delta.
func AddBalance(l *Ledger[*common.U256], addr common.Address, delta *common.U256) error {
	return Add(l, addr, delta, func(cur, d *common.U256) *common.U256 {
		return new(common.U256).Add(cur, d)
	})
}

// SubBalance decreases addr's expected balance by delta.
func SubBalance(l *Ledger[*common.U256], addr common.Address, delta *common.U256) error {
	return Add(l, addr, delta, func(cur, d *common.U256) *common.U256 {
		return new(common.U256).Sub(cur, d)
	})
}
