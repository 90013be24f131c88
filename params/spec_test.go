package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoundationString(t *testing.T) {
	require.Equal(t, "Null", Null.String())
	require.Equal(t, "InstantSeal", InstantSeal.String())
	require.Equal(t, "Morden", Morden.String())
	require.Equal(t, "Unknown", Foundation(99).String())
}

func TestNullAndInstantSealShareModernSchedule(t *testing.T) {
	require.Equal(t, Null.Gas(), InstantSeal.Gas())
	require.Equal(t, uint64(21000), Null.Gas().TxGas)
	require.Equal(t, uint64(25000), InstantSeal.Gas().CallNewAccountGas)
}

func TestMordenUsesLegacySchedule(t *testing.T) {
	g := Morden.Gas()
	require.Equal(t, uint64(0), g.CallNewAccountGas)
	require.Equal(t, uint64(1), g.SstoreRefundCapDivisor)
	require.Equal(t, uint64(21000), g.TxGas, "legacy schedule only overrides call-account cost and refund cap")
}

func TestMaxCallGas(t *testing.T) {
	require.Equal(t, uint64(10_000_000), Null.MaxCallGas())
	require.Equal(t, Null.MaxCallGas(), Morden.MaxCallGas())
}
