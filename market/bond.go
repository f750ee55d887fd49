package market

import (
	"math/bits"

	"github.com/coinswapd/coinswapd/swapwire"
)

// blocksPerYear approximates one year of mainnet blocks at the ~10 minute
// target spacing. Used only to convert a bond's remaining locktime into a
// duration for the value calculation below; it is not a consensus constant.
const blocksPerYear = 365 * 24 * 6

// interestRatePPM is the annualized rate (parts per million) used to value
// the opportunity cost of a bond's locked coins, frozen for this release
// rather than advertised or negotiated per bond. At this rate the linear
// term (locked * rate * remaining years) is below the quadratic term
// whenever locked exceeds 0.01 * remaining years satoshis, so the linear
// term sets the value of every bond larger than a few satoshis; the
// quadratic term only caps bonds of a handful of satoshis.
const interestRatePPM = 10000

// ChainHeightSource reports the current best-block height, used to derive
// how much locktime a bond has left.
type ChainHeightSource interface {
	CurrentHeight() (uint32, error)
}

// BondValue scores a fidelity bond for maker-selection weighting. It is
// monotonically increasing in both locked amount and remaining locktime,
// but bounded above by lockedAmount^2 so that a bond locked for an
// implausibly long duration cannot dominate selection on locktime alone.
//
//	value = min(lockedAmount^2, lockedAmount * interestRatePPM/1e6 * remainingYears)
func BondValue(bond swapwire.Bond, currentHeight uint32) uint64 {
	if bond.LocktimeHeight <= currentHeight {
		return 0
	}

	remainingBlocks := uint64(bond.LocktimeHeight - currentHeight)
	locked := bond.LockedAmount

	qHi, quadratic := bits.Mul64(locked, locked)

	// remainingYears scaled by 1e6 to keep interestRatePPM's precision
	// without floating point: locked * interestRatePPM * remainingBlocks
	// / (blocksPerYear * 1e6).
	linear := mulDiv(locked*interestRatePPM, remainingBlocks, blocksPerYear*1_000_000)

	if qHi != 0 || linear < quadratic {
		return linear
	}
	return quadratic
}

// mulDiv computes a*b/c using a 128-bit intermediate product to avoid
// overflow on the amounts and block counts BondValue multiplies together.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}
