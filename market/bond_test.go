package market

import (
	"testing"

	"github.com/coinswapd/coinswapd/swapwire"
)

func TestBondValueMonotonicInLockedAmount(t *testing.T) {
	const height = 100
	small := swapwire.Bond{LockedAmount: 10_000, LocktimeHeight: height + blocksPerYear}
	large := swapwire.Bond{LockedAmount: 20_000, LocktimeHeight: height + blocksPerYear}

	if BondValue(small, height) >= BondValue(large, height) {
		t.Fatalf("expected larger locked amount to score higher")
	}
}

func TestBondValueMonotonicInRemainingLocktime(t *testing.T) {
	const height = 100
	short := swapwire.Bond{LockedAmount: 10_000, LocktimeHeight: height + blocksPerYear/2}
	long := swapwire.Bond{LockedAmount: 10_000, LocktimeHeight: height + blocksPerYear*2}

	if BondValue(short, height) >= BondValue(long, height) {
		t.Fatalf("expected longer remaining locktime to score higher")
	}
}

func TestBondValueZeroForExpiredBond(t *testing.T) {
	bond := swapwire.Bond{LockedAmount: 10_000, LocktimeHeight: 100}
	if v := BondValue(bond, 200); v != 0 {
		t.Fatalf("expected expired bond to score 0, got %d", v)
	}
}
