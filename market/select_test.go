package market

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/wire"

	"github.com/coinswapd/coinswapd/swapwire"
)

func makeCandidate(t *testing.T, idx byte, locked uint64, feeSats uint64) CandidateOffer {
	t.Helper()
	var hash [32]byte
	hash[0] = idx
	return CandidateOffer{
		OnionAddress: string([]byte{'a', idx}),
		Offer: swapwire.Offer{
			Fee: swapwire.FeeModel{AbsoluteFeeSats: feeSats},
		},
		Bond: swapwire.Bond{
			Outpoint:       wire.OutPoint{Hash: hash, Index: 0},
			LockedAmount:   locked,
			LocktimeHeight: 1_000_000,
		},
	}
}

func TestSelectRouteDistinctBonds(t *testing.T) {
	candidates := []CandidateOffer{
		makeCandidate(t, 1, 50_000, 100),
		makeCandidate(t, 2, 60_000, 100),
		makeCandidate(t, 3, 70_000, 100),
	}

	rng := rand.New(rand.NewSource(1))
	selected, err := SelectRoute(candidates, 2, 1000, 0, rng)
	if err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(selected))
	}
	if selected[0].Bond.Outpoint == selected[1].Bond.Outpoint {
		t.Fatalf("expected distinct bonds, got the same outpoint twice")
	}
}

func TestSelectRouteFiltersHighFee(t *testing.T) {
	candidates := []CandidateOffer{
		makeCandidate(t, 1, 50_000, 5000),
		makeCandidate(t, 2, 60_000, 5000),
	}

	rng := rand.New(rand.NewSource(1))
	_, err := SelectRoute(candidates, 1, 1000, 0, rng)
	if err == nil {
		t.Fatalf("expected an error when every offer exceeds the fee filter")
	}
}

func TestSelectRouteInsufficientCandidates(t *testing.T) {
	candidates := []CandidateOffer{makeCandidate(t, 1, 50_000, 100)}

	rng := rand.New(rand.NewSource(1))
	_, err := SelectRoute(candidates, 2, 1000, 0, rng)
	if err == nil {
		t.Fatalf("expected an error requesting more hops than eligible offers")
	}
}
