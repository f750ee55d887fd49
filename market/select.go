package market

import (
	"math/rand"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"

	"github.com/coinswapd/coinswapd/swapwire"
)

// CandidateOffer pairs an offer with its backing bond, bond signature, and
// the onion address it was fetched from, the unit OfferBook and
// SelectRoute operate on. BondSig is nil once an offer has been
// authenticated and cached, since the cache itself only holds offers that
// already passed signature verification.
type CandidateOffer struct {
	OnionAddress string
	Offer        swapwire.Offer
	Bond         swapwire.Bond
	BondSig      *ecdsa.Signature
}

// SelectRoute picks hopCount distinct makers from candidates by weighted
// random sampling proportional to bond value, after dropping any offer
// whose advertised minimum fee exceeds maxFeeSats and without ever
// selecting the same bond outpoint twice. rng is injected so route
// selection is reproducible in tests.
func SelectRoute(candidates []CandidateOffer, hopCount int, maxFeeSats uint64,
	currentHeight uint32, rng *rand.Rand) ([]CandidateOffer, error) {

	pool := make([]CandidateOffer, 0, len(candidates))
	weights := make([]uint64, 0, len(candidates))
	seenBonds := make(map[wireOutpointKey]bool)

	for _, c := range candidates {
		if c.Offer.Fee.AbsoluteFeeSats > maxFeeSats {
			continue
		}
		key := outpointKey(c.Bond.Outpoint)
		if seenBonds[key] {
			continue
		}
		weight := BondValue(c.Bond, currentHeight)
		if weight == 0 {
			continue
		}
		seenBonds[key] = true
		pool = append(pool, c)
		weights = append(weights, weight)
	}

	if len(pool) < hopCount {
		return nil, errors.Errorf(
			"market: only %d eligible offers for a %d-hop route", len(pool), hopCount)
	}

	// Zeroing a picked entry's weight after each draw removes it from
	// further consideration; since pool holds only positive weights and
	// len(pool) >= hopCount, a positive-weight entry always remains for
	// every draw.
	selected := make([]CandidateOffer, 0, hopCount)
	for len(selected) < hopCount {
		idx := weightedPick(weights, rng)
		selected = append(selected, pool[idx])
		weights[idx] = 0
	}

	return selected, nil
}

// weightedPick returns an index into weights chosen with probability
// proportional to its value. Callers must ensure at least one entry is
// non-zero.
func weightedPick(weights []uint64, rng *rand.Rand) int {
	var total uint64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return 0
	}

	target := uint64(rng.Int63n(int64(total)))
	var cumulative uint64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

type wireOutpointKey [36]byte

func outpointKey(op wire.OutPoint) wireOutpointKey {
	var key wireOutpointKey
	copy(key[:32], op.Hash[:])
	key[32] = byte(op.Index)
	key[33] = byte(op.Index >> 8)
	key[34] = byte(op.Index >> 16)
	key[35] = byte(op.Index >> 24)
	return key
}
