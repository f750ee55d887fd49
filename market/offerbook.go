package market

import (
	"sync"

	"github.com/coinswapd/coinswapd/swapwire"
)

// OfferSource fetches the current offer book from the marketplace
// collaborator. Gossip/discovery between makers is out of scope here; a
// directory-server client implements this in the running daemon.
type OfferSource interface {
	FetchOffers() ([]CandidateOffer, error)
}

// Store persists cached offers and banned bonds across restarts.
type Store interface {
	BanList
	PutOffer(onionAddr string, offer swapwire.Offer, bond swapwire.Bond) error
	FetchOffer(onionAddr string) (swapwire.Offer, swapwire.Bond, error)
	DeleteOffer(onionAddr string) error
	ForEachOffer(cb func(onionAddr string, offer swapwire.Offer, bond swapwire.Bond) error) error
	BanBond(outpointStr string, untilHeight uint32) error
}

// OfferBook holds the client's locally cached, authenticated view of the
// marketplace. It is refreshed from an OfferSource each sync and filters
// out any offer whose backing bond is banned.
type OfferBook struct {
	mu     sync.RWMutex
	store  Store
	utxos  UtxoSource
	height ChainHeightSource
}

// NewOfferBook returns an OfferBook backed by store for persistence, utxos
// for bond UTXO checks, and height for the current chain tip.
func NewOfferBook(store Store, utxos UtxoSource, height ChainHeightSource) *OfferBook {
	return &OfferBook{
		store:  store,
		utxos:  utxos,
		height: height,
	}
}

// Sync fetches the latest offers from source, authenticates each one, and
// replaces the locally cached book with the set that passes. Offers that
// fail authentication are dropped silently; a malformed or dishonest offer
// is not itself grounds for a ban, only a failure observed mid-swap is.
func (b *OfferBook) Sync(source OfferSource) (int, error) {
	offers, err := source.FetchOffers()
	if err != nil {
		return 0, err
	}

	currentHeight, err := b.height.CurrentHeight()
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Drop every offer cached by an earlier sync, so the book afterwards
	// holds exactly this fetch's authenticated offers.
	var cached []string
	if err := b.store.ForEachOffer(func(onionAddr string, _ swapwire.Offer, _ swapwire.Bond) error {
		cached = append(cached, onionAddr)
		return nil
	}); err != nil {
		return 0, err
	}
	for _, onionAddr := range cached {
		if err := b.store.DeleteOffer(onionAddr); err != nil {
			return 0, err
		}
	}

	var stored int
	for _, c := range offers {
		err := AuthenticateOffer(c.Offer, c.Bond, c.BondSig, b.utxos, b.store, currentHeight)
		if err != nil {
			log.Debugf("dropping offer from %s: %v", c.OnionAddress, err)
			continue
		}
		if err := b.store.PutOffer(c.OnionAddress, c.Offer, c.Bond); err != nil {
			return stored, err
		}
		stored++
	}

	return stored, nil
}

// Candidates returns every currently cached offer whose bond is not
// banned, for use as input to SelectRoute.
func (b *OfferBook) Candidates() ([]CandidateOffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []CandidateOffer
	err := b.store.ForEachOffer(func(onionAddr string, offer swapwire.Offer, bond swapwire.Bond) error {
		banned, _, err := b.store.IsBondBanned(bond.Outpoint.String())
		if err != nil {
			return err
		}
		if banned {
			return nil
		}
		out = append(out, CandidateOffer{
			OnionAddress: onionAddr,
			Offer:        offer,
			Bond:         bond,
		})
		return nil
	})
	return out, err
}

// Ban marks the bond backing onionAddr's offer as banned until untilHeight
// and evicts the cached offer.
func (b *OfferBook) Ban(bond swapwire.Bond, onionAddr string, untilHeight uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.BanBond(bond.Outpoint.String(), untilHeight); err != nil {
		return err
	}
	return b.store.DeleteOffer(onionAddr)
}
