package swapdb

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinswapd/coinswapd/swapwire"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutFetchOfferRoundTrip(t *testing.T) {
	db := openTestDB(t)

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}

	offer := swapwire.Offer{
		OnionAddress: "abc.onion",
		Fee:          swapwire.FeeModel{AbsoluteFeeSats: 500},
		ExpiryHeight: 123,
	}
	bond := swapwire.Bond{
		Outpoint:       wire.OutPoint{Index: 1},
		LockedAmount:   50_000,
		LocktimeHeight: 700_000,
		BondPubkey:     priv.PubKey(),
	}

	if err := db.PutOffer("abc.onion", offer, bond); err != nil {
		t.Fatalf("PutOffer: %v", err)
	}

	gotOffer, gotBond, err := db.FetchOffer("abc.onion")
	if err != nil {
		t.Fatalf("FetchOffer: %v", err)
	}
	if gotOffer.OnionAddress != offer.OnionAddress {
		t.Fatalf("onion address mismatch: got %q want %q",
			gotOffer.OnionAddress, offer.OnionAddress)
	}
	if gotBond.LockedAmount != bond.LockedAmount {
		t.Fatalf("locked amount mismatch: got %d want %d",
			gotBond.LockedAmount, bond.LockedAmount)
	}

	if err := db.DeleteOffer("abc.onion"); err != nil {
		t.Fatalf("DeleteOffer: %v", err)
	}
	if _, _, err := db.FetchOffer("abc.onion"); err != ErrOfferNotFound {
		t.Fatalf("expected ErrOfferNotFound after delete, got %v", err)
	}
}

func TestBanBond(t *testing.T) {
	db := openTestDB(t)

	const outpoint = "deadbeef:0"
	banned, _, err := db.IsBondBanned(outpoint)
	if err != nil {
		t.Fatalf("IsBondBanned: %v", err)
	}
	if banned {
		t.Fatalf("expected unbanned bond before BanBond")
	}

	if err := db.BanBond(outpoint, 800_000); err != nil {
		t.Fatalf("BanBond: %v", err)
	}

	banned, until, err := db.IsBondBanned(outpoint)
	if err != nil {
		t.Fatalf("IsBondBanned: %v", err)
	}
	if !banned {
		t.Fatalf("expected banned bond after BanBond")
	}
	if until != 800_000 {
		t.Fatalf("ban height mismatch: got %d want %d", until, 800_000)
	}
}
