package market

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"

	"github.com/coinswapd/coinswapd/swapscript"
	"github.com/coinswapd/coinswapd/swapwire"
)

// UtxoSource answers whether a given outpoint is currently unspent, and if
// so, the value and pkScript it carries. Implemented by the wallet's chain
// view; a thin seam so validation can be tested without a live chain.
type UtxoSource interface {
	FetchUtxo(op wire.OutPoint) (value btcutil.Amount, pkScript []byte, spent bool, err error)
}

// BanList answers whether a bond outpoint is currently on the local ban
// list. Implemented by swapdb in the running daemon.
type BanList interface {
	IsBondBanned(outpointStr string) (bool, uint32, error)
}

// AuthenticateOffer runs every check a client must pass before trusting an
// advertised offer: the bond UTXO is unspent and pays the canonical bond
// script for the claimed pubkey and locktime, the claimed locked amount
// matches the UTXO's value, the bond signature over the offer body is
// valid, and the bond is not locally banned.
func AuthenticateOffer(offer swapwire.Offer, bond swapwire.Bond, bondSig *ecdsa.Signature,
	utxos UtxoSource, bans BanList, currentHeight uint32) error {

	if bond.LocktimeHeight <= currentHeight {
		return errors.New("market: bond locktime has already expired")
	}

	value, pkScript, spent, err := utxos.FetchUtxo(bond.Outpoint)
	if err != nil {
		return errors.WrapPrefix(err, "market: fetching bond utxo", 0)
	}
	if spent {
		return errors.New("market: bond utxo is already spent")
	}
	if value != btcutil.Amount(bond.LockedAmount) {
		return errors.New("market: bond utxo value does not match advertised locked amount")
	}

	_, expectedOut, err := swapscript.BondOutput(bond.BondPubkey, bond.LocktimeHeight, value)
	if err != nil {
		return errors.WrapPrefix(err, "market: rebuilding expected bond script", 0)
	}
	if !bytes.Equal(expectedOut.PkScript, pkScript) {
		return errors.New("market: bond utxo script is not the canonical bond form")
	}

	digest := offerSigningDigest(offer)
	if !bondSig.Verify(digest[:], bond.BondPubkey) {
		return errors.New("market: bond signature over offer body is invalid")
	}

	outpointStr := bond.Outpoint.String()
	banned, _, err := bans.IsBondBanned(outpointStr)
	if err != nil {
		return errors.WrapPrefix(err, "market: checking ban list", 0)
	}
	if banned {
		return errors.New("market: bond is on the local ban list")
	}

	return nil
}

// offerSigningDigest hashes the offer body a bond signature commits to:
// the onion address, fee model, and expiry height, in wire order.
func offerSigningDigest(offer swapwire.Offer) chainhash.Hash {
	var buf bytes.Buffer
	offer.Encode(&buf)
	return chainhash.DoubleHashH(buf.Bytes())
}
