package main

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Utxo is a single spendable output as reported by ListUtxos, the shape
// list-utxo's RPC response is built from.
type Utxo struct {
	Outpoint wire.OutPoint
	Value    btcutil.Amount
	PkScript []byte
}

// Wallet is the narrow collaborator interface this daemon needs from the
// wallet subsystem named out of scope by the protocol description (key
// derivation, UTXO tracking, address book). Both taker.go and maker.go are
// written against this interface rather than a concrete wallet so that
// coinswapd can be embedded against any wallet backend satisfying it.
//
// Method names and the funding/signing split mirror lnd's own
// lnwallet.Signer / lnwallet.WalletController separation, narrowed to
// exactly what the coinswap protocol's funding and contract-signing steps
// need.
type Wallet interface {
	// NewMultisigPubkey returns a fresh public key this party controls,
	// to be used as one half of a hop's 2-of-2 funding output.
	NewMultisigPubkey() (*btcec.PublicKey, error)

	// PrivKeyFor returns the private key backing a pubkey previously
	// returned by NewMultisigPubkey, so it can be handed over to a
	// counterparty once a hop settles.
	PrivKeyFor(pub *btcec.PublicKey) (*btcec.PrivateKey, error)

	// BuildFundingTx constructs, but does not broadcast, a transaction
	// paying amount into pkScript, funded from this party's own UTXOs.
	BuildFundingTx(pkScript []byte, amount btcutil.Amount) (*wire.MsgTx, error)

	// Broadcast submits a fully signed transaction to the network.
	Broadcast(tx *wire.MsgTx) error

	// NewAddress returns a fresh receiving address' output script, used
	// for the final sweep of swapped-in funds.
	NewAddress() ([]byte, error)

	// Balances reports the wallet's regular spendable balance, separate
	// from the swap/contract/fidelity categories the RPC surface also
	// reports (those are computed from swapdb + the contract watcher
	// rather than the wallet).
	Balances() (spendable btcutil.Amount, err error)

	// ListUtxos reports every output the wallet's regular (non-reserved)
	// pool currently holds, backing the RPC surface's bare list-utxo
	// command.
	ListUtxos() ([]Utxo, error)
}
