// Package swaprpc defines coinswapd's control-plane RPC: the request and
// response types for every command the external-interfaces surface
// exposes, and a gRPC service binding for them that does not depend on
// protoc-generated stubs.
package swaprpc

import "github.com/btcsuite/btcd/btcutil"

// PingRequest carries no data; a successful reply is itself the liveness
// signal cmd/swapcli's ping command reports on.
type PingRequest struct{}

// PingResponse echoes the daemon's version string, matching lnd's own
// GetInfo-lite liveness probe.
type PingResponse struct {
	Version string
}

// GetBalancesRequest carries no data.
type GetBalancesRequest struct{}

// GetBalancesResponse breaks the node's holdings down by category: funds
// the wallet can freely spend, funds locked in an in-flight swap's funding
// or contract outputs, and funds locked in this node's own fidelity bond.
type GetBalancesResponse struct {
	SpendableSats btcutil.Amount
	SwapSats      btcutil.Amount
	ContractSats  btcutil.Amount
	FidelitySats  btcutil.Amount
}

// UtxoClass selects which of list-utxo's four views ListUtxosRequest asks
// for.
type UtxoClass int

const (
	UtxoClassRegular UtxoClass = iota
	UtxoClassSwap
	UtxoClassContract
	UtxoClassFidelity
)

// ListUtxosRequest selects one UTXO class to list; the bare list-utxo
// command maps to UtxoClassRegular.
type ListUtxosRequest struct {
	Class UtxoClass
}

// UtxoEntry is one row of a ListUtxosResponse.
type UtxoEntry struct {
	Txid     string
	Index    uint32
	AmountSats btcutil.Amount
	PkScript []byte
}

// ListUtxosResponse carries every output in the requested class.
type ListUtxosResponse struct {
	Utxos []UtxoEntry
}

// GetNewAddressRequest carries no data.
type GetNewAddressRequest struct{}

// GetNewAddressResponse carries a fresh receiving address' output script;
// cmd/swapcli prints it hex-encoded.
type GetNewAddressResponse struct {
	PkScript []byte
}

// SendToAddressRequest describes a plain wallet send, not a swap-routed
// one: no coinswap negotiation is performed, the daemon simply constructs,
// signs, and broadcasts a transaction paying amount to PkScript.
type SendToAddressRequest struct {
	PkScript []byte
	AmountSats btcutil.Amount
}

// SendToAddressResponse carries the broadcast transaction's txid.
type SendToAddressResponse struct {
	Txid string
}

// RedeemFidelityRequest carries no data; a node has at most one
// self-advertised bond at a time.
type RedeemFidelityRequest struct{}

// RedeemFidelityResponse carries the redeeming transaction's txid.
type RedeemFidelityResponse struct {
	Txid string
}

// ShowFidelityRequest carries no data.
type ShowFidelityRequest struct{}

// ShowFidelityResponse describes this node's own fidelity bond, if any.
type ShowFidelityResponse struct {
	Exists        bool
	Txid          string
	Index         uint32
	AmountSats    btcutil.Amount
	LockExpiry    uint32
}

// ShowDataDirRequest carries no data.
type ShowDataDirRequest struct{}

// ShowDataDirResponse carries the daemon's configured data directory path.
type ShowDataDirResponse struct {
	Path string
}

// ShowOnionAddressRequest carries no data.
type ShowOnionAddressRequest struct{}

// ShowOnionAddressResponse carries this node's advertised .onion address.
type ShowOnionAddressResponse struct {
	OnionAddress string
}

// SyncWalletRequest carries no data; it triggers a one-shot refresh of the
// cached offer book from the marketplace, the closest analogue this
// daemon has to a wallet rescan.
type SyncWalletRequest struct{}

// SyncWalletResponse reports how many offers passed authentication and
// were cached.
type SyncWalletResponse struct {
	OffersStored int
}

// StopRequest carries no data.
type StopRequest struct{}

// StopResponse carries no data; the reply is sent before the daemon begins
// its shutdown sequence so the client sees a clean RPC completion.
type StopResponse struct{}
