// Package chainntfs defines the chain-event notification interface
// coinswapd's watcher and daemon subsystems are built against: funding and
// contract transaction confirmations, contract outpoint spends (the signal
// that a counterparty has raced a contract broadcast), and new-block
// epochs used to drive timelock expiry checks.
package chainntfs

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ChainNotifier represents a trusted source to receive notifications
// concerning targeted events on the Bitcoin blockchain. The interface is
// intentionally general so it can be backed by a full node, an Electrum
// server, or a compact-filter client such as neutrino.
//
// Concrete implementations must support multiple concurrent client
// requests as well as multiple concurrent notification events.
type ChainNotifier interface {
	// RegisterConfirmationsNtfn registers an intent to be notified once
	// txid reaches numConfs confirmations, starting the backlog scan at
	// heightHint. The returned ConfirmationEvent is sent upon once the
	// confirmation threshold is reached, and again if the transaction is
	// later reorged out.
	RegisterConfirmationsNtfn(txid *chainhash.Hash, numConfs, heightHint uint32) (*ConfirmationEvent, error)

	// RegisterSpendNtfn registers an intent to be notified once outpoint
	// is spent in a transaction seen on the network, starting the
	// backlog scan at heightHint. pkScript is the output script being
	// watched, required by filter-based notifiers such as neutrino.
	RegisterSpendNtfn(outpoint *wire.OutPoint, pkScript []byte, heightHint uint32) (*SpendEvent, error)

	// RegisterBlockEpochNtfn registers an intent to be notified of each
	// new block connected to the main chain tip.
	RegisterBlockEpochNtfn() (*BlockEpochEvent, error)

	// Start readies the ChainNotifier to receive client registrations.
	Start() error

	// Stop shuts the ChainNotifier down, cancelling all pending client
	// notifications by closing the related channels on their *Events.
	Stop() error
}

// ConfirmationEvent carries the confirmation notifications registered via
// RegisterConfirmationsNtfn.
type ConfirmationEvent struct {
	// Confirmed fires, exactly once, with the confirming block's height
	// when the registered transaction reaches its confirmation target.
	Confirmed chan uint32

	// NegativeConf fires with the depth of the reorg if the transaction
	// is later disconnected from the main chain after having already
	// been reported confirmed.
	NegativeConf chan int32
}

// SpendDetail describes a detected spend of a watched outpoint.
type SpendDetail struct {
	SpentOutPoint     *wire.OutPoint
	SpenderTxHash     *chainhash.Hash
	SpendingTx        *wire.MsgTx
	SpenderInputIndex uint32
	SpendingHeight    int32
}

// SpendEvent carries the spend notification registered via
// RegisterSpendNtfn. Spend fires exactly once, the first time the watched
// outpoint is seen spent.
type SpendEvent struct {
	Spend chan *SpendDetail
}

// BlockEpoch describes one block connected to the main chain tip.
type BlockEpoch struct {
	Height int32
	Hash   *chainhash.Hash
}

// BlockEpochEvent carries the ongoing stream of new-block notifications
// registered via RegisterBlockEpochNtfn.
type BlockEpochEvent struct {
	Epochs chan *BlockEpoch

	// Cancel unregisters this subscription. Safe to call more than once.
	Cancel func()
}
