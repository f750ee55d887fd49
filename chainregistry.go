package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/neutrino"

	"github.com/coinswapd/coinswapd/chainntfs"
)

// netParamsForConfig maps the configured network name to its chaincfg
// parameters. coinswapd, unlike the teacher daemon, is Bitcoin-only: there
// is no multi-chain chainRegistry here, only a choice of network.
func netParamsForConfig(cfg *config) (*chaincfg.Params, error) {
	switch cfg.Net {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown net %q", cfg.Net)
	}
}

// chainControl couples the concrete chain backend together: a neutrino
// light client and the ChainNotifier wrapping it. Unlike the teacher's
// chainControl, there is no lnwallet.LightningWallet or BlockChainIO here;
// the wallet is the narrow Wallet collaborator interface, satisfied in this
// repository by simpleWallet (walletshim.go), which also serves as
// market.UtxoSource for the outputs credited to it.
type chainControl struct {
	chainService *neutrino.ChainService
	notifier     chainntfs.ChainNotifier
	netParams    *chaincfg.Params
}

// newChainControlFromConfig spins up a neutrino light client rooted at
// cfg.DataDir and wraps it in a NeutrinoNotifier, the sole ChainNotifier
// implementation this daemon ships (grounded on the teacher's own
// neutrino branch of newChainControlFromConfig, simplified to the one
// backend coinswapd supports).
func newChainControlFromConfig(cfg *config) (*chainControl, func(), error) {
	netParams, err := netParamsForConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	neutrinoDir := filepath.Join(cfg.DataDir, "neutrino", cfg.Net)

	neutrino.WaitForMoreCFHeaders = time.Second
	neutrino.MaxPeers = 8
	neutrino.BanDuration = 5 * time.Second

	// neutrino.NewChainService manages its own on-disk header/filter
	// store beneath DataDir; coinswapd only needs to point it at a
	// sub-directory of its own data directory so the light-client state
	// doesn't collide with coinswap.db.
	svc, err := neutrino.NewChainService(neutrino.Config{
		DataDir:     neutrinoDir,
		ChainParams: *netParams,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating neutrino chain service: %w", err)
	}
	if err := svc.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting neutrino chain service: %w", err)
	}

	notifier := chainntfs.NewNeutrinoNotifier(svc)
	if err := notifier.Start(); err != nil {
		svc.Stop()
		return nil, nil, fmt.Errorf("starting chain notifier: %w", err)
	}

	cc := &chainControl{
		chainService: svc,
		notifier:     notifier,
		netParams:    netParams,
	}

	cleanUp := func() {
		notifier.Stop()
		svc.Stop()
	}

	return cc, cleanUp, nil
}

// publish deserializes a raw transaction and submits it to the network
// through the neutrino light client, used by server.Publish to satisfy
// contractwatch.Broadcaster.
func (cc *chainControl) publish(txHex []byte) error {
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txHex)); err != nil {
		return fmt.Errorf("decoding transaction to publish: %w", err)
	}
	return cc.chainService.SendTransaction(tx)
}

// CurrentHeight satisfies market.ChainHeightSource, letting the route
// selector and fidelity-bond valuation work off the light client's notion
// of the chain tip rather than a block explorer.
func (cc *chainControl) CurrentHeight() (uint32, error) {
	stamp, err := cc.chainService.BestBlock()
	if err != nil {
		return 0, fmt.Errorf("querying neutrino best block: %w", err)
	}
	return uint32(stamp.Height), nil
}
