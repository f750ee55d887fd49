package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinswapd/coinswapd/market"
	"github.com/coinswapd/coinswapd/swapdb"
	"github.com/coinswapd/coinswapd/swaprpc"
)

// directoryClient is coinswapd's stand-in for the directory-server
// collaborator: an external process mapping Makers' onion addresses to
// current offers. No such service is implemented here, so FetchOffers
// always reports an empty book; SyncWallet still runs end to end, it just
// never has anything new to cache until a real directory client replaces
// this one.
type directoryClient struct{}

func (directoryClient) FetchOffers() ([]market.CandidateOffer, error) {
	return nil, nil
}

// rpcServer implements swaprpc.CoinswapRPCServer against the running
// daemon's collaborators. Grounded on the teacher's own rpcServer: atomic
// started/shutdown flags, a wrapped *server, and one method per RPC verb,
// with lnrpc's wallet-centric calls replaced by coinswapd's balance/UTXO/
// fidelity surface.
type rpcServer struct {
	started  int32
	shutdown int32

	server *server

	wg   sync.WaitGroup
	quit chan struct{}
}

var _ swaprpc.CoinswapRPCServer = (*rpcServer)(nil)

func newRPCServer(s *server) *rpcServer {
	return &rpcServer{server: s, quit: make(chan struct{})}
}

func (r *rpcServer) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return nil
	}
	return nil
}

func (r *rpcServer) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.shutdown, 0, 1) {
		return nil
	}
	close(r.quit)
	return nil
}

// Ping implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) Ping(ctx context.Context, in *swaprpc.PingRequest) (*swaprpc.PingResponse, error) {
	return &swaprpc.PingResponse{Version: version()}, nil
}

// GetBalances implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) GetBalances(ctx context.Context, in *swaprpc.GetBalancesRequest) (*swaprpc.GetBalancesResponse, error) {
	spendable, err := r.server.walletImpl.Balances()
	if err != nil {
		return nil, fmt.Errorf("fetching spendable balance: %w", err)
	}

	var swapSats btcutil.Amount
	for _, u := range r.server.activeSwapUtxos() {
		swapSats += u.Value
	}

	contractSats := r.server.watcher.ContractSats()

	var fidelitySats btcutil.Amount
	if raw, err := r.server.db.FetchOwnBond(); err == nil {
		bond, err := decodeOwnBond(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding own bond: %w", err)
		}
		fidelitySats = bond.Amount
	} else if err != swapdb.ErrOwnBondNotFound {
		return nil, fmt.Errorf("fetching own bond: %w", err)
	}

	return &swaprpc.GetBalancesResponse{
		SpendableSats: spendable,
		SwapSats:      swapSats,
		ContractSats:  contractSats,
		FidelitySats:  fidelitySats,
	}, nil
}

// ListUtxos implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) ListUtxos(ctx context.Context, in *swaprpc.ListUtxosRequest) (*swaprpc.ListUtxosResponse, error) {
	var entries []swaprpc.UtxoEntry

	switch in.Class {
	case swaprpc.UtxoClassRegular:
		utxos, err := r.server.walletImpl.ListUtxos()
		if err != nil {
			return nil, err
		}
		for _, u := range utxos {
			entries = append(entries, toUtxoEntry(u.Outpoint, u.Value, u.PkScript))
		}

	case swaprpc.UtxoClassSwap:
		for _, u := range r.server.activeSwapUtxos() {
			entries = append(entries, toUtxoEntry(u.Outpoint, u.Value, u.PkScript))
		}

	case swaprpc.UtxoClassContract:
		// The watcher only exposes an aggregate amount today; a
		// per-outpoint breakdown would need a new accessor there.
		return nil, fmt.Errorf("rpcserver: list-utxo-contract is not yet broken out per-outpoint")

	case swaprpc.UtxoClassFidelity:
		raw, err := r.server.db.FetchOwnBond()
		if err == swapdb.ErrOwnBondNotFound {
			return &swaprpc.ListUtxosResponse{}, nil
		}
		if err != nil {
			return nil, err
		}
		bond, err := decodeOwnBond(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, swaprpc.UtxoEntry{
			Txid:       bond.Outpoint.Hash.String(),
			Index:      bond.Outpoint.Index,
			AmountSats: bond.Amount,
		})

	default:
		return nil, fmt.Errorf("rpcserver: unknown utxo class %d", in.Class)
	}

	return &swaprpc.ListUtxosResponse{Utxos: entries}, nil
}

// GetNewAddress implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) GetNewAddress(ctx context.Context, in *swaprpc.GetNewAddressRequest) (*swaprpc.GetNewAddressResponse, error) {
	pkScript, err := r.server.walletImpl.NewAddress()
	if err != nil {
		return nil, err
	}
	return &swaprpc.GetNewAddressResponse{PkScript: pkScript}, nil
}

// SendToAddress implements swaprpc.CoinswapRPCServer. It is a plain
// wallet send: no coinswap negotiation is performed, matching the
// external-interfaces surface's send-to-address command rather than
// taker.go's route-through-Makers ExecuteSwap.
func (r *rpcServer) SendToAddress(ctx context.Context, in *swaprpc.SendToAddressRequest) (*swaprpc.SendToAddressResponse, error) {
	tx, err := r.server.walletImpl.BuildFundingTx(in.PkScript, in.AmountSats)
	if err != nil {
		return nil, err
	}
	if err := r.server.walletImpl.Broadcast(tx); err != nil {
		return nil, err
	}
	txHash := tx.TxHash()
	return &swaprpc.SendToAddressResponse{Txid: txHash.String()}, nil
}

// RedeemFidelity implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) RedeemFidelity(ctx context.Context, in *swaprpc.RedeemFidelityRequest) (*swaprpc.RedeemFidelityResponse, error) {
	height, err := r.server.chain.CurrentHeight()
	if err != nil {
		return nil, err
	}
	tx, err := redeemOwnBond(r.server.db, r.server.walletImpl, height)
	if err != nil {
		return nil, err
	}
	txHash := tx.TxHash()
	return &swaprpc.RedeemFidelityResponse{Txid: txHash.String()}, nil
}

// ShowFidelity implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) ShowFidelity(ctx context.Context, in *swaprpc.ShowFidelityRequest) (*swaprpc.ShowFidelityResponse, error) {
	raw, err := r.server.db.FetchOwnBond()
	if err == swapdb.ErrOwnBondNotFound {
		return &swaprpc.ShowFidelityResponse{Exists: false}, nil
	}
	if err != nil {
		return nil, err
	}
	bond, err := decodeOwnBond(raw)
	if err != nil {
		return nil, err
	}
	return &swaprpc.ShowFidelityResponse{
		Exists:     true,
		Txid:       bond.Outpoint.Hash.String(),
		Index:      bond.Outpoint.Index,
		AmountSats: bond.Amount,
		LockExpiry: bond.LockHeight,
	}, nil
}

// ShowDataDir implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) ShowDataDir(ctx context.Context, in *swaprpc.ShowDataDirRequest) (*swaprpc.ShowDataDirResponse, error) {
	return &swaprpc.ShowDataDirResponse{Path: r.server.cfg.DataDir}, nil
}

// ShowOnionAddress implements swaprpc.CoinswapRPCServer.
func (r *rpcServer) ShowOnionAddress(ctx context.Context, in *swaprpc.ShowOnionAddressRequest) (*swaprpc.ShowOnionAddressResponse, error) {
	return &swaprpc.ShowOnionAddressResponse{OnionAddress: r.server.cfg.OnionAddress}, nil
}

// SyncWallet implements swaprpc.CoinswapRPCServer by refreshing the cached
// offer book from the directory-server collaborator.
func (r *rpcServer) SyncWallet(ctx context.Context, in *swaprpc.SyncWalletRequest) (*swaprpc.SyncWalletResponse, error) {
	stored, err := r.server.offerBook.Sync(directoryClient{})
	if err != nil {
		return nil, err
	}
	return &swaprpc.SyncWalletResponse{OffersStored: stored}, nil
}

// Stop implements swaprpc.CoinswapRPCServer by tearing down the daemon's
// server in the background once the reply has gone out.
func (r *rpcServer) Stop(ctx context.Context, in *swaprpc.StopRequest) (*swaprpc.StopResponse, error) {
	go func() {
		if err := r.server.Stop(); err != nil {
			daemonLog.Errorf("stop RPC: shutting down server: %v", err)
		}
		requestShutdown()
	}()
	return &swaprpc.StopResponse{}, nil
}

func toUtxoEntry(op wire.OutPoint, value btcutil.Amount, pkScript []byte) swaprpc.UtxoEntry {
	return swaprpc.UtxoEntry{
		Txid:       op.Hash.String(),
		Index:      op.Index,
		AmountSats: value,
		PkScript:   pkScript,
	}
}
