package main

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/btcsuite/btcd/wire"
	"github.com/coreos/go-systemd/daemon"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"

	"github.com/coinswapd/coinswapd/market"
	"github.com/coinswapd/coinswapd/swapdb"
	"github.com/coinswapd/coinswapd/swaprpc"
)

// shutdownChannel is closed either by an OS interrupt signal or by the
// control-plane RPC's Stop command, whichever comes first; coinswapMain
// blocks on it before returning. requestShutdown is the only way it should
// be closed, since either trigger can otherwise race to close it twice.
var (
	shutdownChannel = make(chan struct{})
	shutdownOnce    sync.Once
)

func requestShutdown() {
	shutdownOnce.Do(func() { close(shutdownChannel) })
}

// coinswapMain is the true entry point, split out from main so deferred
// cleanups run even when a subsystem returns an error rather than calling
// os.Exit directly, mirroring the teacher daemon's own lndMain/lnd.go
// split.
func coinswapMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	daemonLog.Infof("version %s starting, network %s", version(), cfg.Net)

	cc, cleanUpChain, err := newChainControlFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initializing chain backend: %w", err)
	}
	defer cleanUpChain()

	db, err := swapdb.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	wallet := newSimpleWallet(db, func(tx *wire.MsgTx) error {
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return fmt.Errorf("serializing transaction to broadcast: %w", err)
		}
		return cc.publish(buf.Bytes())
	})

	if _, err := ensureOwnBond(cfg, db, wallet, cc); err != nil {
		daemonLog.Errorf("creating fidelity bond: %v", err)
	}

	offerBook := market.NewOfferBook(db, wallet, cc)

	srv := newServer(cfg, db, cc, offerBook, wallet)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer func() {
		daemonLog.Infof("shutting down server")
		srv.Stop()
		srv.WaitForShutdown()
	}()

	macAuth, err := newMacaroonAuthenticator(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing macaroon auth: %w", err)
	}

	interceptors := []grpc.UnaryServerInterceptor{grpc_prometheus.UnaryServerInterceptor}
	if !cfg.NoMacaroons {
		interceptors = append(interceptors, macAuth.unaryInterceptor)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(interceptors...)),
	)
	rpcSrv := newRPCServer(srv)
	swaprpc.RegisterCoinswapRPCServer(grpcServer, rpcSrv)
	grpc_prometheus.Register(grpcServer)
	grpc_prometheus.EnableHandlingTimeHistogram()

	rpcEndpoint := fmt.Sprintf("localhost:%d", cfg.DaemonRPCPort)
	lis, err := net.Listen("tcp", rpcEndpoint)
	if err != nil {
		return fmt.Errorf("listening for RPC on %s: %w", rpcEndpoint, err)
	}
	defer lis.Close()

	go func() {
		daemonLog.Infof("RPC server listening on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			daemonLog.Errorf("RPC server exited: %v", err)
		}
	}()
	defer grpcServer.GracefulStop()

	go func() {
		daemonLog.Infof("metrics listening on :9112")
		http.Handle("/metrics", promhttp.Handler())
		http.ListenAndServe(":9112", nil)
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigint:
			daemonLog.Infof("received interrupt signal, shutting down")
			requestShutdown()
		case <-shutdownChannel:
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		daemonLog.Warnf("could not notify systemd of readiness: %v", err)
	} else if sent {
		daemonLog.Debugf("systemd readiness notification sent")
	}

	<-shutdownChannel
	daemonLog.Infof("shutdown complete")
	return nil
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := coinswapMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
