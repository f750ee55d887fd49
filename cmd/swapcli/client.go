package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/coinswapd/coinswapd/swaprpc"
	"github.com/urfave/cli"
)

// macaroonCreds implements grpc.PerRPCCredentials by attaching the raw
// macaroon bytes read from disk to every outgoing call's metadata.
type macaroonCreds struct {
	raw []byte
}

func (m macaroonCreds) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": string(m.raw)}, nil
}

func (m macaroonCreds) RequireTransportSecurity() bool { return false }

func macaroonPath(c *cli.Context) string {
	if p := c.GlobalString("macaroonpath"); p != "" {
		return p
	}
	dataDir := c.GlobalString("datadir")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dataDir = filepath.Join(home, ".coinswapd")
		}
	}
	return filepath.Join(dataDir, "admin.macaroon")
}

// dialClient connects to coinswapd's control-plane RPC, wiring the gob
// codec in place of the protobuf default and attaching the admin macaroon
// found at --macaroonpath (or under --datadir) to every call.
func dialClient(c *cli.Context) (swaprpc.CoinswapRPCClient, func(), error) {
	var opts []grpc.DialOption
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	opts = append(opts, grpc.WithDefaultCallOptions(swaprpc.DialOption()))

	if raw, err := os.ReadFile(macaroonPath(c)); err == nil {
		opts = append(opts, grpc.WithPerRPCCredentials(macaroonCreds{raw: raw}))
	}

	conn, err := grpc.Dial(c.GlobalString("rpcserver"), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to coinswapd: %w", err)
	}

	client := swaprpc.NewCoinswapRPCClient(conn)
	return client, func() { conn.Close() }, nil
}

func rpcContext() context.Context {
	return context.Background()
}
