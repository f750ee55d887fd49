// Command swapcli is the command-line front-end for coinswapd's
// control-plane RPC: node liveness, balance and UTXO reporting, address
// and send operations, and fidelity-bond management.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "swapcli"
	app.Usage = "control coinswapd from the command line"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:10019",
			Usage: "host:port of coinswapd's control-plane RPC",
		},
		cli.StringFlag{
			Name:  "macaroonpath",
			Usage: "path to admin.macaroon; defaults to <datadir>/admin.macaroon",
		},
		cli.StringFlag{
			Name:  "datadir",
			Usage: "coinswapd's data directory, used to locate the macaroon when --macaroonpath is unset",
		},
	}

	app.Commands = []cli.Command{
		pingCommand,
		getBalancesCommand,
		listUtxoCommand,
		listUtxoSwapCommand,
		listUtxoContractCommand,
		listUtxoFidelityCommand,
		getNewAddressCommand,
		sendToAddressCommand,
		redeemFidelityCommand,
		showFidelityCommand,
		showDataDirCommand,
		showOnionAddressCommand,
		syncWalletCommand,
		stopCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[swapcli] %v\n", err)
		os.Exit(2)
	}
}
