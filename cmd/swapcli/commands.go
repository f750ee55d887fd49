package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/coinswapd/coinswapd/swaprpc"
)

var pingCommand = cli.Command{
	Name:  "ping",
	Usage: "check that coinswapd is reachable and report its version",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.Ping(rpcContext(), &swaprpc.PingRequest{})
		if err != nil {
			return err
		}
		fmt.Printf("coinswapd %s is reachable\n", resp.Version)
		return nil
	},
}

var getBalancesCommand = cli.Command{
	Name:  "get-balances",
	Usage: "show spendable, swap, contract, and fidelity balances",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.GetBalances(rpcContext(), &swaprpc.GetBalancesRequest{})
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Category", "Sats"})
		t.AppendRow(table.Row{"spendable", resp.SpendableSats})
		t.AppendRow(table.Row{"swap (in-flight funding)", resp.SwapSats})
		t.AppendRow(table.Row{"contract (watched)", resp.ContractSats})
		t.AppendRow(table.Row{"fidelity bond", resp.FidelitySats})
		t.Render()
		return nil
	},
}

func listUtxoClass(class swaprpc.UtxoClass) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.ListUtxos(rpcContext(), &swaprpc.ListUtxosRequest{Class: class})
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Txid", "Index", "Sats", "PkScript"})
		for _, u := range resp.Utxos {
			t.AppendRow(table.Row{u.Txid, u.Index, u.AmountSats, hex.EncodeToString(u.PkScript)})
		}
		t.Render()
		return nil
	}
}

var listUtxoCommand = cli.Command{
	Name:   "list-utxo",
	Usage:  "list the wallet's regular spendable outputs",
	Action: listUtxoClass(swaprpc.UtxoClassRegular),
}

var listUtxoSwapCommand = cli.Command{
	Name:   "list-utxo-swap",
	Usage:  "list outputs reserved by in-flight swaps",
	Action: listUtxoClass(swaprpc.UtxoClassSwap),
}

var listUtxoContractCommand = cli.Command{
	Name:   "list-utxo-contract",
	Usage:  "list currently watched contract outputs",
	Action: listUtxoClass(swaprpc.UtxoClassContract),
}

var listUtxoFidelityCommand = cli.Command{
	Name:   "list-utxo-fidelity",
	Usage:  "list this node's own fidelity bond output",
	Action: listUtxoClass(swaprpc.UtxoClassFidelity),
}

var getNewAddressCommand = cli.Command{
	Name:  "get-new-address",
	Usage: "generate a fresh receiving address",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.GetNewAddress(rpcContext(), &swaprpc.GetNewAddressRequest{})
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(resp.PkScript))
		return nil
	},
}

var sendToAddressCommand = cli.Command{
	Name:      "send-to-address",
	Usage:     "send coins from the wallet's regular pool to an output script",
	ArgsUsage: "<pkscript-hex> <amount-sats>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("usage: send-to-address <pkscript-hex> <amount-sats>", 1)
		}
		pkScript, err := hex.DecodeString(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid pkscript: %v", err), 1)
		}
		var amount int64
		if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &amount); err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid amount: %v", err), 1)
		}

		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.SendToAddress(rpcContext(), &swaprpc.SendToAddressRequest{
			PkScript:   pkScript,
			AmountSats: btcutil.Amount(amount),
		})
		if err != nil {
			return err
		}
		fmt.Println(resp.Txid)
		return nil
	},
}

// confirm prompts the user before an irreversible action, skipping the
// prompt entirely when stdin isn't a terminal (a scripted invocation),
// since there would be nobody to answer it.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}

var redeemFidelityCommand = cli.Command{
	Name:  "redeem-fidelity",
	Usage: "redeem this node's matured fidelity bond back into the wallet",
	Action: func(c *cli.Context) error {
		if !confirm("redeem the fidelity bond now?") {
			fmt.Println("aborted")
			return nil
		}

		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.RedeemFidelity(rpcContext(), &swaprpc.RedeemFidelityRequest{})
		if err != nil {
			return err
		}
		fmt.Println(resp.Txid)
		return nil
	},
}

var showFidelityCommand = cli.Command{
	Name:  "show-fidelity",
	Usage: "show this node's own fidelity bond",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.ShowFidelity(rpcContext(), &swaprpc.ShowFidelityRequest{})
		if err != nil {
			return err
		}
		if !resp.Exists {
			fmt.Println("no fidelity bond on file")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Txid", "Index", "Sats", "Locked Until Height"})
		t.AppendRow(table.Row{resp.Txid, resp.Index, resp.AmountSats, resp.LockExpiry})
		t.Render()
		return nil
	},
}

var showDataDirCommand = cli.Command{
	Name:  "show-data-dir",
	Usage: "print coinswapd's configured data directory",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.ShowDataDir(rpcContext(), &swaprpc.ShowDataDirRequest{})
		if err != nil {
			return err
		}
		fmt.Println(resp.Path)
		return nil
	},
}

var showOnionAddressCommand = cli.Command{
	Name:  "show-onion-address",
	Usage: "print this node's advertised .onion address",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.ShowOnionAddress(rpcContext(), &swaprpc.ShowOnionAddressRequest{})
		if err != nil {
			return err
		}
		fmt.Println(resp.OnionAddress)
		return nil
	},
}

var syncWalletCommand = cli.Command{
	Name:  "sync-wallet",
	Usage: "refresh the cached offer book from the directory server",
	Action: func(c *cli.Context) error {
		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		resp, err := client.SyncWallet(rpcContext(), &swaprpc.SyncWalletRequest{})
		if err != nil {
			return err
		}
		fmt.Printf("%d offers stored\n", resp.OffersStored)
		return nil
	},
}

var stopCommand = cli.Command{
	Name:  "stop",
	Usage: "gracefully shut down coinswapd",
	Action: func(c *cli.Context) error {
		if !confirm("stop coinswapd now?") {
			fmt.Println("aborted")
			return nil
		}

		client, cleanup, err := dialClient(c)
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := client.Stop(rpcContext(), &swaprpc.StopRequest{}); err != nil {
			return err
		}
		fmt.Println("shutdown requested")
		return nil
	},
}
