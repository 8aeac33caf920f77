package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/bitfsorg/libmarket-go/cmd/internal/cli"
	"github.com/bitfsorg/libmarket-go/config"
	"github.com/bitfsorg/libmarket-go/flow"
	"github.com/bitfsorg/libmarket-go/network"
	"github.com/bitfsorg/libmarket-go/receipt"
	"github.com/bitfsorg/libmarket-go/wallet"
)

func cmdInit(_ context.Context, args []string) error {
	fs, c := newFlagSet("init", false)
	netName := fs.String("network", "", "network name (mainnet, testnet, regtest)")
	words := fs.Int("words", 12, "mnemonic length: 12, 15, 18, 21 or 24")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cli.LoadConfig(c.dataDir, os.Getenv)
	if err != nil {
		return err
	}
	if *netName != "" {
		cfg.Network = *netName
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	password := os.Getenv(cli.PasswordEnv)
	if password == "" {
		return fmt.Errorf("%s is not set", cli.PasswordEnv)
	}
	mnemonic, err := wallet.GenerateMnemonic(*words)
	if err != nil {
		return err
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return err
	}
	if err := wallet.SaveSeedFile(filepath.Join(cfg.DataDir, wallet.SeedFileName), seed, password); err != nil {
		return err
	}

	path := config.ConfigPath(cfg.DataDir)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := config.SaveConfig(path, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("wallet created in %s\n\nrecovery phrase:\n  %s\n", cfg.DataDir, mnemonic)
	return nil
}

func cmdAddress(ctx context.Context, args []string) error {
	fs, c := newFlagSet("address", false)
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	addrs, err := e.wallet.GetAddresses(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("payment:  %s\nordinal:  %s\nidentity: %s\n", addrs.Payment, addrs.Ordinal, addrs.Identity)
	return nil
}

func cmdPay(ctx context.Context, args []string) error {
	fs, c := newFlagSet("pay", true)
	to := fs.String("to", "", "recipient address or paymail")
	amount := fs.Uint64("amount", 0, "amount in satoshis")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	p, err := e.pipeline(c.dryRun)
	if err != nil {
		return err
	}

	res, err := p.SendPayment(ctx, flow.PaymentRequest{To: *to, Amount: *amount})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func cmdList(ctx context.Context, args []string) error {
	fs, c := newFlagSet("list", true)
	outpoint := fs.String("outpoint", "", "ordinal to sell, as txid:vout")
	price := fs.Uint64("price", 0, "asking price in satoshis")
	payTo := fs.String("pay-to", "", "address receiving the payment (default: wallet payment address)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outpoint == "" {
		return fmt.Errorf("%w: -outpoint is required", flow.ErrInvalidRequest)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	p, err := e.pipeline(c.dryRun)
	if err != nil {
		return err
	}

	asset, err := e.wallet.Asset(ctx, *outpoint)
	if err != nil {
		return err
	}
	res, err := p.ListForSale(ctx, flow.ListingRequest{Asset: asset, Price: *price, PayTo: *payTo})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func cmdMint(ctx context.Context, args []string) error {
	fs, c := newFlagSet("mint", true)
	contentType := fs.String("type", "text/plain;charset=utf-8", "content type")
	file := fs.String("file", "", "file to inscribe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", flow.ErrInvalidRequest)
	}
	content, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	p, err := e.pipeline(c.dryRun)
	if err != nil {
		return err
	}

	res, err := p.CosignedMint(ctx, flow.MintRequest{ContentType: *contentType, Content: content})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func cmdReceipts(ctx context.Context, args []string) error {
	fs, c := newFlagSet("receipts", false)
	kind := fs.String("kind", "", "only show payment, listing or mint")
	limit := fs.Int("n", 20, "maximum number of receipts")
	status := fs.Bool("status", false, "ask the node for the confirmation state of broadcast receipts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cli.LoadConfig(c.dataDir, os.Getenv)
	if err != nil {
		return err
	}
	j, err := receipt.Open(filepath.Join(cfg.DataDir, receipt.FileName))
	if err != nil {
		return err
	}
	defer j.Close()

	rs, err := j.List(*kind, *limit)
	if err != nil {
		return err
	}

	var node network.Node
	if *status {
		logs, err := cli.NewLogs(cfg)
		if err != nil {
			return err
		}
		defer logs.Close()
		if node, err = cli.NewNode(cfg, os.Getenv, logs.Logger("RPC")); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tTXID\tAMOUNT\tFEE\tTO\tSTATE")
	for _, r := range rs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Kind, r.TxID, r.Amount, r.Fee, r.Counterparty,
			receiptState(ctx, node, r))
	}
	return tw.Flush()
}

// receiptState is "unsent", "sent" or, with a node, its confirmation state.
func receiptState(ctx context.Context, node network.Node, r *receipt.Receipt) string {
	if !r.Broadcast {
		return "unsent"
	}
	if node == nil {
		return "sent"
	}
	st, err := node.TxStatus(ctx, r.TxID)
	switch {
	case errors.Is(err, network.ErrTxNotFound):
		return "dropped"
	case err != nil:
		return "unknown"
	}
	return st.String()
}
