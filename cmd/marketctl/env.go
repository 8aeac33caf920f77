package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"

	"github.com/bitfsorg/libmarket-go/cmd/internal/cli"
	"github.com/bitfsorg/libmarket-go/config"
	"github.com/bitfsorg/libmarket-go/cosign"
	"github.com/bitfsorg/libmarket-go/flow"
	"github.com/bitfsorg/libmarket-go/ordinals"
	"github.com/bitfsorg/libmarket-go/paymail"
	"github.com/bitfsorg/libmarket-go/receipt"
	"github.com/bitfsorg/libmarket-go/wallet"
)

// env is everything a flow command needs, opened from the data directory.
type env struct {
	cfg     config.Config
	logs    *cli.Logs
	log     slog.Logger
	wallet  *wallet.Local
	journal *receipt.Journal
}

// commonFlags registers the flags every command accepts.
type commonFlags struct {
	dataDir string
	dryRun  bool
}

func newFlagSet(name string, withDryRun bool) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("marketctl "+name, flag.ContinueOnError)
	c := &commonFlags{}
	fs.StringVar(&c.dataDir, "datadir", "", "data directory (default ~/.market)")
	if withDryRun {
		fs.BoolVar(&c.dryRun, "dry-run", false, "sign but do not broadcast; print the transaction")
	}
	return fs, c
}

func openEnv(c *commonFlags) (*env, error) {
	cfg, err := cli.LoadConfig(c.dataDir, os.Getenv)
	if err != nil {
		return nil, err
	}
	logs, err := cli.NewLogs(cfg)
	if err != nil {
		return nil, err
	}
	w, err := cli.OpenWallet(cfg, os.Getenv, logs.Logger("WLLT"), logs.Logger("RPC"))
	if err != nil {
		logs.Close()
		return nil, err
	}
	j, err := receipt.Open(filepath.Join(cfg.DataDir, receipt.FileName))
	if err != nil {
		logs.Close()
		return nil, err
	}
	return &env{cfg: cfg, logs: logs, log: logs.Logger("CTL"), wallet: w, journal: j}, nil
}

func (e *env) Close() {
	if err := e.journal.Close(); err != nil {
		e.log.Errorf("close journal: %v", err)
	}
	e.logs.Close()
}

// pipeline wires the flow collaborators that the config enables.
func (e *env) pipeline(dryRun bool) (*flow.Pipeline, error) {
	flowLog := e.logs.Logger("FLOW")
	p := &flow.Pipeline{
		Wallet:        e.wallet,
		FeeRate:       e.cfg.FeeRate,
		Journal:       e.journal,
		Log:           flowLog,
		SkipBroadcast: dryRun,
		OnState: func(k flow.Kind, s flow.State) {
			flowLog.Tracef("%s -> %s", k, s)
		},
	}

	p.Resolver = paymail.NewResolver(e.cfg.Paymail.DNSSEC, e.cfg.Paymail.Upstream, e.logs.Logger("PAYM"))

	if e.cfg.Listing.TemplatePrefixHex != "" {
		tmpl, err := ordinals.NewTemplateFromHex(e.cfg.Listing.TemplatePrefixHex,
			e.cfg.Listing.TemplateSuffixHex, e.cfg.Network != "mainnet")
		if err != nil {
			return nil, err
		}
		p.Locker = tmpl
	}
	if e.cfg.Cosigner.URL != "" {
		p.Cosigner = cosign.NewClient(e.cfg.Cosigner.URL, e.logs.Logger("CSGN"))
	}
	return p, nil
}

func printResult(res *flow.Result) {
	fmt.Printf("txid:  %s\n", res.TxID)
	fmt.Printf("fee:   %d\n", res.Fee)
	if res.Destination != "" {
		fmt.Printf("to:    %s\n", res.Destination)
	}
	if !res.Broadcast {
		fmt.Printf("raw:   %s\n", res.SignedHex)
	}
}
