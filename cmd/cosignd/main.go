// Command cosignd is the platform co-signing service. It holds the
// authority key, pre-signs mint transactions and hands the caller's
// inputs back for signing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfsorg/libmarket-go/cmd/internal/cli"
	"github.com/bitfsorg/libmarket-go/cosign"
)

func main() {
	dataDir := flag.String("datadir", "", "data directory (default ~/.market)")
	listen := flag.String("listen", "", "listen address, overrides the config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *dataDir, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "cosignd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dataDir, listen string) error {
	cfg, err := cli.LoadConfig(dataDir, os.Getenv)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Cosigner.ListenAddr = listen
	}
	if cfg.Cosigner.MintFee == 0 {
		return errors.New("cosigner mint fee must be positive")
	}

	logs, err := cli.NewLogs(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()
	log := logs.Logger("CSGN")

	platform, err := cli.OpenWallet(cfg, os.Getenv, logs.Logger("WLLT"), logs.Logger("RPC"))
	if err != nil {
		return err
	}
	if err := platform.Watch(ctx); err != nil {
		log.Warnf("register platform addresses with node: %v", err)
	}
	addrs, err := platform.GetAddresses(ctx)
	if err != nil {
		return err
	}

	minter, err := cosign.NewMinter(platform, cfg.Cosigner.MintFee, cfg.FeeRate, logs.Logger("MINT"))
	if err != nil {
		return err
	}
	log.Infof("platform address %s, mint fee %d, fee rate %d", addrs.Payment, cfg.Cosigner.MintFee, cfg.FeeRate)

	return cosign.NewServer(minter, log).ListenAndServe(ctx, cfg.Cosigner.ListenAddr)
}
