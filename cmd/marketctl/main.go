// Command marketctl drives the marketplace flows from a seed wallet:
// payments, price-lock listings and co-signed mints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"init", "create a wallet seed and default config", cmdInit},
	{"address", "print the wallet addresses", cmdAddress},
	{"pay", "send a payment to an address or paymail", cmdPay},
	{"list", "list an ordinal for sale under a price lock", cmdList},
	{"mint", "inscribe content through the platform co-signer", cmdMint},
	{"receipts", "show journaled transactions", cmdReceipts},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: marketctl <command> [flags]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, os.Args[2:])
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "marketctl %s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "marketctl: unknown command %q\n", name)
	usage()
	os.Exit(2)
}
