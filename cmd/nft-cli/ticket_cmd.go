package main

import (
	"fmt"
	"io"
	"strings"
)

func runTicketCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: nft-cli ticket mint --key FILE --event ADDRESS | scan --key FILE --mint MINT | get --mint MINT")
		return 1
	}
	fs := newFlagSet("ticket "+args[0], stderr)
	var keyPath, eventAddr, mint, nonce string
	fs.StringVar(&keyPath, "key", "", "signer keystore")
	fs.StringVar(&eventAddr, "event", "", "event address")
	fs.StringVar(&mint, "mint", "", "ticket mint address")
	fs.StringVar(&nonce, "nonce", "", "signer nonce (defaults to the next account nonce)")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	switch args[0] {
	case "mint":
		if strings.TrimSpace(eventAddr) == "" {
			return printError(stderr, "--event is required")
		}
		return signedCall(stdout, stderr, keyPath, nonce, "ticket_mint", map[string]interface{}{"event": eventAddr})
	case "scan":
		if strings.TrimSpace(mint) == "" {
			return printError(stderr, "--mint is required")
		}
		return signedCall(stdout, stderr, keyPath, nonce, "ticket_scan", map[string]interface{}{"mint": mint})
	case "get":
		if strings.TrimSpace(mint) == "" {
			return printError(stderr, "--mint is required")
		}
		return call(stdout, stderr, "ticket_get", map[string]interface{}{"mint": mint})
	default:
		return printError(stderr, fmt.Sprintf("unknown ticket subcommand: %s", args[0]))
	}
}

func runPlatformCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || args[0] != "get" {
		return printError(stderr, "usage: platform get")
	}
	return call(stdout, stderr, "platform_get", nil)
}

func runHistoryCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return printError(stderr, "usage: history sales [--asset MINT] [--limit N] | history volume")
	}
	switch args[0] {
	case "sales":
		fs := newFlagSet("history sales", stderr)
		var asset string
		var limit int
		fs.StringVar(&asset, "asset", "", "only sales of this ticket mint")
		fs.IntVar(&limit, "limit", 0, "maximum number of sales (server default when zero)")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if limit < 0 {
			return printError(stderr, "--limit must not be negative")
		}
		return call(stdout, stderr, "history_sales", map[string]interface{}{"asset": asset, "limit": limit})
	case "volume":
		return call(stdout, stderr, "history_volume", nil)
	default:
		return printError(stderr, fmt.Sprintf("unknown history subcommand: %s", args[0]))
	}
}
