package main

import (
	"fmt"
	"io"
	"math/big"
	"strings"
)

func marketUsage() string {
	return strings.Join([]string{
		"Usage: nft-cli market <subcommand> [flags]",
		"  list     --key FILE --asset MINT --price AMOUNT [--nonce N]",
		"  delist   --key FILE --asset MINT [--nonce N]",
		"  purchase --key FILE --asset MINT [--nonce N]",
		"  get      --asset MINT",
		"  quote    --asset MINT",
	}, "\n")
}

func runMarketCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, marketUsage())
		return 1
	}
	switch args[0] {
	case "list":
		return runMarketList(args[1:], stdout, stderr)
	case "delist":
		return runMarketAssetWrite("market_delist", args[1:], stdout, stderr)
	case "purchase":
		return runMarketAssetWrite("market_purchase", args[1:], stdout, stderr)
	case "get":
		return runMarketQuery("market_get", args[1:], stdout, stderr)
	case "quote":
		return runMarketQuery("market_quote", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown market subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, marketUsage())
		return 1
	}
}

func runMarketList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market list", stderr)
	var keyPath, asset, price, nonce string
	fs.StringVar(&keyPath, "key", "", "seller keystore")
	fs.StringVar(&asset, "asset", "", "ticket mint address")
	fs.StringVar(&price, "price", "", "asking price in base units")
	fs.StringVar(&nonce, "nonce", "", "signer nonce (defaults to the next account nonce)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(asset) == "" {
		return printError(stderr, "--asset is required")
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(price), 10)
	if !ok || value.Sign() <= 0 {
		return printError(stderr, "--price must be a positive integer")
	}
	return signedCall(stdout, stderr, keyPath, nonce, "market_list", map[string]interface{}{
		"asset": asset,
		"price": value.String(),
	})
}

func runMarketAssetWrite(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(strings.Replace(method, "_", " ", 1), stderr)
	var keyPath, asset, nonce string
	fs.StringVar(&keyPath, "key", "", "signer keystore")
	fs.StringVar(&asset, "asset", "", "ticket mint address")
	fs.StringVar(&nonce, "nonce", "", "signer nonce (defaults to the next account nonce)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(asset) == "" {
		return printError(stderr, "--asset is required")
	}
	return signedCall(stdout, stderr, keyPath, nonce, method, map[string]interface{}{"asset": asset})
}

func runMarketQuery(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(strings.Replace(method, "_", " ", 1), stderr)
	var asset string
	fs.StringVar(&asset, "asset", "", "ticket mint address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(asset) == "" {
		return printError(stderr, "--asset is required")
	}
	return call(stdout, stderr, method, map[string]interface{}{"asset": asset})
}
