package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nftickets/cmd/internal/passphrase"
	"nftickets/crypto"
	"nftickets/rpc"
)

const (
	keyPassEnv = "NFT_KEY_PASS"
	tokenEnv   = "NFT_RPC_TOKEN"
)

var rpcEndpoint = defaultRPCEndpoint()

// rpcCall is swapped out in tests.
var rpcCall = func(method string, params interface{}) (json.RawMessage, error) {
	client := rpc.NewClient(rpcEndpoint, os.Getenv(tokenEnv))
	return client.Call(context.Background(), method, params)
}

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "balance":
		return runBalance(args[1:], stdout, stderr)
	case "market":
		return runMarketCommand(args[1:], stdout, stderr)
	case "ticket":
		return runTicketCommand(args[1:], stdout, stderr)
	case "platform":
		return runPlatformCommand(args[1:], stdout, stderr)
	case "history":
		return runHistoryCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: nft-cli [--rpc URL] <command> [flags]",
		"",
		"Commands:",
		"  keygen --out FILE                       create an encrypted key",
		"  balance ADDRESS                         show payment balance and nonce",
		"  market list|delist|purchase|get|quote   trade tickets on the resale market",
		"  ticket mint|scan|get                    buy, redeem and inspect tickets",
		"  platform get                            show the platform configuration",
		"  history sales|volume                    query indexed sales",
		"",
		"Keystores are unlocked with " + keyPassEnv + " or an interactive prompt.",
		"Admin methods read a bearer token from " + tokenEnv + ".",
	}, "\n")
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("NFT_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8547"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleCallError(w io.Writer, err error) int {
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		fmt.Fprintf(w, "RPC error %d: %s\n", rpcErr.Code, rpcErr.Error())
		return 1
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err == nil {
		if formatted, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			result = formatted
		}
	}
	fmt.Fprintln(w, string(result))
}

func call(stdout, stderr io.Writer, method string, params interface{}) int {
	result, err := rpcCall(method, params)
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--key is required")
	}
	pass, err := passphrase.NewSource(keyPassEnv, "wallet keystore").Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("keystore %s not found. run nft-cli keygen first", path)
		}
		return nil, fmt.Errorf("unlock keystore %s: %w", path, err)
	}
	return key, nil
}

// resolveNonce returns the explicit --nonce value or the signer's next nonce
// as reported by the node.
func resolveNonce(raw string, signer crypto.Address) (uint64, error) {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		nonce, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("--nonce must be a non-negative integer")
		}
		return nonce, nil
	}
	result, err := rpcCall("account_get", map[string]interface{}{"address": signer.String()})
	if err != nil {
		return 0, err
	}
	var account rpc.AccountResult
	if err := json.Unmarshal(result, &account); err != nil {
		return 0, fmt.Errorf("decode account: %w", err)
	}
	return account.Nonce, nil
}

// signedCall signs params with the keystore at keyPath and submits method.
func signedCall(stdout, stderr io.Writer, keyPath, nonceRaw, method string, params map[string]interface{}) int {
	key, err := loadKey(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	nonce, err := resolveNonce(nonceRaw, key.Address())
	if err != nil {
		return handleCallError(stderr, err)
	}
	body, err := rpc.SignParams(key, method, nonce, params)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return call(stdout, stderr, method, body)
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	var out string
	fs.StringVar(&out, "out", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		return printError(stderr, "--out is required")
	}
	if _, err := os.Stat(out); err == nil {
		return printError(stderr, fmt.Sprintf("%s already exists", out))
	}
	pass, err := passphrase.NewSource(keyPassEnv, "wallet keystore").Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := crypto.SaveToKeystore(out, key, pass); err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", key.Address().String(), out)
	return 0
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: balance ADDRESS")
	}
	if _, err := crypto.DecodeAddress(args[0]); err != nil {
		return printError(stderr, err.Error())
	}
	return call(stdout, stderr, "account_get", map[string]interface{}{"address": args[0]})
}
