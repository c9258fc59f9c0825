package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fuego-wallet/go-agent/internal/config"
	"fuego-wallet/go-agent/internal/keystore"
	"fuego-wallet/go-agent/internal/wallet"
)

const unlockAttemptsPerMinute = 6

func main() {
	os.Exit(run())
}

func run() int {
	walletPath := flag.String("wallet", "", "keystore file override (optional)")
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		return 2
	}

	cfg := config.LoadFromPath(*configPath)
	if *walletPath != "" {
		cfg.WalletPath = *walletPath
	}

	switch flag.Arg(0) {
	case "init":
		return cmdInit(cfg.WalletPath)
	case "address":
		return cmdAddress(cfg)
	case "export":
		return cmdExport(cfg)
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: fuego-wallet [-wallet path] [-config path] <command>

commands:
  init     create a new wallet; prints the recovery mnemonic once
  address  print the wallet's public address
  export   print the base58 secret key (requires unlock)

The wallet password is read from FUEGO_WALLET_PASSWORD.`)
}

func password() (string, bool) {
	pw := strings.TrimSpace(os.Getenv("FUEGO_WALLET_PASSWORD"))
	if pw == "" {
		fmt.Fprintln(os.Stderr, "set FUEGO_WALLET_PASSWORD")
		return "", false
	}
	return pw, true
}

func cmdInit(path string) int {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "refusing to overwrite existing wallet at %s\n", path)
		return 1
	}
	pw, ok := password()
	if !ok {
		return 1
	}

	created, err := wallet.Create(pw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create wallet: %v\n", err)
		return 1
	}
	defer created.Identity.Zero()

	if err := created.Record.Write(path); err != nil {
		fmt.Fprintf(os.Stderr, "write wallet: %v\n", err)
		return 1
	}

	fmt.Printf("wallet created at %s\n", path)
	fmt.Printf("address: %s\n\n", created.Identity.Address())
	fmt.Println("recovery mnemonic (shown once, store it offline):")
	fmt.Println(created.Mnemonic)
	return 0
}

func cmdAddress(cfg config.Config) int {
	id, code := unlock(cfg)
	if id == nil {
		return code
	}
	defer id.Zero()
	fmt.Println(id.Address())
	return 0
}

func cmdExport(cfg config.Config) int {
	id, code := unlock(cfg)
	if id == nil {
		return code
	}
	defer id.Zero()

	secretKey, err := id.ExportSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "warning: anyone with this key controls the wallet")
	fmt.Println(secretKey)
	return 0
}

func unlock(cfg config.Config) (*wallet.Identity, int) {
	pw, ok := password()
	if !ok {
		return nil, 1
	}
	unlocker := keystore.NewUnlocker(unlockAttemptsPerMinute, cfg.UnlockBurst)
	secret, err := unlocker.Unlock(cfg.WalletPath, pw)
	if err != nil {
		switch {
		case errors.Is(err, keystore.ErrDecryptionFailed):
			fmt.Fprintln(os.Stderr, "wrong password")
		case errors.Is(err, keystore.ErrTooManyAttempts):
			fmt.Fprintf(os.Stderr, "too many unlock attempts, retry in %s\n", unlocker.RetryAfter(cfg.WalletPath).Round(time.Second))
		default:
			fmt.Fprintf(os.Stderr, "unlock %s: %v\n", cfg.WalletPath, err)
		}
		return nil, 1
	}
	id := wallet.NewIdentity(secret)
	secret.Zero()
	return id, 0
}
