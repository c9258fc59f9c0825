package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"fuego-wallet/go-agent/internal/config"
	"fuego-wallet/go-agent/internal/facilitator"
	"fuego-wallet/go-agent/internal/keystore"
	"fuego-wallet/go-agent/internal/merchant"
	"fuego-wallet/go-agent/internal/platform/privacylog"
	"fuego-wallet/go-agent/internal/purchase"
	"fuego-wallet/go-agent/internal/wallet"
	"fuego-wallet/go-agent/pkg/models"
)

var (
	version = "dev"
	commit  = "unknown"
)

const unlockAttemptsPerMinute = 6

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	productURL := flag.String("product-url", "", "product page URL to purchase")
	email := flag.String("email", "", "buyer email")
	name := flag.String("name", "", "recipient name")
	line1 := flag.String("address-line1", "", "shipping address line 1")
	line2 := flag.String("address-line2", "", "shipping address line 2 (optional)")
	city := flag.String("city", "", "shipping city")
	state := flag.String("state", "", "shipping state or province")
	postalCode := flag.String("postal-code", "", "shipping postal code")
	country := flag.String("country", "US", "shipping country code")
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	walletPath := flag.String("wallet", "", "keystore file override (optional)")
	testMode := flag.Bool("test-mode", false, "stop once the merchant accepts payment, skip settlement")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fuego-purchase version=%s commit=%s\n", version, commit)
		return 0
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.SetDefault(logger)

	if *productURL == "" || *email == "" || *name == "" || *line1 == "" {
		fmt.Fprintln(os.Stderr, "product-url, email, name and address-line1 are required")
		flag.Usage()
		return 1
	}

	cfg := config.LoadFromPath(*configPath)
	if *walletPath != "" {
		cfg.WalletPath = *walletPath
	}

	password := strings.TrimSpace(os.Getenv("FUEGO_WALLET_PASSWORD"))
	if password == "" {
		fmt.Fprintln(os.Stderr, "set FUEGO_WALLET_PASSWORD to unlock the wallet")
		return 1
	}

	unlocker := keystore.NewUnlocker(unlockAttemptsPerMinute, cfg.UnlockBurst)
	secret, err := unlocker.Unlock(cfg.WalletPath, password)
	if err != nil {
		logger.Error("wallet unlock failed", slog.String("wallet_path", cfg.WalletPath), slog.String("error", err.Error()))
		return 1
	}
	id := wallet.NewIdentity(secret)
	secret.Zero()
	defer id.Zero()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fac := facilitator.NewClient(cfg.FacilitatorURL, cfg.Network, cfg.HTTPTimeout)
	shop := merchant.NewClient(cfg.MerchantURL, cfg.HTTPTimeout)

	opts := []purchase.Option{
		purchase.WithLogger(logger),
		purchase.WithMetrics(purchase.NewMetrics(prometheus.DefaultRegisterer)),
	}
	if *testMode {
		opts = append(opts, purchase.WithPaymentOnly())
	}
	orchestrator := purchase.New(shop, fac, fac, id, opts...)

	order := models.OrderRequest{
		Email:      *email,
		ProductURL: *productURL,
		PhysicalAddress: models.PhysicalAddress{
			Name:       *name,
			Line1:      *line1,
			Line2:      *line2,
			City:       *city,
			State:      *state,
			PostalCode: *postalCode,
			Country:    *country,
		},
	}

	result, err := orchestrator.Run(ctx, order)
	if err != nil {
		fmt.Fprintf(os.Stderr, "purchase failed (%s): %v\n", purchase.KindOf(err), err)
		return 1
	}

	fmt.Printf("order %s complete\n", result.OrderID)
	switch {
	case result.PaymentSkipped:
		fmt.Println("no payment was required")
	case result.Signature == "":
		fmt.Println("payment accepted, settlement skipped")
	default:
		fmt.Printf("signature: %s\n", result.Signature)
		if result.ExplorerLink != "" {
			fmt.Printf("explorer: %s\n", result.ExplorerLink)
		}
	}
	return 0
}
