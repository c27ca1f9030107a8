package main

// GET  /products/list      - list the catalog
// POST /cart/add           - add one unit of a product, opens the cart
// POST /cart/update        - set a line quantity (<= 0 removes)
// POST /cart/remove        - remove a line
// GET  /cart/list          - cart lines and totals
// POST /wallet/connect     - request an account from the wallet
// POST /checkout/open      - enter checkout (requires a connected wallet)
// POST /checkout/approve   - simulated spend approval
// POST /checkout/confirm   - simulated purchase confirmation
// GET  /state              - full session state

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"base-marketplace/checkout"
	"base-marketplace/config"
	"base-marketplace/handler"
	"base-marketplace/logging"
	"base-marketplace/metrics"
	"base-marketplace/service"
	"base-marketplace/store"
	"base-marketplace/wallet"

	"github.com/gorilla/mux"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup("base-marketplace", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Catalog ---
	catalog, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	defer closeCatalog()

	// --- Wallet ---
	var capability wallet.Capability
	if cfg.WalletRPC != "" {
		rpcCap, err := wallet.Dial(ctx, cfg.WalletRPC)
		if err != nil {
			// the storefront still runs; connect attempts report the wallet as missing
			logger.Error("wallet endpoint unavailable", "endpoint", cfg.WalletRPC, "error", err)
		} else {
			defer rpcCap.Close()
			capability = rpcCap
		}
	} else {
		logger.Warn("no wallet endpoint configured")
	}
	gate := wallet.NewGate(capability, cfg.AvatarBaseURL, logger)

	// --- Service ---
	m := metrics.New("storefront")
	delays := checkout.Delays{
		Approval:     cfg.ApprovalDelay.Duration,
		Confirmation: cfg.ConfirmationDelay.Duration,
	}
	svc := service.NewService(catalog, gate, service.Options{
		Clock:      checkout.SystemClock{},
		Delays:     delays,
		Metrics:    m,
		Logger:     logger,
		InstallURL: cfg.WalletInstallURL,
	})
	var serviceInterface service.ServiceInterface = svc

	// --- Handlers ---
	h := handler.NewHandler(serviceInterface, m)

	// --- Router ---
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	// --- Server ---
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("server running", "addr", cfg.ListenAddress, "catalog", cfg.CatalogSource)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Catalog, func(), error) {
	noop := func() {}
	switch cfg.CatalogSource {
	case config.CatalogPostgres:
		pg, err := store.NewPostgresCatalog(cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if cfg.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, noop, err
			}
			logger.Info("database migrations executed")
		}
		return pg, func() { pg.Close() }, nil
	default:
		if cfg.CatalogFile != "" {
			c, err := store.LoadStaticCatalogFile(cfg.CatalogFile)
			return c, noop, err
		}
		c, err := store.DefaultCatalog()
		return c, noop, err
	}
}
