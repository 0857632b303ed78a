package main

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ontime/billsplit/internal/auth"
	"github.com/ontime/billsplit/internal/config"
	"github.com/ontime/billsplit/internal/ens"
	"github.com/ontime/billsplit/internal/ledger"
	"github.com/ontime/billsplit/internal/metrics"
	"github.com/ontime/billsplit/internal/middleware"
	"github.com/ontime/billsplit/internal/offchain"
	"github.com/ontime/billsplit/internal/service"
	"github.com/ontime/billsplit/internal/session"
	"github.com/ontime/billsplit/internal/storage/sqlite"
	"github.com/ontime/billsplit/internal/units"
	"github.com/ontime/billsplit/internal/wallet"
	"github.com/ontime/billsplit/pkg/api/apiconnect"
	"github.com/ontime/billsplit/pkg/logging"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logging.Setup()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	var client *ethclient.Client
	if cfg.RPCURL != "" {
		client, err = ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			slog.Error("Failed to connect to RPC", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		slog.Info("RPC client ready", "chain_id", cfg.ChainID)
	}

	deps := service.ExpenseDeps{
		Store:   store,
		ChainID: cfg.ChainID,
	}
	if deps.MinAmountWei, err = units.ParseEther(cfg.MinExpenseETH); err != nil {
		slog.Error("Invalid MIN_EXPENSE_ETH", "error", err)
		os.Exit(1)
	}

	switch cfg.LedgerMode {
	case config.LedgerMemory:
		memory := ledger.NewMemory(nil)
		deps.Ledger = memory
		deps.Rewards = memory
		slog.Warn("Using in-memory ledger; expenses are lost on restart")
	default:
		if err := wireContract(ctx, cfg, client, &deps); err != nil {
			slog.Error("Failed to set up contract ledger", "error", err)
			os.Exit(1)
		}
	}

	if client != nil {
		registry := ens.DefaultRegistry
		if cfg.ENSRegistryAddress != "" {
			registry = common.HexToAddress(cfg.ENSRegistryAddress)
		}
		deps.Resolver = ens.NewClient(client, registry, cfg.ENSCacheTTL)
	}

	var transport offchain.Transport = offchain.Disabled{}
	if cfg.OffchainEnabled() {
		amqpTransport, err := offchain.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, slog.Default())
		if err != nil {
			// Settlement works without sessions.
			slog.Warn("Off-chain transport unavailable", "error", err)
		} else {
			defer amqpTransport.Shutdown()
			transport = amqpTransport
			slog.Info("Off-chain transport connected", "exchange", cfg.AMQPExchange)
		}
	}
	deps.Notifier = session.NewNotifier(offchain.Static(transport), store)

	recorder := metrics.NewPrometheusRecorder()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	authenticator := auth.NewWalletAuthenticator(store, cfg.ChainID, 5*time.Minute)

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(recorder),
		middleware.RequireAuth(jwtManager,
			apiconnect.ExpenseServicePreviewSplitProcedure,
			apiconnect.ExpenseServiceGetProfileProcedure,
			apiconnect.AuthServiceChallengeProcedure,
			apiconnect.AuthServiceVerifyProcedure,
		),
	)

	mux := http.NewServeMux()

	// Register Connect services
	expensePath, expenseHandler := apiconnect.NewExpenseServiceHandler(service.NewExpenseService(deps), interceptors)
	mux.Handle(expensePath, expenseHandler)

	authSvc := service.NewAuthService(authenticator, jwtManager, deps.Resolver, store, slog.Default())
	authPath, authHandler := apiconnect.NewAuthServiceHandler(authSvc, interceptors)
	mux.Handle(authPath, authHandler)

	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2cHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Connect server starting", "address", cfg.Addr(), "ledger", cfg.LedgerMode, "offchain", cfg.OffchainEnabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// wireContract binds the deployed BillSplit contract and, when configured,
// the operator signer and the ARC reward token.
func wireContract(ctx context.Context, cfg *config.Config, client *ethclient.Client, deps *service.ExpenseDeps) error {
	if client == nil {
		return errors.New("RPC_URL is required for the contract ledger")
	}
	chainID := big.NewInt(cfg.ChainID)

	remote, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	if remote.Cmp(chainID) != 0 {
		slog.Warn("RPC chain differs from CHAIN_ID", "rpc_chain_id", remote.String(), "chain_id", cfg.ChainID)
	}

	var submitter wallet.Submitter
	if cfg.SignerPrivateKey != "" {
		signer, err := wallet.NewKeySigner(cfg.SignerPrivateKey, client, chainID)
		if err != nil {
			return err
		}
		submitter = signer
		slog.Info("Operator signer loaded", "address", signer.Address().Hex())
	} else {
		slog.Info("No operator signer; writes go through browser wallets")
	}

	address := common.HexToAddress(cfg.BillSplitAddress)
	deps.Ledger = ledger.NewContract(client, address, submitter, cfg.ReceiptPollInterval)
	deps.Contract = address
	deps.Sender = client

	if cfg.ARCTokenAddress != "" {
		token := ledger.NewRewardToken(client, common.HexToAddress(cfg.ARCTokenAddress))
		deps.Rewards = token

		status, err := token.CheckLink(ctx, address)
		switch {
		case err != nil:
			slog.Warn("Could not read reward token link", "error", err)
		case status.NotSet:
			slog.Warn("Reward token has no BillSplit contract; fast payers will not be minted ARC")
		case !status.Linked:
			slog.Warn("Reward token is linked to a different contract", "linked", status.Current.Hex(), "expected", address.Hex())
		}
	}

	slog.Info("Contract ledger ready", "billsplit", address.Hex())
	return nil
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
