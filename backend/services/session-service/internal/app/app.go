package app

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "fairpay/backend/libs/db"
	libredis "fairpay/backend/libs/redis"
	"fairpay/backend/services/session-service/internal/auth"
	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/config"
	"fairpay/backend/services/session-service/internal/deposit"
	"fairpay/backend/services/session-service/internal/history"
	httpserver "fairpay/backend/services/session-service/internal/http"
	"fairpay/backend/services/session-service/internal/http/handlers"
	"fairpay/backend/services/session-service/internal/http/middleware"
	"fairpay/backend/services/session-service/internal/kv"
	"fairpay/backend/services/session-service/internal/mining"
	"fairpay/backend/services/session-service/internal/models"
	"fairpay/backend/services/session-service/internal/service"
	"fairpay/backend/services/session-service/internal/session"
	"fairpay/backend/services/session-service/internal/status"
	"fairpay/backend/services/session-service/internal/wallet"
	"fairpay/backend/services/session-service/internal/ws"
)

// sharedRand draws from the concurrency-safe top-level math/rand source.
type sharedRand struct{}

func (sharedRand) IntN(n int) int   { return rand.Intn(n) }
func (sharedRand) Float64() float64 { return rand.Float64() }

// App wires session-service dependencies.
type App struct {
	cfg     *config.Config
	handler http.Handler
	server  *httpserver.Server

	service   *service.SessionService
	simulator *session.Simulator
	monitor   mining.Monitor
	poller    *status.Poller
	wsManager *ws.Manager
	feed      *ws.StatusFeed

	cancel      context.CancelFunc
	unwatch     func()
	db          *sql.DB
	redisClient *redis.Client
	rpcClient   *rpc.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	return newApp(ctx, cfg, clock.NewReal(), nil, logger)
}

// newApp builds the graph. A nil provider falls back to the RPC node when one is configured.
func newApp(ctx context.Context, cfg *config.Config, clk clock.Clock, provider wallet.Provider, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &App{cfg: cfg, cancel: cancel, logger: logger}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Chain.RPCURL != "" {
		a.rpcClient, err = rpc.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("app: dial rpc: %w", err)
		}
	}

	sessionStore := session.NewStore(store, logger.Named("session"))
	if err := sessionStore.Load(ctx); err != nil {
		return nil, err
	}
	txLog := history.New(store, clk, logger.Named("history"), history.Config{
		MaxEntries:   cfg.History.MaxEntries,
		ExplorerBase: cfg.History.ExplorerBase,
	})
	if err := txLog.Load(ctx); err != nil {
		return nil, err
	}
	ledger := deposit.NewLedger(store, logger.Named("deposit"))
	if err := ledger.Load(ctx); err != nil {
		return nil, err
	}

	a.monitor = a.buildMonitor(txLog, clk)
	a.simulator = session.NewSimulator(sessionStore, clk, sharedRand{}, session.SimulatorConfig{
		AutoInterval: cfg.Session.AutoInterval,
	}, logger.Named("simulator"))

	a.service, err = service.New(service.Config{
		DefaultDeposit:   cfg.Session.DefaultDeposit,
		DefaultUnitPrice: cfg.Session.DefaultUnitPrice,
		Mode:             models.SessionMode(cfg.Session.Mode),
	}, service.Deps{
		Store:     sessionStore,
		Simulator: a.simulator,
		History:   txLog,
		Monitor:   a.monitor,
		Ledger:    ledger,
		Logger:    logger.Named("service"),
	})
	if err != nil {
		return nil, err
	}

	a.poller = status.NewPoller(a.service.Status, clk, status.PollerConfig{
		Interval:         cfg.Status.PollInterval,
		RefreshPerSecond: cfg.Status.RefreshPerSecond,
	}, logger.Named("status"))
	a.service.OnChange(func() { a.poller.Publish() })

	a.wsManager = ws.NewManager(cfg.HTTP.WSPingInterval)
	a.feed = ws.NewStatusFeed(a.poller, a.wsManager, logger.Named("ws"))
	wsServer := ws.NewServer(appCtx, a.wsManager, a.feed, cfg.HTTP.WSWriteTimeout, cfg.HTTP.AllowedOrigins, logger.Named("ws"))

	if provider == nil && a.rpcClient != nil {
		provider = wallet.NewRPCProvider(a.rpcClient)
	}
	connector := wallet.NewConnector(provider, wallet.Sepolia(cfg.Chain.RPCURL, cfg.History.ExplorerBase), logger.Named("wallet"))
	a.unwatch = connector.Watch()

	var (
		tokens     *auth.TokenService
		challenges *auth.Challenges
		protect    func(http.Handler) http.Handler
		gate       func(http.Handler) http.Handler
	)
	if cfg.AuthEnabled() {
		tokens, err = auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.ExpiresIn, clk)
		if err != nil {
			return nil, err
		}
		challenges = auth.NewChallenges(cfg.Auth.ChallengeTTL, clk)
		protect = middleware.AuthMiddleware(tokens)
		gate = middleware.RequireWallet(connector)
	}

	sessionHandler := handlers.NewSessionHandler(a.service, a.poller, logger.Named("http"))
	walletHandler := handlers.NewWalletHandler(connector, tokens, challenges, logger.Named("http"))

	routes := httpserver.Routes{
		Health:        handlers.NewHealthHandler(a.healthInfo(), a.healthChecks()...),
		WalletConnect: walletHandler.HandleConnect,
		Wallet:        walletHandler.HandleState,
		StartSession:  sessionHandler.HandleStartSession,
		StopSession:   sessionHandler.HandleStopSession,
		ResetSession:  sessionHandler.HandleResetSession,
		ReportUsage:   sessionHandler.HandleReportUsage,
		AddDeposit:    sessionHandler.HandleAddDeposit,
		AutoUsage:     sessionHandler.HandleStartAuto,
		StopAutoUsage: sessionHandler.HandleStopAuto,
		RandomUsage:   sessionHandler.HandleRandomUsage,
		ManualUsage:   sessionHandler.HandleManualUsage,
		SessionStatus: sessionHandler.HandleStatus,
		Transactions:  handlers.NewTransactionsHandler(a.service, logger.Named("http")),
		Deposit:       sessionHandler.HandleDeposit,
		StatusFeed:    wsServer.HandleWS,
		Protect:       protect,
		Gate:          gate,
	}
	if challenges != nil {
		routes.WalletChallenge = walletHandler.HandleChallenge
	}

	a.handler = httpserver.NewRouter(routes)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), a.handler, cfg.HTTP.ShutdownTimeout, logger)
	built = true
	return a, nil
}

func (a *App) openStore(ctx context.Context) (kv.Store, error) {
	switch a.cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := libdb.NewPostgresDB(a.cfg.Database.DSN, libdb.PoolOptions{MaxOpenConns: a.cfg.Database.MaxOpenConns})
		if err != nil {
			return nil, fmt.Errorf("app: open postgres: %w", err)
		}
		a.db = db
		store := kv.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageRedis:
		client, err := libredis.NewRedisClient(libredis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("app: open redis: %w", err)
		}
		a.redisClient = client
		return kv.NewRedisStore(client, a.cfg.Redis.Prefix, a.cfg.Redis.TTL), nil
	default:
		return kv.NewMemoryStore(), nil
	}
}

func (a *App) buildMonitor(txLog *history.Log, clk clock.Clock) mining.Monitor {
	if a.cfg.Mining.Monitor == config.MonitorReceipt && a.rpcClient != nil {
		return mining.NewReceiptMonitor(ethclient.NewClient(a.rpcClient), txLog, clk, mining.ReceiptConfig{
			PollInterval:      a.cfg.Mining.PollInterval,
			Timeout:           a.cfg.Mining.Timeout,
			RequestsPerSecond: a.cfg.Mining.RPS,
		}, a.logger.Named("receipts"))
	}
	return mining.NewMockMiner(txLog, clk, sharedRand{}, mining.MockConfig{
		MinDelay:    a.cfg.Mining.MinDelay,
		MaxDelay:    a.cfg.Mining.MaxDelay,
		FailureRate: a.cfg.Mining.FailureRate,
	}, a.logger.Named("miner"))
}

func (a *App) healthInfo() handlers.HealthInfo {
	monitor := config.MonitorMock
	if _, ok := a.monitor.(*mining.ReceiptMonitor); ok {
		monitor = config.MonitorReceipt
	}
	return handlers.HealthInfo{
		Storage: a.cfg.Storage.Backend,
		Mode:    string(a.service.Mode()),
		Monitor: monitor,
	}
}

func (a *App) healthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if a.db != nil {
		checks = append(checks, handlers.HealthCheck{Name: "postgres", Check: a.db.PingContext})
	}
	if a.redisClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		}})
	}
	if a.rpcClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "rpc", Check: func(ctx context.Context) error {
			var chainID string
			return a.rpcClient.CallContext(ctx, &chainID, "eth_chainId")
		}})
	}
	return checks
}

// Handler exposes the router.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts background loops and the HTTP server until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.poller.Start()
	defer a.poller.Stop()
	go a.wsManager.Start(ctx)
	go a.feed.Run(ctx)
	return a.server.Run(ctx)
}

// Close stops timers and releases resources.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.unwatch != nil {
		a.unwatch()
	}
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.simulator != nil {
		a.simulator.StopAuto(context.Background())
	}
	if a.monitor != nil {
		a.monitor.Close()
	}
	if a.rpcClient != nil {
		a.rpcClient.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
