// Package app wires configuration, storage, markets and pools into a
// running daemon.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"partybid/internal/config"
	"partybid/internal/eventlog"
	"partybid/internal/eventlog/wsfeed"
	"partybid/internal/keeper"
	"partybid/internal/market"
	"partybid/internal/observability"
	"partybid/internal/pool"
	"partybid/internal/reporting"
	"partybid/internal/storage/clickhouse"
	"partybid/internal/storage/indexer"
	"partybid/internal/storage/memory"
	"partybid/internal/storage/migrations"
	"partybid/internal/storage/postgres"
)

// Options overrides collaborators that New would otherwise build from config.
type Options struct {
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Market   market.Market // Default: JSON-RPC client for cfg.Market.RPCURL
}

// App owns every long-lived component of the daemon.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	pools   *pool.Registry
	hubs    map[string]*wsfeed.Hub
	indexer *indexer.Indexer
	reports *reporting.Generator
	keeper  *keeper.Keeper

	started time.Time
	closers []func()
	once    sync.Once
}

// New builds the app. Call Close when done, even if Run was never called.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  observability.NewMetrics("partybid", reg),
		pools:    pool.NewRegistry(),
		hubs:     make(map[string]*wsfeed.Hub),
		started:  time.Now(),
	}

	stores, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.indexer, err = indexer.New(stores, cfg.Storage.Backend, logger.Named("indexer"), a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.reports = reporting.NewGenerator(stores.Accounts, stores.Contributions, stores.Redemptions)

	history, err := a.openHistory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	m := opts.Market
	if m == nil {
		m = market.NewRPCClient(cfg.Market.RPCURL,
			market.WithTimeout(cfg.Market.Timeout),
			market.WithMaxRetries(cfg.Market.MaxRetries),
			market.WithMetrics(a.metrics))
	}

	for i, spec := range cfg.Pools {
		if err := a.addPool(spec, m, history); err != nil {
			a.Close()
			return nil, fmt.Errorf("pools[%d] %s: %w", i, spec.ID, err)
		}
	}

	a.keeper, err = keeper.New(keeper.Options{
		Registry: a.pools,
		Interval: cfg.Keeper.Interval,
		Logger:   logger.Named("keeper"),
		Metrics:  a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) (indexer.Stores, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		pg, err := postgres.NewPool(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return indexer.Stores{}, err
		}
		a.closers = append(a.closers, pg.Close)
		if a.cfg.Storage.Migrate {
			applied, err := migrations.ApplyPostgres(ctx, pg)
			if err != nil {
				return indexer.Stores{}, err
			}
			a.logger.Info("postgres migrations applied", zap.Strings("files", applied))
		}
		return indexer.Stores{
			Accounts:      postgres.NewAccountStore(pg),
			Contributions: postgres.NewContributionStore(pg),
			Redemptions:   postgres.NewRedemptionStore(pg),
			Events:        postgres.NewEventStore(pg),
		}, nil
	default:
		return indexer.Stores{
			Accounts:      memory.NewAccountStore(),
			Contributions: memory.NewContributionStore(),
			Redemptions:   memory.NewRedemptionStore(),
			Events:        memory.NewEventStore(),
		}, nil
	}
}

// openHistory connects the optional ClickHouse event history.
func (a *App) openHistory(ctx context.Context) (eventlog.Sink, error) {
	dsn := a.cfg.Storage.ClickhouseDSN
	if dsn == "" {
		return nil, nil
	}

	var conn *clickhouse.Conn
	var err error
	if a.cfg.Storage.Migrate {
		conn, err = clickhouse.Migrate(ctx, dsn)
	} else {
		conn, err = clickhouse.NewConn(ctx, dsn)
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := conn.Close(); err != nil {
			a.logger.Warn("close clickhouse", zap.Error(err))
		}
	})
	return indexer.EventSink(clickhouse.NewEventStore(conn)), nil
}

func (a *App) addPool(spec config.PoolSpec, m market.Market, history eventlog.Sink) error {
	poolCfg, err := spec.Pool()
	if err != nil {
		return err
	}
	gwCfg, err := spec.Gateway()
	if err != nil {
		return err
	}

	logger := a.logger.With(zap.String("pool", poolCfg.ID))
	gateway, err := market.NewGateway(gwCfg, m, logger.Named("gateway"))
	if err != nil {
		return err
	}

	log := eventlog.New(poolCfg.ID, logger, a.metrics)
	hub := wsfeed.NewHub(wsfeed.Config{
		SendBuffer:   a.cfg.Feed.SendBuffer,
		PingInterval: a.cfg.Feed.PingInterval,
	}, log, logger.Named("feed"), a.metrics)
	log.AddSink("feed", hub)
	if history != nil {
		log.AddSink("clickhouse", history)
	}

	p, err := pool.New(poolCfg, gateway, market.NewPayer(m, gwCfg.Self), log, logger, a.metrics)
	if err != nil {
		return err
	}
	p.AddObserver("indexer", a.indexer)

	if err := a.pools.Add(p); err != nil {
		return err
	}
	a.hubs[poolCfg.ID] = hub
	a.closers = append(a.closers, hub.Close)
	return nil
}

// Pools returns the pool registry.
func (a *App) Pools() *pool.Registry {
	return a.pools
}

// Keeper returns the outcome keeper.
func (a *App) Keeper() *keeper.Keeper {
	return a.keeper
}

// Handler returns the HTTP surface: /health, /metrics, /status,
// /report and the per-pool websocket feed at /events/{pool}.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler(a.registry))
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("GET /report", a.handleReport)
	mux.HandleFunc("GET /events/{pool}", func(w http.ResponseWriter, r *http.Request) {
		hub, ok := a.hubs[r.PathValue("pool")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		hub.ServeHTTP(w, r)
	})
	return mux
}

// PoolStatus is one entry of the /status response. Amounts are wei strings.
type PoolStatus struct {
	ID               string `json:"id"`
	State            string `json:"state"`
	Outcome          string `json:"outcome"`
	TotalContributed string `json:"total_contributed"`
	TotalSpentOnBid  string `json:"total_spent_on_bid"`
	Redeemable       string `json:"redeemable"`
	Excess           string `json:"excess"`
	EthBalance       string `json:"eth_balance"`
	ClaimTokenSupply string `json:"claim_token_supply"`
	Events           int    `json:"events"`
	FeedClients      int    `json:"feed_clients"`
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status string       `json:"status"`
	Uptime string       `json:"uptime"`
	Pools  []PoolStatus `json:"pools"`
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: "running",
		Uptime: time.Since(a.started).Round(time.Second).String(),
	}
	for _, p := range a.pools.All() {
		acct := p.Account()
		resp.Pools = append(resp.Pools, PoolStatus{
			ID:               p.ID(),
			State:            acct.State.String(),
			Outcome:          acct.Outcome.String(),
			TotalContributed: acct.TotalContributed.Dec(),
			TotalSpentOnBid:  acct.TotalSpentOnBid.Dec(),
			Redeemable:       acct.RedeemableEthBalance.Dec(),
			Excess:           acct.ExcessContributions.Dec(),
			EthBalance:       acct.EthBalance.Dec(),
			ClaimTokenSupply: acct.ClaimTokenTotalSupply.Dec(),
			Events:           p.EventLog().Len(),
			FeedClients:      a.hubs[p.ID()].Clients(),
		})
	}
	sort.Slice(resp.Pools, func(i, j int) bool { return resp.Pools[i].ID < resp.Pools[j].ID })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Debug("write status", zap.Error(err))
	}
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.reports.Generate(r.Context())
	if err != nil {
		a.logger.Error("generate report", zap.Error(err))
		http.Error(w, "report unavailable", http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(reporting.RenderMarkdown(report)))
	case "pools.csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(reporting.RenderPoolsCSV(report.Pools)))
	case "contributors.csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(reporting.RenderContributorsCSV(report.Contributors)))
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
	}
}

// Run serves HTTP on cfg.ListenAddr and runs the keeper until ctx is
// cancelled, then shuts the server down and resyncs storage projections.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	keeperDone := make(chan struct{})
	go func() {
		defer close(keeperDone)
		if err := a.keeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("keeper: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stop()
	<-keeperDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	a.Resync(shutdownCtx)
	return runErr
}

// Resync writes anything the indexer missed, e.g. after a storage outage.
func (a *App) Resync(ctx context.Context) {
	for _, p := range a.pools.All() {
		if err := a.indexer.Sync(ctx, p); err != nil {
			a.logger.Error("resync pool", zap.String("pool", p.ID()), zap.Error(err))
		}
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	a.once.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	})
}
