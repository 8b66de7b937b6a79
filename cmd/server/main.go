package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/dispatch"
	"main/internal/gateway"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/store"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty disables profiling)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config %s, err: %v", *configPath, err)
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trade-relay",
			ServerAddress:   *pyroscopeAddr,
			Tags: map[string]string{
				"env": "local",
			},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("start pyroscope, err: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	st, cleanup, err := openStore(cfg)
	if err != nil {
		logs.Fatalf("open store, err: %v", err)
	}
	defer cleanup()

	broker := gateway.NewSim(gateway.SimConfig{
		TradeQuota:     cfg.Gateway.TradeQuota,
		SubscribeQuota: cfg.Gateway.SubscribeQuota,
	})

	d := dispatch.New(st, ledger.New(st), broker, obs.NewMetrics(), dispatch.Options{
		OutboundQueueSize: cfg.Server.OutboundQueueSize,
		OrderQueueSize:    cfg.Server.OrderQueueSize,
		FeedQueueSize:     cfg.Server.FeedQueueSize,
	})
	if err := d.Seed(); err != nil {
		logs.Fatalf("seed position subscriptions, err: %v", err)
	}
	go d.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.Path, d.HandleWS)
	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logs.Infof("serving on %s%s, database: %s, gateway: %s",
		cfg.Server.Listen, cfg.Server.Path, cfg.Database.Mode, cfg.Gateway.Mode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logs.Fatalf("serve, err: %v", err)
	}
	logs.Info("server stopped")
}

func openStore(cfg ops.FileConfig) (store.Store, func(), error) {
	switch cfg.Database.Mode {
	case ops.DatabasePostgres:
		db, err := conn.NewPostgres(conn.PostgresOption{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewGorm(db)
		if err != nil {
			_ = conn.ClosePostgres(db)
			return nil, nil, err
		}
		return st, func() { _ = conn.ClosePostgres(db) }, nil
	default:
		st := store.NewMemory()
		for _, u := range cfg.Users {
			st.PutUser(u.Username, u.Password)
		}
		return st, func() {}, nil
	}
}
