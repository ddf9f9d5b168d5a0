package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"tms.dev/internal/audit"
	"tms.dev/internal/auth"
	"tms.dev/internal/config"
	"tms.dev/internal/httpapi"
	"tms.dev/internal/obs"
	"tms.dev/internal/org"
	"tms.dev/internal/rbac"
	"tms.dev/internal/store/pg"
	"tms.dev/internal/task"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("TMS_CONFIG"), "Path to YAML config file")
	flag.Parse()

	log := obs.Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.LogLevel)

	// Инициализация observability (регистрация метрик, build info)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	hierarchy, err := cfg.Hierarchy()
	if err != nil {
		log.WithError(err).Fatal("role hierarchy")
	}

	store, err := pg.Open(cfg.Database.ConnString(), pg.PoolConfig{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer store.Close()

	api, grpcHealth, err := wire(cfg, store, hierarchy, log)
	if err != nil {
		log.WithError(err).Fatal("wire services")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	grpcHealth.Register(grpcSrv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go grpcHealth.Run(ctx, 10*time.Second)

	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "version": version}).Info("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http listen")
		}
	}()

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.WithError(err).Fatal("grpc listen")
		}
		go func() {
			log.WithField("addr", cfg.GRPCAddr).Info("grpc server starting")
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.WithError(err).Error("grpc serve")
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}
	log.Info("stopped")
}

func wire(cfg config.Config, store *pg.Store, hierarchy *rbac.Hierarchy, log *logrus.Logger) (*httpapi.API, *httpapi.GRPCServer, error) {
	authSvc, err := auth.NewService(store, cfg.Auth.JWTSecret, auth.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	orgSvc, err := org.NewService(store, org.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	resolver, err := rbac.NewResolver(store, rbac.WithHierarchy(hierarchy))
	if err != nil {
		return nil, nil, err
	}
	auditLog := audit.NewLogger(store, audit.WithLogger(log))
	taskSvc, err := task.NewService(store, orgSvc, resolver,
		task.WithAuditor(auditLog),
		task.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	probe := httpapi.ReadyProbe{DB: store.DB()}
	api, err := httpapi.New(probe, httpapi.Deps{
		Auth:        authSvc,
		Orgs:        orgSvc,
		Permissions: resolver,
		Tasks:       taskSvc,
		Audit:       auditLog,
	}, httpapi.Options{
		Version:    version,
		RateBurst:  cfg.Rate.Burst,
		RatePerSec: cfg.Rate.PerSecond,
		Logger:     log,
	})
	if err != nil {
		return nil, nil, err
	}
	return api, httpapi.NewGRPCServer(probe, version, log), nil
}
