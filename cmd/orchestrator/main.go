package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"asynccalc/internal/api"
	"asynccalc/internal/auth"
	"asynccalc/internal/config"
	"asynccalc/internal/database"
	internalgrpc "asynccalc/internal/grpc"
	"asynccalc/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := config.LoadEnvFiles(config.DefaultEnvFiles...)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := config.NewLogger(os.Stderr, "orchestrator", cfg.LogLevel)
	if envFile != "" {
		logger.Info().Str("file", envFile).Msg("environment file loaded")
	}
	if cfg.UsesDefaultSecret() {
		logger.Warn().Msg("JWT_SECRET is not set, tokens are signed with the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now().UTC()
	store, err := database.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := orchestrator.NewRegistry(cfg.MaxPending)
	if _, err := orchestrator.Recover(ctx, store, registry, startedAt, logger); err != nil {
		return err
	}

	svc := orchestrator.NewService(store, registry, logger)
	processor := orchestrator.NewProcessor(registry, orchestrator.NewRepositorySink(store, logger),
		orchestrator.ProcessorConfig{Workers: cfg.Workers, Validation: cfg.Validation}, logger)
	cleaner := orchestrator.NewCleaner(store, cfg.Retention, cfg.CleanupInterval, logger)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.SetupRouter(svc, tokens, cfg.TokenTTL, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := internalgrpc.NewServer(svc, tokens, logger)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx)
	})
	g.Go(func() error {
		return cleaner.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", grpcListener.Addr().String()).Msg("grpc server started")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		grpcServer.GracefulStop()
		return nil
	})

	err = g.Wait()
	logger.Info().Int("unfinished", registry.Len()).Msg("stopped")
	return err
}
