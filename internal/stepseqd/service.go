// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stepseqd wires config, logging, the durable store, the
// session-engine registry and its idle-sweep scheduler, and the HTTP
// router into one runnable service. It is the program-level assembly
// point cmd/stepseqd calls into; nothing here owns domain logic.
package stepseqd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aleutian-labs/stepseq/internal/config"
	"github.com/aleutian-labs/stepseq/internal/engine"
	"github.com/aleutian-labs/stepseq/internal/httpapi"
	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/store"
	"github.com/aleutian-labs/stepseq/internal/store/badgerstore"
	"github.com/aleutian-labs/stepseq/internal/store/memstore"
	"github.com/aleutian-labs/stepseq/pkg/extensions"
)

// Service owns stepseqd's full process lifetime: the durable store,
// every live session engine, the idle-sweep scheduler, and the HTTP
// server.
type Service struct {
	config config.Config
	log    *logging.Logger

	store     store.Store
	metrics   *metrics.SessionMetrics
	registry  *engine.Registry
	scheduler *engine.Scheduler

	httpServer    *http.Server
	tracerCleanup func(context.Context)
}

// New constructs a Service from cfg: opens the durable store, builds
// the registry/scheduler/router, and (if OTLPEndpoint is set) starts
// tracing. It does not start serving; call Run for that.
func New(cfg config.Config, log *logging.Logger) (*Service, error) {
	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("stepseqd: open store: %w", err)
	}

	m := metrics.NewSessionMetrics()
	registry := engine.NewRegistry(st, m, log)
	scheduler := engine.NewScheduler(registry, cfg.IdleSweepPeriod, cfg.IdleEvictAfter, log)

	s := &Service{
		config:    cfg,
		log:       log,
		store:     st,
		metrics:   m,
		registry:  registry,
		scheduler: scheduler,
	}

	var authProvider extensions.AuthProvider
	if cfg.AdminJWTSecret != "" {
		jwtProvider, err := httpapi.NewJWTAuthProvider(cfg.AdminJWTSecret)
		if err != nil {
			return nil, fmt.Errorf("stepseqd: admin auth: %w", err)
		}
		authProvider = jwtProvider
	}

	if cfg.OTLPEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			log.Warn("tracer init failed, continuing without tracing", "error", err)
		} else {
			s.tracerCleanup = cleanup
		}
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Registry:      registry,
		Store:         st,
		Metrics:       m,
		Log:           log,
		AuthProvider:  authProvider,
		SPAShellHTML:  defaultShellHTML,
		PublicBaseURL: "",
	})

	s.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	return s, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "badger", "":
		if cfg.Path == "" {
			return badgerstore.OpenInMemory()
		}
		return badgerstore.OpenWithPath(cfg.Path)
	default:
		return nil, fmt.Errorf("stepseqd: unknown store driver %q", cfg.Driver)
	}
}

// Run starts the idle-sweep scheduler and serves HTTP until ctx is
// cancelled, then gracefully drains in-flight requests and flushes
// every live session before returning.
func (s *Service) Run(ctx context.Context) error {
	defer s.cleanup()

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("stepseqd: start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("stepseqd listening", "addr", s.config.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	opts := []grpc.DialOption{}
	if s.config.OTLPInsecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(s.config.OTLPEndpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("stepseqd: grpc dial: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("stepseqd: trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("stepseqd")))
	if err != nil {
		return nil, fmt.Errorf("stepseqd: trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			s.log.Warn("otlp exporter shutdown failed", "error", err)
		}
	}, nil
}

func (s *Service) cleanup() {
	s.scheduler.Stop()
	s.registry.Shutdown()
	if err := s.store.Close(); err != nil {
		s.log.Warn("store close failed", "error", err)
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
