// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway assembles the procurement analysis HTTP service.
//
// The gateway owns the long-lived pieces — the workflow engine, the
// Badger-backed checkpoint store, the upload store, the model and deck
// clients — and exposes them through the routes package. Construction
// is all-or-nothing: a gateway that New returns is ready to Run.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bidsight/bidsight/services/analysis"
	"github.com/bidsight/bidsight/services/deck"
	"github.com/bidsight/bidsight/services/gateway/observability"
	"github.com/bidsight/bidsight/services/gateway/routes"
	"github.com/bidsight/bidsight/services/gateway/uploads"
	"github.com/bidsight/bidsight/services/llm"
	"github.com/bidsight/bidsight/services/storage/badgerstore"
	"github.com/bidsight/bidsight/services/workflow"
)

// Service defines the contract for the gateway service.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Engine returns the workflow engine, for embedding callers.
	Engine() *workflow.Engine
}

// Config holds gateway configuration options. Zero values use
// defaults applied by New.
type Config struct {
	// Port is the HTTP server port. Default: 12400
	Port int

	// DataDir is the Badger checkpoint directory. Empty runs with
	// in-memory checkpoints only (no resume across restarts).
	DataDir string

	// LLMBackend selects the model provider.
	// Valid values: "openai", "ollama". Default: "openai"
	LLMBackend string

	// UploadsDir is where uploaded documents are stored.
	// Default: "./data/uploads"
	UploadsDir string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Empty disables tracing export.
	OTelEndpoint string

	// DeckBaseURL is the presentation service API base URL.
	// Empty disables deck generation (reviews still complete).
	DeckBaseURL string

	// DeckAPIKey authenticates against the presentation service.
	DeckAPIKey string

	// MaxConcurrency caps concurrently running analysts.
	// Default: engine default.
	MaxConcurrency int

	// EnableMetrics exposes the Prometheus endpoint at /metrics.
	// The zero value leaves the endpoint unregistered.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

type service struct {
	config        Config
	router        *gin.Engine
	engine        *workflow.Engine
	store         *badgerstore.DB
	uploadStore   *uploads.Store
	llmClient     llm.Client
	tracerCleanup func(context.Context)
}

// New creates a gateway Service with the given configuration.
//
// Description:
//
//	Initializes tracing and metrics, opens the checkpoint database,
//	builds the analysis pipeline topology and the engine around it,
//	and wires the HTTP routes. Initialization failures release any
//	resources already acquired.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the gateway")
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	deckClient := deck.NewClient(deck.Config{
		BaseURL: s.config.DeckBaseURL,
		APIKey:  s.config.DeckAPIKey,
	})

	topo, err := analysis.NewTopology(analysis.Config{
		LLM:  s.llmClient,
		Deck: deckClient,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build pipeline topology: %w", err)
	}

	opts := []workflow.Option{}
	if s.config.MaxConcurrency > 0 {
		opts = append(opts, workflow.WithMaxConcurrency(s.config.MaxConcurrency))
	}
	if s.config.DataDir != "" {
		db, err := badgerstore.Open(badgerstore.Config{Path: s.config.DataDir})
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
		}
		s.store = db
		cs, err := workflow.NewBadgerCheckpointStore(db)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		opts = append(opts, workflow.WithCheckpointStore(cs))
	}

	s.engine, err = workflow.NewEngine(topo, analysis.Schema(), opts...)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to create workflow engine: %w", err)
	}

	s.uploadStore, err = uploads.NewStore(s.config.UploadsDir)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to create upload store: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port)
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Engine() *workflow.Engine {
	return s.engine
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12400
	}
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = "./data/uploads"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	return cfg
}

// initLLMClient creates the model client for the configured backend.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to openai", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}

	return err
}

// initTracer sets up the OTLP trace exporter against the configured
// collector. Uses an insecure gRPC connection, appropriate for
// internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("bidsight-gateway")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("bidsight-gateway"))

	routes.SetupRoutes(s.router, routes.Dependencies{
		Engine:        s.engine,
		Uploads:       s.uploadStore,
		LLM:           s.llmClient,
		EnableMetrics: s.config.EnableMetrics,
	})
}

// cleanup releases resources on Run exit or failed initialization.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("checkpoint database close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

var _ Service = (*service)(nil)
