// Smartfaqd serves the Smart FAQ question answering API over HTTP.
//
// Documents posted to /ingest are chunked, embedded and kept in memory;
// questions posted to /ask are answered by a chat-completions model using
// the closest chunks as context.
//
// Configuration comes from defaults, an optional YAML file and environment
// variables, in increasing priority. A .env file in the working directory
// is loaded first when present. See internal/config for the keys.
//
// Usage:
//
//	# Start with defaults on :5000
//	smartfaqd
//
//	# Use a config file and an API key from the environment
//	LLM_API_KEY=sk-... smartfaqd --config ./smartfaq.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/chunker"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/config"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/corpus"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/embeddings"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/extraction"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/generation"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/history"
	httpserver "github.com/theikram/Smart-FAQ-Bot-RAG/internal/http"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/logging"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/rag"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/telemetry"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/vectorindex"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (default $SMARTFAQ_CONFIG or ~/.config/smartfaq/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  smartfaqd [--config FILE]   Start the Smart FAQ server\n")
			fmt.Fprintf(os.Stderr, "  smartfaqd version           Show version information\n")
			os.Exit(1)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("smartfaqd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the service and serves until ctx is cancelled:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger that exports through it
//  3. Creates the embedding provider and vector index
//  4. Builds the generation gateway and the RAG service
//  5. Serves HTTP, then shuts down within the configured timeout
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.ConfigFrom(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logCfg.Output.OTEL = tel.LoggerProvider() != nil
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	// Telemetry shuts down after the final log lines are flushed.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()
	defer func() {
		_ = logger.Sync()
	}()

	if st := tel.Status(); st.State == telemetry.StateDegraded {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.String("error", st.Error))
	}

	logger.Info(ctx, "starting smartfaqd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("embeddings.provider", cfg.Embeddings.Provider),
		zap.String("index.backend", cfg.Index.Backend),
		zap.String("llm.model", cfg.LLM.Model),
		logging.Secret("llm.api_key", cfg.LLM.APIKey),
		zap.Bool("telemetry", tel.IsEnabled()))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close(ctx)

	svc, err := rag.NewService(rag.Deps{
		Chunker:   chunker.New(cfg.Chunker.MinLength),
		Embedder:  deps.embedder,
		Corpus:    deps.corpus,
		Generator: deps.gateway,
		Extractor: extraction.New(logger.Named("extraction").Underlying()),
		History:   history.New(cfg.History.Capacity),
		TopK:      cfg.Retrieval.TopK,
		Logger:    logger.Named("rag").Underlying(),
		Tracer:    tel.Tracer("github.com/theikram/Smart-FAQ-Bot-RAG/internal/rag"),
	})
	if err != nil {
		return fmt.Errorf("failed to create rag service: %w", err)
	}

	srv, err := httpserver.NewServer(svc, logger, &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		HistoryLimit:   cfg.History.DefaultLimit,
	}, httpserver.WithHealthCheck("telemetry", func() any { return tel.Status() }))
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// dependencies holds resources that need closing on shutdown.
type dependencies struct {
	provider embeddings.Provider
	embedder *embeddings.Instrumented
	index    vectorindex.Index
	corpus   *corpus.Corpus
	gateway  *generation.Gateway
	logger   *logging.Logger
}

// Close releases the embedding provider and the index.
func (d *dependencies) Close(ctx context.Context) {
	if d.provider != nil {
		if err := d.provider.Close(); err != nil {
			d.logger.Warn(ctx, "closing embedding provider", zap.Error(err))
		}
	}
	if d.index != nil {
		if err := vectorindex.CloseIndex(d.index); err != nil {
			d.logger.Warn(ctx, "closing vector index", zap.Error(err))
		}
	}
}

// initDependencies creates the embedding provider, the vector index with
// its corpus, and the generation gateway.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		BaseURL:   cfg.Embeddings.BaseURL,
		CacheDir:  cfg.Embeddings.CacheDir,
		APIKey:    cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	d := &dependencies{provider: provider, logger: logger}

	logger.Info(ctx, "embedding provider initialized",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", provider.Dimension()))

	d.embedder = embeddings.Instrument(provider, cfg.Embeddings.Model,
		embeddings.NewMetrics(logger.Underlying()))

	index, err := vectorindex.Open(ctx, vectorindex.Options{
		Backend:   cfg.Index.Backend,
		Dimension: provider.Dimension(),
		Qdrant: vectorindex.QdrantConfig{
			Host:       cfg.Index.Qdrant.Host,
			Port:       cfg.Index.Qdrant.Port,
			Collection: cfg.Index.Qdrant.Collection,
			UseTLS:     cfg.Index.Qdrant.UseTLS,
		},
	})
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	d.index = index
	if cfg.Index.Backend == vectorindex.BackendQdrant && !cfg.Index.Qdrant.UseTLS {
		logger.Warn(ctx, "qdrant gRPC using plaintext (TLS disabled)")
	}

	d.corpus, err = corpus.New(index)
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("failed to create corpus: %w", err)
	}

	d.gateway, err = generation.New(generation.Config{
		URL:     cfg.LLM.APIURL,
		APIKey:  cfg.LLM.APIKey.Value(),
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout.Duration(),
		Retry: generation.RetryPolicy{
			MaxRetries: cfg.LLM.MaxRetries,
			Backoff:    generation.ExponentialBackoff(cfg.LLM.BackoffUnit.Duration()),
		},
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, generation.WithLogger(logger.Named("generation").Underlying()))
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("failed to create generation gateway: %w", err)
	}

	logger.Info(ctx, "dependencies initialized",
		zap.String("index.backend", cfg.Index.Backend),
		zap.String("llm.url", cfg.LLM.APIURL),
		zap.Int("llm.max_retries", cfg.LLM.MaxRetries))
	return d, nil
}
