package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealgraph/internal/config"
	"dealgraph/internal/embedding"
	"dealgraph/internal/ingest"
	"dealgraph/internal/logging"
	"dealgraph/internal/perception"
	"dealgraph/internal/pipeline"
	"dealgraph/internal/prompt"
	"dealgraph/internal/retrieval"
	"dealgraph/internal/server"
	"dealgraph/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	addr       string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dealgraph",
	Short: "dealgraph - multi-stage RFP qualification service",
	Long: `dealgraph qualifies inbound proposal documents ("deals") by running them
through a sequence of scoring stages (risk flags, strategic fit, customer
readiness, strategic upside, competitive edge) over retrieval-augmented
context, then answers follow-up questions against the accumulated results.

Run "dealgraph serve" to start the HTTP service.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments set env vars directly.
		_ = godotenv.Load()

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// serveCmd starts the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP qualification service",
	Long: `Starts the dealgraph HTTP server:
  POST /upload-pdf      ingest a PDF and run the full evaluation
  POST /ask-deal-agent  answer a question against the cached evaluation
  GET  /healthz         liveness probe`,
	RunE: runServe,
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dealgraph version",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dealgraph.yaml", "Path to config file")
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Logging.Enabled {
		if err := logging.Initialize(logging.Options{
			Enabled: true,
			Dir:     cfg.Logging.Dir,
			Level:   cfg.Logging.Level,
		}); err != nil {
			logger.Warn("category logging disabled", zap.Error(err))
		}
	}
	logging.Boot("dealgraph %s starting", cfg.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage and embeddings.
	chunks, err := store.NewChunkStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer chunks.Close()

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding engine: %w", err)
	}
	logger.Info("embedding engine ready", zap.String("engine", engine.Name()))

	// Ingestion and retrieval.
	splitter := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestor := ingest.NewIngestor(engine, chunks, splitter, cfg.Ingest.EmbedWorkers)
	retriever := retrieval.NewRetriever(engine, chunks, cfg.Store.TopK)

	// Completion provider.
	completer, err := perception.NewClient(perception.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	// Prompt templates, optionally hot-reloaded from an override directory.
	registry := prompt.NewRegistry()
	if cfg.Prompts.OverrideDir != "" {
		if cfg.Prompts.Watch {
			watcher, err := prompt.NewWatcher(cfg.Prompts.OverrideDir, registry)
			if err != nil {
				return fmt.Errorf("failed to create prompt watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("failed to start prompt watcher: %w", err)
			}
			defer watcher.Stop()
		} else if err := registry.LoadOverrides(cfg.Prompts.OverrideDir); err != nil {
			return fmt.Errorf("failed to load prompt overrides: %w", err)
		}
	}

	// Pipeline and HTTP surface.
	orch := pipeline.NewOrchestrator(retriever, completer, registry)
	cache := pipeline.NewMemoryCache()
	synthesizer := pipeline.NewSynthesizer(completer, registry)
	service := pipeline.NewService(orch, cache, synthesizer)

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadTimeout:    cfg.GetReadTimeout(),
		WriteTimeout:   cfg.GetWriteTimeout(),
	}, ingestor, service, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("dealgraph serving",
		zap.String("addr", cfg.Server.Addr),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("embedding", cfg.Embedding.Provider),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
