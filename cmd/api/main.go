// Command api serves the career-advice RAG API: query embedding, fused
// retrieval over Qdrant and Neo4j, and routed LLM generation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/openai/openai-go"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/fusion"
	"github.com/newdataengg/dev-career-compass/engine/graph"
	"github.com/newdataengg/dev-career-compass/engine/ingest"
	"github.com/newdataengg/dev-career-compass/engine/llm"
	"github.com/newdataengg/dev-career-compass/engine/rag"
	"github.com/newdataengg/dev-career-compass/engine/semantic"
	"github.com/newdataengg/dev-career-compass/pkg/embed"
	"github.com/newdataengg/dev-career-compass/pkg/metrics"
	"github.com/newdataengg/dev-career-compass/pkg/mid"
)

// Config holds all environment-based configuration. Empty store URLs
// select the in-memory implementations, which is the development default.
type Config struct {
	Port         string
	QdrantURL    string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	EmbedURL     string
	EmbedModel   string
	EmbedDim     int
	OpenAIKey    string
	AnthropicKey string
	CORSOrigin   string
	CacheSize    int
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		QdrantURL:    os.Getenv("QDRANT_URL"),
		Neo4jURL:     os.Getenv("NEO4J_URL"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		EmbedURL:     envOr("EMBED_URL", "http://localhost:11434"),
		EmbedModel:   envOr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDim:     envIntOr("EMBED_DIM", embed.DefaultDimension),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		CacheSize:    envIntOr("EMBED_CACHE_SIZE", 1024),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	// --- Vector index ---
	var index semantic.Index
	if cfg.QdrantURL != "" {
		qi, err := semantic.NewQdrantIndex(cfg.QdrantURL)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer qi.Close()
		index = qi
		logger.Info("using Qdrant index", "addr", cfg.QdrantURL)
	} else {
		index = semantic.NewMemoryIndex()
		logger.Info("using in-memory index")
	}

	// --- Knowledge graph ---
	var gs graph.Store
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j verify: %w", err)
		}
		gs = graph.NewNeo4jStore(driver)
		logger.Info("using Neo4j graph", "url", cfg.Neo4jURL)
	} else {
		gs = graph.NewMemoryStore()
		logger.Info("using in-memory graph")
	}

	if err := ingest.EnsureCollections(ctx, index, cfg.EmbedDim); err != nil {
		return err
	}

	// --- Embedding provider ---
	var provider embed.Provider
	if cfg.OpenAIKey != "" {
		client := openai.NewClient()
		provider = embed.NewOpenAIProvider(&client, cfg.EmbedDim)
		logger.Info("using OpenAI embeddings", "dim", cfg.EmbedDim)
	} else {
		provider = embed.NewHTTPProvider(cfg.EmbedURL, cfg.EmbedModel, cfg.EmbedDim)
		logger.Info("using HTTP embeddings", "url", cfg.EmbedURL, "model", cfg.EmbedModel)
	}
	cached, err := embed.NewCached(provider, cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("embed cache: %w", err)
	}

	// --- Retrieval fusion ---
	engine := fusion.New(index, gs, fusion.DefaultOptions(), reg, logger)

	// --- LLM provider chain ---
	var providers []llm.Provider
	if cfg.OpenAIKey != "" {
		client := openai.NewClient()
		providers = append(providers, llm.NewOpenAIProvider(&client, ""))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, llm.NewAnthropicProvider(cfg.AnthropicKey, "", 0))
	}
	router := llm.NewRouter(providers, llm.DefaultOptions(), reg, logger)
	logger.Info("llm chain configured", "providers", len(providers))

	// --- Orchestrator ---
	ragOpts := rag.DefaultOptions()
	if counter, err := rag.NewTiktokenCounter(); err != nil {
		logger.Warn("tiktoken unavailable, using heuristic token counter", "err", err)
	} else {
		ragOpts.TokenCounter = counter
	}
	orchestrator := rag.New(cached, engine, router, ragOpts, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(gs, cached))
	mux.HandleFunc("POST /api/answer", handleAnswer(orchestrator, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("compass-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(gs graph.Store, cached *embed.Cached) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := gs.Stats(r.Context())
		status := "ok"
		if err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":           status,
			"graph_nodes":      stats.Nodes,
			"graph_edges":      stats.Edges,
			"embed_cache_size": cached.Len(),
		})
	}
}

// AnswerRequest is the JSON body for POST /api/answer.
type AnswerRequest struct {
	Query string `json:"query"`
	Style string `json:"style,omitempty"` // chat, skill_analyzer, career_advisor
}

// AnswerResponse is the JSON response for POST /api/answer.
type AnswerResponse struct {
	Answer     string                `json:"answer"`
	Confidence float64               `json:"confidence"`
	Provider   string                `json:"provider"`
	Context    *fusion.ContextBundle `json:"context"`
}

func handleAnswer(orchestrator *rag.Orchestrator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		style := rag.PromptStyle(req.Style)
		if req.Style == "" {
			style = rag.StyleChat
		}
		resp, err := orchestrator.AnswerStyled(r.Context(), req.Query, style)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnswerResponse{
			Answer:     resp.Text,
			Confidence: resp.Confidence,
			Provider:   resp.Provider,
			Context:    resp.Context,
		})
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrQueryTooLong),
		errors.Is(err, domain.ErrQueryInjection):
		http.Error(w, `{"error":"invalid query"}`, http.StatusBadRequest)
	case errors.Is(err, domain.ErrEmbeddingFailed),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		logger.Error("embedding failed", "err", err)
		http.Error(w, `{"error":"embedding service unavailable"}`, http.StatusServiceUnavailable)
	default:
		logger.Error("answer failed", "err", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}
}
