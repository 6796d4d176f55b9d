// Command ingest consumes entity records from NATS and runs them through
// the ingestion pipeline into Qdrant and Neo4j.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/openai/openai-go"

	"github.com/newdataengg/dev-career-compass/engine/graph"
	"github.com/newdataengg/dev-career-compass/engine/ingest"
	"github.com/newdataengg/dev-career-compass/engine/semantic"
	"github.com/newdataengg/dev-career-compass/pkg/embed"
	"github.com/newdataengg/dev-career-compass/pkg/metrics"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if err := run(logger); err != nil {
		logger.Error("ingest worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsURL := envOr("NATS_URL", nats.DefaultURL)
	qdrantURL := os.Getenv("QDRANT_URL")
	neo4jURL := os.Getenv("NEO4J_URL")
	metricsPort := envOr("METRICS_PORT", "9091")

	// --- NATS, with retry: the broker may still be starting ---
	var nc *nats.Conn
	connect := func() error {
		var err error
		nc, err = nats.Connect(natsURL, nats.Name("compass-ingest"))
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()
	logger.Info("connected to NATS", "url", natsURL)

	// --- Vector index ---
	var index semantic.Index
	if qdrantURL != "" {
		qi, err := semantic.NewQdrantIndex(qdrantURL)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer qi.Close()
		index = qi
	} else {
		index = semantic.NewMemoryIndex()
		logger.Warn("QDRANT_URL unset, ingesting into in-memory index")
	}

	// --- Knowledge graph ---
	var gs graph.Store
	if neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(neo4jURL,
			neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j verify: %w", err)
		}
		gs = graph.NewNeo4jStore(driver)
	} else {
		gs = graph.NewMemoryStore()
		logger.Warn("NEO4J_URL unset, ingesting into in-memory graph")
	}

	// --- Embedding provider ---
	var provider embed.Provider
	if os.Getenv("OPENAI_API_KEY") != "" {
		client := openai.NewClient()
		provider = embed.NewOpenAIProvider(&client, embed.DefaultDimension)
	} else {
		provider = embed.NewHTTPProvider(
			envOr("EMBED_URL", "http://localhost:11434"),
			envOr("EMBED_MODEL", "nomic-embed-text"),
			embed.DefaultDimension,
		)
	}
	cached, err := embed.NewCached(provider, 4096)
	if err != nil {
		return fmt.Errorf("embed cache: %w", err)
	}

	if err := ingest.EnsureCollections(ctx, index, cached.Dimension()); err != nil {
		return err
	}

	reg := metrics.New()

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Embedder: cached,
		Index:    index,
		Graph:    gs,
		Logger:   logger,
		Metrics:  reg,
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()
	logger.Info("consuming", "subject", ingest.IngestSubject)

	// --- Metrics endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		if err := http.ListenAndServe(":"+metricsPort, mux); err != nil {
			logger.Warn("metrics server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
