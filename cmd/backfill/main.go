// Command backfill publishes entity records from JSON files onto the
// ingest subject so the worker can (re)build the vector index and graph.
// Each file holds a JSON array of records.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/newdataengg/dev-career-compass/engine/ingest"
	"github.com/newdataengg/dev-career-compass/pkg/natsutil"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <entities.json> [...]\n", os.Args[0])
		os.Exit(2)
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	nc, err := nats.Connect(natsURL, nats.Name("compass-backfill"))
	if err != nil {
		logger.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	ctx := context.Background()
	total := 0
	for _, path := range os.Args[1:] {
		n, err := publishFile(ctx, nc, path)
		if err != nil {
			logger.Error("backfill file failed", "file", path, "err", err)
			os.Exit(1)
		}
		logger.Info("backfill file published", "file", path, "records", n)
		total += n
	}

	// Give the client a moment to flush before draining.
	if err := nc.FlushTimeout(5 * time.Second); err != nil {
		logger.Warn("flush", "err", err)
	}
	logger.Info("backfill complete", "records", total)
}

func publishFile(ctx context.Context, nc *nats.Conn, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var records []ingest.EntityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, rec := range records {
		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, rec); err != nil {
			return i, fmt.Errorf("publish record %q: %w", rec.ID, err)
		}
	}
	return len(records), nil
}
