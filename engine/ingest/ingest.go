package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/newdataengg/dev-career-compass/engine/domain"
	"github.com/newdataengg/dev-career-compass/engine/graph"
	"github.com/newdataengg/dev-career-compass/engine/semantic"
	"github.com/newdataengg/dev-career-compass/pkg/embed"
	"github.com/newdataengg/dev-career-compass/pkg/fn"
	"github.com/newdataengg/dev-career-compass/pkg/metrics"
)

const (
	// IngestSubject is the NATS subject for incoming entity records.
	IngestSubject = "compass.ingest"
	// DLQSubject is the dead letter queue subject for failed records.
	DLQSubject = "compass.ingest.dlq"
	// MaxRetries before a record is sent to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Deps holds the external dependencies for the ingestion pipeline.
// Metrics may be nil to disable counting.
type Deps struct {
	Embedder embed.Provider
	Index    semantic.Index
	Graph    graph.Store
	Logger   *slog.Logger
	Metrics  *metrics.Registry
}

// Validate checks an EntityRecord before any work is spent on it.
var Validate fn.Stage[EntityRecord, EntityRecord] = func(_ context.Context, rec EntityRecord) fn.Result[EntityRecord] {
	if err := domain.ValidateNodeID(rec.ID); err != nil {
		return fn.Err[EntityRecord](err)
	}
	if rec.Kind != KindJob {
		if err := domain.ValidateNodeKind(rec.Kind); err != nil {
			return fn.Err[EntityRecord](err)
		}
	}
	if rec.Name == "" {
		return fn.Errf[EntityRecord]("ingest: record %q has no name", rec.ID)
	}
	for _, r := range rec.Relations {
		if err := domain.ValidateEdge(rec.ID, r.TargetID, r.Weight); err != nil {
			return fn.Err[EntityRecord](err)
		}
	}
	return fn.Ok(rec)
}

// Transform resolves the target collection and composes the embed text.
var Transform fn.Stage[EntityRecord, Doc] = func(_ context.Context, rec EntityRecord) fn.Result[Doc] {
	collection, err := collectionFor(rec.Kind)
	if err != nil {
		return fn.Err[Doc](err)
	}
	return fn.Ok(Doc{Record: rec, Collection: collection, Text: embedText(rec)})
}

// NewEmbed creates the embedding stage over the given provider.
func NewEmbed(provider embed.Provider) fn.Stage[Doc, EmbeddedDoc] {
	return func(ctx context.Context, doc Doc) fn.Result[EmbeddedDoc] {
		vector, err := provider.Embed(ctx, doc.Text)
		if err != nil {
			return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed %q: %w", doc.Record.ID, err))
		}
		return fn.Ok(EmbeddedDoc{Doc: doc, Vector: vector})
	}
}

// NewStore creates the storage stage. It writes the graph node first, then
// the vector record, so a search hit never points at a missing node. Nodes
// that already exist are left in place; edges whose target has not been
// ingested yet are logged and skipped rather than failing the record.
func NewStore(index semantic.Index, gs graph.Store, logger *slog.Logger) fn.Stage[EmbeddedDoc, string] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		rec := doc.Record

		if node := graphNode(rec); node != nil {
			if err := gs.AddNode(ctx, *node); err != nil && !errors.Is(err, domain.ErrDuplicateNode) {
				return fn.Err[string](fmt.Errorf("ingest: graph node %q: %w", rec.ID, err))
			}
			for _, e := range graphEdges(rec) {
				if err := gs.AddEdge(ctx, e); err != nil {
					if errors.Is(err, domain.ErrDanglingReference) {
						logger.Warn("ingest: edge target not ingested yet, skipping",
							"source", e.Source, "target", e.Target, "relation", e.Relation)
						continue
					}
					return fn.Err[string](fmt.Errorf("ingest: graph edge %q->%q: %w", e.Source, e.Target, err))
				}
			}
		}

		pointID := uuid.NewSHA1(uuid.NameSpaceURL,
			[]byte(doc.Collection.WireName()+"/"+rec.ID)).String()
		err := index.Upsert(ctx, doc.Collection, semantic.VectorRecord{
			ID:      pointID,
			Vector:  doc.Vector,
			Payload: vectorPayload(rec),
		})
		if err != nil {
			return fn.Err[string](fmt.Errorf("ingest: vector upsert %q: %w", rec.ID, err))
		}

		return fn.Ok(rec.ID)
	}
}

// LoggedTap returns a pass-through stage that logs entry and exit with the
// stage duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline wires the full ingestion pipeline: Validate, Transform,
// Embed, Store, each traced and logged.
func NewPipeline(deps Deps) fn.Stage[EntityRecord, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[EntityRecord]("validate", log), fn.Traced("ingest.validate", Validate))
	transformed := fn.Then(validated, fn.Traced("ingest.transform", Transform))
	embedded := fn.Then(transformed, fn.Traced("ingest.embed", NewEmbed(deps.Embedder)))
	return fn.Then(embedded, fn.Traced("ingest.store", NewStore(deps.Index, deps.Graph, log)))
}

// EnsureCollections creates every collection at the embedder's dimension.
// Safe to call on every startup.
func EnsureCollections(ctx context.Context, index semantic.Index, dim int) error {
	for _, c := range domain.AllCollections {
		if err := index.CreateCollection(ctx, c, dim); err != nil {
			return fmt.Errorf("ingest: ensure collection %s: %w", c, err)
		}
	}
	return nil
}

// dlqMessage is published to the DLQ after MaxRetries failures.
type dlqMessage struct {
	Record  EntityRecord `json:"record"`
	Error   string       `json:"error"`
	Retries int          `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs each record through
// the pipeline, re-publishing failures with an incremented retry header
// until they land on the DLQ.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	var stored, failed, deadLettered *metrics.Counter
	var pipelineDur *metrics.Histogram
	if deps.Metrics != nil {
		stored = deps.Metrics.Counter("ingest_records_stored_total", "Records stored successfully")
		failed = deps.Metrics.Counter("ingest_records_failed_total", "Pipeline failures, including retried attempts")
		deadLettered = deps.Metrics.Counter("ingest_records_dlq_total", "Records sent to the dead letter queue")
		pipelineDur = deps.Metrics.Histogram("ingest_pipeline_seconds", "Per-record pipeline time", nil)
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var rec EntityRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		start := time.Now()
		result := pipeline(ctx, rec)
		if pipelineDur != nil {
			pipelineDur.Since(start)
		}
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			if failed != nil {
				failed.Inc()
			}
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"id", rec.ID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				if deadLettered != nil {
					deadLettered.Inc()
				}
				dlq := dlqMessage{Record: rec, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}

			retryMsg := nats.NewMsg(IngestSubject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
			return
		}

		if stored != nil {
			stored.Inc()
		}
		id, _ := result.Unwrap()
		log.Info("ingest: stored", "id", id)
	})
}
