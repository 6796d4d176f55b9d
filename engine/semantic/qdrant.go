package semantic

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/newdataengg/dev-career-compass/engine/domain"
)

// QdrantIndex implements Index on top of a Qdrant cluster over gRPC.
// Collection dimensions are tracked locally so Upsert can reject
// mismatched vectors before they reach the wire.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient

	mu   sync.RWMutex
	dims map[domain.Collection]int
}

// NewQdrantIndex connects to Qdrant at the given gRPC address.
func NewQdrantIndex(addr string) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		dims:        make(map[domain.Collection]int),
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// CreateCollection creates the wire collection if it doesn't exist and
// records its dimension.
func (q *QdrantIndex) CreateCollection(ctx context.Context, c domain.Collection, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("semantic: collection %q: %w: dim %d", c, domain.ErrInvalidDimension, dim)
	}

	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	exists := false
	for _, col := range list.GetCollections() {
		if col.GetName() == c.WireName() {
			exists = true
			break
		}
	}

	if !exists {
		_, err = q.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: c.WireName(),
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(dim),
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("semantic: create collection %s: %w", c.WireName(), err)
		}
	}

	q.mu.Lock()
	q.dims[c] = dim
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) dim(c domain.Collection) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	d, ok := q.dims[c]
	if !ok {
		return 0, fmt.Errorf("semantic: %w: %q", domain.ErrUnknownCollection, c)
	}
	return d, nil
}

// Upsert stores a single record. See UpsertBatch for the ingest path.
func (q *QdrantIndex) Upsert(ctx context.Context, c domain.Collection, rec VectorRecord) error {
	return q.UpsertBatch(ctx, c, []VectorRecord{rec})
}

// UpsertBatch stores records into Qdrant. Called by engine/ingest.
func (q *QdrantIndex) UpsertBatch(ctx context.Context, c domain.Collection, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := q.dim(c)
	if err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("semantic: collection %q expects dim %d, got %d: %w",
				c, dim, len(r.Vector), domain.ErrInvalidDimension)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: toQdrantPayload(r.Payload),
		}
	}

	wait := true
	_, err = q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.WireName(),
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points into %s: %w", len(records), c.WireName(), err)
	}
	return nil
}

// Search performs k-NN similarity search with optional payload filters.
func (q *QdrantIndex) Search(ctx context.Context, c domain.Collection, vector []float32, k int, filter map[string]string) ([]SearchResult, error) {
	dim, err := q.dim(c)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("semantic: query dim %d for collection %q (dim %d): %w",
			len(vector), c, dim, domain.ErrInvalidDimension)
	}
	if k <= 0 {
		return nil, nil
	}

	req := &pb.SearchPoints{
		CollectionName: c.WireName(),
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, fieldMatch(key, val))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", c.WireName(), err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := make(map[string]any, len(r.GetPayload()))
		for key, val := range r.GetPayload() {
			payload[key] = fromQdrantValue(val)
		}
		score := r.GetScore()
		if score < 0 {
			score = 0
		}
		results[i] = SearchResult{
			ID:      r.GetId().GetUuid(),
			Score:   score,
			Payload: payload,
		}
	}
	return results, nil
}

// DeleteCollection drops and recreates the wire collection so it ends up
// configured but empty. Idempotent: unknown collections are a no-op.
func (q *QdrantIndex) DeleteCollection(ctx context.Context, c domain.Collection) error {
	q.mu.RLock()
	dim, ok := q.dims[c]
	q.mu.RUnlock()
	if !ok {
		return nil
	}
	if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: c.WireName()}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", c.WireName(), err)
	}
	return q.CreateCollection(ctx, c, dim)
}

func toQdrantPayload(payload map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, val := range payload {
		switch tv := val.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			out[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return out
}

func fromQdrantValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
