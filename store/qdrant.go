package store

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantGateway implements Gateway against a Qdrant server over gRPC.
type QdrantGateway struct {
	client *qdrant.Client
}

// NewQdrantGateway connects to Qdrant. endpoint is the host name, port the
// gRPC port (6334 for a default local install).
func NewQdrantGateway(endpoint string, port int, useTLS bool, apiKey string) (*QdrantGateway, error) {
	if endpoint == "" {
		endpoint = "localhost"
	}
	if port <= 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   endpoint,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantGateway{client: client}, nil
}

func (g *QdrantGateway) EnsureCollection(ctx context.Context, name string, vectorDimension int) error {
	exists, err := g.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = g.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorDimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (g *QdrantGateway) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qp := &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
		}
		if len(p.Payload) > 0 {
			qp.Payload = qdrant.NewValueMap(p.Payload)
		}
		qdrantPoints = append(qdrantPoints, qp)
	}

	_, err := g.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (g *QdrantGateway) DeleteByFilter(ctx context.Context, collection, field, value string) error {
	_, err := g.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(field, value),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete by %s=%s: %w", field, value, err)
	}
	return nil
}

func (g *QdrantGateway) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(id))
	}

	_, err := g.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func (g *QdrantGateway) Count(ctx context.Context, collection string) (uint64, error) {
	count, err := g.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

func (g *QdrantGateway) RetrieveByID(ctx context.Context, collection string, ids []string) ([]Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(id))
	}

	retrieved, err := g.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            qdrantIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve points: %w", err)
	}

	points := make([]Point, 0, len(retrieved))
	for _, rp := range retrieved {
		p := Point{}
		if rp.Id != nil {
			p.ID = rp.Id.GetUuid()
		}
		if rp.Payload != nil {
			p.Payload = convertPayloadToMap(rp.Payload)
		}
		points = append(points, p)
	}
	return points, nil
}

func (g *QdrantGateway) ListCollections(ctx context.Context) ([]string, error) {
	names, err := g.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

func (g *QdrantGateway) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}

	qLimit := uint64(limit)
	scored, err := g.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &qLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]ScoredPoint, 0, len(scored))
	for _, sp := range scored {
		p := Point{}
		if sp.Id != nil {
			p.ID = sp.Id.GetUuid()
		}
		if sp.Payload != nil {
			p.Payload = convertPayloadToMap(sp.Payload)
		}
		results = append(results, ScoredPoint{Point: p, Score: sp.Score})
	}
	return results, nil
}

func (g *QdrantGateway) DeleteCollection(ctx context.Context, name string) error {
	if err := g.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

func (g *QdrantGateway) Close() error {
	return g.client.Close()
}

func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
