package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryGateway is an in-process Gateway. It backs the "memory" store backend
// and the test suites; nothing survives process exit.
type MemoryGateway struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point // collection -> id -> point
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		collections: make(map[string]map[string]Point),
	}
}

func (g *MemoryGateway) EnsureCollection(ctx context.Context, name string, vectorDimension int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.collections[name]; !ok {
		g.collections[name] = make(map[string]Point)
	}
	return nil
}

func (g *MemoryGateway) Upsert(ctx context.Context, collection string, points []Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	col, ok := g.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	for _, p := range points {
		col[p.ID] = p
	}
	return nil
}

func (g *MemoryGateway) DeleteByFilter(ctx context.Context, collection, field, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	col, ok := g.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	for id, p := range col {
		if v, ok := p.Payload[field]; ok {
			if s, ok := v.(string); ok && s == value {
				delete(col, id)
			}
		}
	}
	return nil
}

func (g *MemoryGateway) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	col, ok := g.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	for _, id := range ids {
		delete(col, id)
	}
	return nil
}

func (g *MemoryGateway) Count(ctx context.Context, collection string) (uint64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	col, ok := g.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	return uint64(len(col)), nil
}

func (g *MemoryGateway) RetrieveByID(ctx context.Context, collection string, ids []string) ([]Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	col, ok := g.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	points := make([]Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := col[id]; ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func (g *MemoryGateway) ListCollections(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.collections))
	for name := range g.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *MemoryGateway) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	col, ok := g.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	results := make([]ScoredPoint, 0, len(col))
	for _, p := range col {
		results = append(results, ScoredPoint{
			Point: p,
			Score: cosineSimilarity(vector, p.Vector),
		})
	}

	// Sort by score descending
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (g *MemoryGateway) DeleteCollection(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.collections, name)
	return nil
}

func (g *MemoryGateway) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
