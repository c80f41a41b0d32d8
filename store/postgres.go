package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

const collectionsTable = "ragsync_collections"

// PostgresGateway implements Gateway on PostgreSQL with the pgvector
// extension. Each collection is one table; a registry table tracks which
// tables belong to this gateway.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

func NewPostgresGateway(ctx context.Context, dsn string) (*PostgresGateway, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	g := &PostgresGateway{pool: pool}
	if err := g.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return g, nil
}

func (g *PostgresGateway) init(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := g.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name      text PRIMARY KEY,
			dimension int NOT NULL
		)`, collectionsTable))
	if err != nil {
		return fmt.Errorf("failed to create collections table: %w", err)
	}
	return nil
}

func tableIdent(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

func (g *PostgresGateway) EnsureCollection(ctx context.Context, name string, vectorDimension int) error {
	_, err := g.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        uuid PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload   jsonb NOT NULL DEFAULT '{}'::jsonb
		)`, tableIdent(name), vectorDimension))
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	_, err = g.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (name, dimension) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`, collectionsTable),
		name, vectorDimension)
	if err != nil {
		return fmt.Errorf("failed to register collection %s: %w", name, err)
	}
	return nil
}

func (g *PostgresGateway) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
		tableIdent(collection))

	for _, p := range points {
		payload := p.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		if _, err := g.pool.Exec(ctx, query, p.ID, pgvector.NewVector(p.Vector), payload); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}
	return nil
}

func (g *PostgresGateway) DeleteByFilter(ctx context.Context, collection, field, value string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE payload->>$1 = $2", tableIdent(collection))
	if _, err := g.pool.Exec(ctx, query, field, value); err != nil {
		return fmt.Errorf("failed to delete by %s=%s: %w", field, value, err)
	}
	return nil
}

func (g *PostgresGateway) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id::text = ANY($1)", tableIdent(collection))
	if _, err := g.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func (g *PostgresGateway) Count(ctx context.Context, collection string) (uint64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", tableIdent(collection))
	if err := g.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return uint64(count), nil
}

func (g *PostgresGateway) RetrieveByID(ctx context.Context, collection string, ids []string) ([]Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT id::text, payload FROM %s WHERE id::text = ANY($1)", tableIdent(collection))
	rows, err := g.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (g *PostgresGateway) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := g.pool.Query(ctx, fmt.Sprintf("SELECT name FROM %s ORDER BY name", collectionsTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (g *PostgresGateway) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}

	// Cosine distance; score mirrors Qdrant's cosine similarity.
	query := fmt.Sprintf(`
		SELECT id::text, payload, 1 - (embedding <=> $1) AS score
		FROM %s ORDER BY embedding <=> $1 LIMIT $2`,
		tableIdent(collection))

	rows, err := g.pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	defer rows.Close()

	var results []ScoredPoint
	for rows.Next() {
		var sp ScoredPoint
		var score float64
		if err := rows.Scan(&sp.Point.ID, &sp.Point.Payload, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		sp.Score = float32(score)
		results = append(results, sp)
	}
	return results, rows.Err()
}

func (g *PostgresGateway) DeleteCollection(ctx context.Context, name string) error {
	if _, err := g.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tableIdent(name))); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	if _, err := g.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE name = $1", collectionsTable), name); err != nil {
		return fmt.Errorf("failed to unregister collection %s: %w", name, err)
	}
	return nil
}

func (g *PostgresGateway) Close() error {
	g.pool.Close()
	return nil
}
