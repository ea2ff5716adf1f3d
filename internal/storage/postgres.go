package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"classlens/internal/config"
	"classlens/internal/embeddings"
	"classlens/internal/models"
)

// PostgresStore persists runs, frame records, and verdicts. The run
// summary narrative is stored with a feature-hashed embedding so past runs
// can be searched by similarity.
type PostgresStore struct {
	pool      *pgxpool.Pool
	embedder  *embeddings.Service
	runID     string
	videoName string
}

// OpenPostgres connects to Postgres without binding the store to a run;
// enough for schema management and cross-run queries.
func OpenPostgres(ctx context.Context, cfg config.Postgres) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{
		pool:     pool,
		embedder: embeddings.NewService(2),
	}, nil
}

// NewPostgresStore connects to Postgres and registers a run row for this
// pipeline invocation.
func NewPostgresStore(ctx context.Context, cfg config.Postgres, runID, videoName string) (*PostgresStore, error) {
	s, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.runID = runID
	s.videoName = videoName

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, video_name, created_at) VALUES ($1, $2, $3)`,
		runID, videoName, time.Now()); err != nil {
		s.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return s, nil
}

// Close releases the connection pool and the embedding workers.
func (s *PostgresStore) Close() {
	if s.embedder != nil {
		s.embedder.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveFrameRecord upserts the record for its frame id, so a reflection
// replacement supersedes the original row.
func (s *PostgresStore) SaveFrameRecord(ctx context.Context, rec models.FrameRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO frame_records (run_id, frame_id, timestamp, label, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id, frame_id)
		 DO UPDATE SET label = EXCLUDED.label, confidence = EXCLUDED.confidence, created_at = EXCLUDED.created_at`,
		s.runID, rec.FrameID, rec.Timestamp, string(rec.Label), rec.Confidence, time.Now())
	if err != nil {
		return fmt.Errorf("store frame record %d: %w", rec.FrameID, err)
	}
	return nil
}

// LoadFrameRecords returns the records stored for this run.
func (s *PostgresStore) LoadFrameRecords(ctx context.Context) ([]models.FrameRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT frame_id, timestamp, label, confidence
		 FROM frame_records WHERE run_id = $1 ORDER BY frame_id`,
		s.runID)
	if err != nil {
		return nil, fmt.Errorf("load frame records: %w", err)
	}
	defer rows.Close()

	var records []models.FrameRecord
	for rows.Next() {
		var rec models.FrameRecord
		var label string
		if err := rows.Scan(&rec.FrameID, &rec.Timestamp, &label, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan frame record: %w", err)
		}
		rec.Label = models.Label(label)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveReport stores the verdict on the run row together with an embedding
// of the summary narrative.
func (s *PostgresStore) SaveReport(ctx context.Context, rep models.Report) error {
	embedding := <-s.embedder.GetEmbedding(rep.Summary)
	if embedding.Error != nil {
		// The verdict row matters more than its embedding.
		embedding.Embedding = make([]float32, embeddings.Dim)
	}

	v := rep.Verdict
	_, err := s.pool.Exec(ctx,
		`UPDATE runs
		 SET decision = $2, yes_count = $3, no_count = $4, total_count = $5,
		     sampled_count = $6, summary = $7, summary_embedding = $8, finished_at = $9
		 WHERE id = $1`,
		s.runID, string(v.Decision), v.YesCount, v.NoCount, v.TotalCount,
		v.SampledCount, rep.Summary, pgvector.NewVector(embedding.Embedding), rep.GeneratedAt)
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

// RunSearchResult is a past run matched by summary similarity.
type RunSearchResult struct {
	RunID      string
	VideoName  string
	Decision   string
	Summary    string
	Similarity float64
}

// SearchSimilarRuns finds past runs whose summaries resemble the query text.
func (s *PostgresStore) SearchSimilarRuns(ctx context.Context, query string, limit int) ([]RunSearchResult, error) {
	q := <-s.embedder.GetEmbedding(query)
	if q.Error != nil {
		return nil, fmt.Errorf("embed query: %w", q.Error)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, video_name, decision, summary,
		        1 - (summary_embedding <=> $1) AS similarity
		 FROM runs
		 WHERE summary_embedding IS NOT NULL
		 ORDER BY summary_embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(q.Embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search runs: %w", err)
	}
	defer rows.Close()

	var results []RunSearchResult
	for rows.Next() {
		var r RunSearchResult
		if err := rows.Scan(&r.RunID, &r.VideoName, &r.Decision, &r.Summary, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InitSchema creates the tables and the pgvector extension if needed.
func InitSchema(ctx context.Context, cfg config.Postgres) error {
	conn, err := pgx.Connect(ctx, connString(cfg))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            video_name VARCHAR(255) NOT NULL,
            decision VARCHAR(3),
            yes_count INTEGER,
            no_count INTEGER,
            total_count INTEGER,
            sampled_count INTEGER,
            summary TEXT,
            summary_embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ
        );

        CREATE TABLE IF NOT EXISTS frame_records (
            id SERIAL PRIMARY KEY,
            run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
            frame_id INTEGER NOT NULL,
            timestamp DOUBLE PRECISION NOT NULL,
            label VARCHAR(3) NOT NULL,
            confidence INTEGER NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(run_id, frame_id)
        );

        CREATE INDEX IF NOT EXISTS idx_frame_records_run_id ON frame_records(run_id);
    `, embeddings.Dim))
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func connString(cfg config.Postgres) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}
