package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

// schema keeps the two field groups in separate JSONB columns so a merge is
// a single-column upsert and concurrent report/analysis writers do not
// interleave.
const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	cycle_id  text PRIMARY KEY,
	report_ts text NOT NULL DEFAULT '',
	agv       jsonb,
	llm       jsonb
)`

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure cycles schema: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) MergeReport(ctx context.Context, report *v1.CycleReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode cycle report: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cycles (cycle_id, report_ts, agv) VALUES ($1, $2, $3)
		ON CONFLICT (cycle_id) DO UPDATE SET report_ts = EXCLUDED.report_ts, agv = EXCLUDED.agv`,
		report.CycleID, report.Timestamp, data)
	if err != nil {
		return fmt.Errorf("failed to merge cycle report %q: %w", report.CycleID, err)
	}
	return nil
}

func (s *postgresStore) MergeAnalysis(ctx context.Context, cycleID string, analysis *v1.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cycles (cycle_id, llm) VALUES ($1, $2)
		ON CONFLICT (cycle_id) DO UPDATE SET llm = EXCLUDED.llm`,
		cycleID, data)
	if err != nil {
		return fmt.Errorf("failed to merge analysis for cycle %q: %w", cycleID, err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, cycleID string) (*v1.CycleDocument, error) {
	var agvData, llmData []byte
	err := s.pool.QueryRow(ctx,
		`SELECT agv, llm FROM cycles WHERE cycle_id = $1`, cycleID).Scan(&agvData, &llmData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load cycle %q: %w", cycleID, err)
	}

	doc := &v1.CycleDocument{}
	if len(agvData) > 0 {
		doc.AGV = &v1.CycleReport{}
		if err := json.Unmarshal(agvData, doc.AGV); err != nil {
			return nil, fmt.Errorf("corrupt report for cycle %q: %w", cycleID, err)
		}
	}
	if len(llmData) > 0 {
		doc.LLM = &v1.Analysis{}
		if err := json.Unmarshal(llmData, doc.LLM); err != nil {
			return nil, fmt.Errorf("corrupt analysis for cycle %q: %w", cycleID, err)
		}
	}
	return doc, nil
}

func (s *postgresStore) LatestCycleID(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT cycle_id FROM cycles WHERE agv IS NOT NULL
		ORDER BY report_ts DESC, cycle_id DESC LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve latest cycle: %w", err)
	}
	return id, nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
