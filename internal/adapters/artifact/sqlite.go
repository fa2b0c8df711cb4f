package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/scoring"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
)

// DefaultScorer is the scorer row read by LoadSQLite.
const DefaultScorer = "default"

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	key    TEXT PRIMARY KEY,
	dim    INTEGER NOT NULL,
	vector TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scorer (
	name    TEXT PRIMARY KEY,
	dim     INTEGER NOT NULL,
	weights TEXT NOT NULL,
	bias    REAL NOT NULL DEFAULT 0
);`

// Head is a trained linear scoring head.
type Head struct {
	Weights []float64
	Bias    float64
}

// LoadSQLite reads an artifact file. Vectors are JSON arrays keyed by
// candidate:ID, item:ID or feature:name; rows that do not decode are
// skipped and counted as dropped. The scorer row is optional.
func LoadSQLite(ctx context.Context, path string, log logger.Logger) (*Table, error) {
	if log == nil {
		log = logger.Nop()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactNotLoaded, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrArtifactNotLoaded, path, err)
	}
	defer db.Close()

	vectors, bad, err := readEmbeddings(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactNotLoaded, err)
	}
	if bad > 0 {
		log.Warn(ctx, "skipped undecodable artifact rows", logger.Int("rows", bad))
	}

	head, err := readHead(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactNotLoaded, err)
	}

	scorer := scoring.NewLinearScorer()
	dim := 0
	if head != nil {
		scorer = scoring.NewLinearScorer(scoring.WithLinearHead(head.Weights, head.Bias))
		dim = scorer.Dim()
	}

	t, err := New(dim, vectors, scorer)
	if err != nil {
		return nil, err
	}
	t.dropped += bad
	log.Info(ctx, "artifact loaded",
		logger.String("path", path),
		logger.Int("vectors", t.Len()),
		logger.Int("dim", t.Dim()),
		logger.Int("dropped", t.Dropped()),
		logger.Bool("trained_head", scorer.HasHead()))
	return t, nil
}

func readEmbeddings(ctx context.Context, db *sql.DB) (map[string]model.Embedding, int, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, dim, vector FROM embeddings`)
	if err != nil {
		return nil, 0, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	vectors := make(map[string]model.Embedding)
	bad := 0
	for rows.Next() {
		var (
			key string
			dim int
			raw string
		)
		if err := rows.Scan(&key, &dim, &raw); err != nil {
			return nil, 0, fmt.Errorf("scan embedding: %w", err)
		}
		var v model.Embedding
		if err := json.Unmarshal([]byte(raw), &v); err != nil || len(v) != dim {
			bad++
			continue
		}
		vectors[key] = v
	}
	return vectors, bad, rows.Err()
}

func readHead(ctx context.Context, db *sql.DB) (*Head, error) {
	var (
		dim  int
		raw  string
		bias float64
	)
	err := db.QueryRowContext(ctx, `SELECT dim, weights, bias FROM scorer WHERE name = ?`, DefaultScorer).
		Scan(&dim, &raw, &bias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query scorer: %w", err)
	}

	var w []float64
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("decode scorer weights: %w", err)
	}
	if len(w) != 2*dim {
		return nil, fmt.Errorf("%w: scorer has %d weights for dimension %d", ErrDimensionMismatch, len(w), dim)
	}
	return &Head{Weights: w, Bias: bias}, nil
}

// SaveSQLite writes vectors and an optional head to path, replacing rows
// with the same keys. It exists for tooling and tests; the service only reads.
func SaveSQLite(ctx context.Context, path string, vectors map[string]model.Embedding, head *Head) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for key, v := range vectors {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO embeddings (key, dim, vector) VALUES (?, ?, ?)`,
			key, len(v), string(raw)); err != nil {
			return fmt.Errorf("insert %s: %w", key, err)
		}
	}

	if head != nil {
		raw, err := json.Marshal(head.Weights)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO scorer (name, dim, weights, bias) VALUES (?, ?, ?, ?)`,
			DefaultScorer, len(head.Weights)/2, string(raw), head.Bias); err != nil {
			return fmt.Errorf("insert scorer: %w", err)
		}
	}
	return tx.Commit()
}
