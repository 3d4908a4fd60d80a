package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// CorpusRepository provides PostgreSQL-backed corpus storage
type CorpusRepository struct {
	pool *Pool
}

// NewCorpusRepository creates a new PostgreSQL corpus repository
func NewCorpusRepository(pool *Pool) *CorpusRepository {
	return &CorpusRepository{pool: pool}
}

// LoadHistograms returns the histograms of all images ordered by image ID
func (r *CorpusRepository) LoadHistograms(ctx context.Context) ([]database.StoredHistogram, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT image_id, path, pixel_count, intensity, color_code, created_at
		FROM images
		ORDER BY image_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query histograms: %w", err)
	}
	defer rows.Close()

	var out []database.StoredHistogram
	for rows.Next() {
		var (
			h         database.StoredHistogram
			intensity []int64
			colorCode []int64
		)
		if err := rows.Scan(&h.ImageID, &h.Path, &h.Histograms.PixelCount,
			pq.Array(&intensity), pq.Array(&colorCode), &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan histogram: %w", err)
		}
		if len(intensity) != constants.IntensityBins || len(colorCode) != constants.ColorCodeBins {
			return nil, fmt.Errorf("image %d: %w: stored histograms have %d/%d bins",
				h.ImageID, features.ErrDimensionMismatch, len(intensity), len(colorCode))
		}
		for i, v := range intensity {
			h.Histograms.Intensity[i] = int(v)
		}
		for i, v := range colorCode {
			h.Histograms.ColorCode[i] = int(v)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate histograms: %w", err)
	}
	if len(out) == 0 {
		return nil, database.ErrNotFound
	}
	return out, nil
}

// SaveHistograms replaces the histograms of the whole corpus
func (r *CorpusRepository) SaveHistograms(ctx context.Context, histograms []database.StoredHistogram) error {
	return r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM images"); err != nil {
			return fmt.Errorf("clear histograms: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO images (image_id, path, pixel_count, intensity, color_code)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return fmt.Errorf("prepare histogram insert: %w", err)
		}
		defer stmt.Close()

		for _, h := range histograms {
			if _, err := stmt.ExecContext(ctx, h.ImageID, h.Path, h.Histograms.PixelCount,
				pq.Array(toInt64s(h.Histograms.Intensity[:])),
				pq.Array(toInt64s(h.Histograms.ColorCode[:])),
			); err != nil {
				return fmt.Errorf("insert histogram %d: %w", h.ImageID, err)
			}
		}
		return nil
	})
}

// Count returns the number of indexed images
func (r *CorpusRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

// LoadMatrix returns a persisted feature matrix
func (r *CorpusRepository) LoadMatrix(ctx context.Context, kind database.MatrixKind) (*features.Matrix, error) {
	columns, err := r.loadColumns(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("load %s matrix: %w", kind, database.ErrNotFound)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT image_id, vals
		FROM feature_vectors
		WHERE kind = $1
		ORDER BY image_id
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s matrix: %w", kind, err)
	}
	defer rows.Close()

	var (
		ids     []int
		vectors [][]float64
	)
	for rows.Next() {
		var (
			id   int
			vals []float64
		)
		if err := rows.Scan(&id, pq.Array(&vals)); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		ids = append(ids, id)
		vectors = append(vectors, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s matrix: %w", kind, err)
	}

	return features.New(ids, columns, vectors)
}

func (r *CorpusRepository) loadColumns(ctx context.Context, kind database.MatrixKind) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT name FROM feature_columns WHERE kind = $1 ORDER BY position", string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s columns: %w", kind, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// SaveMatrix replaces a persisted feature matrix
func (r *CorpusRepository) SaveMatrix(ctx context.Context, kind database.MatrixKind, m *features.Matrix) error {
	return r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM feature_columns WHERE kind = $1", string(kind)); err != nil {
			return fmt.Errorf("clear %s columns: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM feature_vectors WHERE kind = $1", string(kind)); err != nil {
			return fmt.Errorf("clear %s matrix: %w", kind, err)
		}

		for pos, name := range m.Columns() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO feature_columns (kind, position, name) VALUES ($1, $2, $3)",
				string(kind), pos, name); err != nil {
				return fmt.Errorf("insert column %s: %w", name, err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO feature_vectors (kind, image_id, vals, embedding)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return fmt.Errorf("prepare vector insert: %w", err)
		}
		defer stmt.Close()

		for pos := range m.Len() {
			id, row := m.RowAt(pos)
			vec := pgvector.NewVector(toFloat32(row))
			if _, err := stmt.ExecContext(ctx, string(kind), id, pq.Array(row), vec); err != nil {
				return fmt.Errorf("insert %s row %d: %w", kind, id, err)
			}
		}
		return nil
	})
}

// LoadRankings returns the precomputed rankings of a method
func (r *CorpusRepository) LoadRankings(ctx context.Context, method retrieval.Method) (database.Rankings, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT query_id, image_id, distance
		FROM rankings
		WHERE method = $1
		ORDER BY query_id, rank
	`, string(method))
	if err != nil {
		return nil, fmt.Errorf("query %s rankings: %w", method, err)
	}
	defer rows.Close()

	out := make(database.Rankings)
	for rows.Next() {
		var (
			queryID int
			res     retrieval.Result
		)
		if err := rows.Scan(&queryID, &res.ImageID, &res.Distance); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		out[queryID] = append(out[queryID], res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rankings: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("load %s rankings: %w", method, database.ErrNotFound)
	}
	return out, nil
}

// SaveRankings replaces the precomputed rankings of a method. Rows are
// streamed with COPY since a full table holds N*(N-1) entries.
func (r *CorpusRepository) SaveRankings(ctx context.Context, method retrieval.Method, rankings database.Rankings) error {
	return r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM rankings WHERE method = $1", string(method)); err != nil {
			return fmt.Errorf("clear %s rankings: %w", method, err)
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("rankings", "method", "query_id", "rank", "image_id", "distance"))
		if err != nil {
			return fmt.Errorf("prepare rankings copy: %w", err)
		}

		for queryID, results := range rankings {
			for rank, res := range results {
				if _, err := stmt.ExecContext(ctx, string(method), queryID, rank, res.ImageID, res.Distance); err != nil {
					stmt.Close()
					return fmt.Errorf("copy ranking %d: %w", queryID, err)
				}
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flush rankings copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("close rankings copy: %w", err)
		}
		return nil
	})
}

// ClearRankings drops the precomputed rankings of every method
func (r *CorpusRepository) ClearRankings(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM rankings"); err != nil {
		return fmt.Errorf("clear rankings: %w", err)
	}
	return nil
}

// NearestNeighbors returns up to k images closest to an image using the
// pgvector L1 operator. Distances are recomputed exactly with the uniform
// weight from the stored float64 rows.
func (r *CorpusRepository) NearestNeighbors(ctx context.Context, kind database.MatrixKind, id, k int) ([]retrieval.Result, error) {
	var query []float64
	err := r.pool.QueryRow(ctx,
		"SELECT vals FROM feature_vectors WHERE kind = $1 AND image_id = $2",
		string(kind), id).Scan(pq.Array(&query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", retrieval.ErrUnknownImage, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query image %d: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.image_id, c.vals
		FROM feature_vectors c, feature_vectors q
		WHERE c.kind = $1 AND q.kind = $1 AND q.image_id = $2 AND c.image_id <> $2
		ORDER BY c.embedding <+> q.embedding, c.image_id
		LIMIT $3
	`, string(kind), id, k)
	if err != nil {
		return nil, fmt.Errorf("query neighbors of %d: %w", id, err)
	}
	defer rows.Close()

	w := retrieval.Uniform(len(query))
	var results []retrieval.Result
	for rows.Next() {
		var (
			other int
			vals  []float64
		)
		if err := rows.Scan(&other, pq.Array(&vals)); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		d, err := retrieval.WeightedL1(query, vals, w)
		if err != nil {
			return nil, err
		}
		results = append(results, retrieval.Result{ImageID: other, Distance: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}

	retrieval.SortResults(results)
	return results, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
