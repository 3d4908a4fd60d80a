// Package file implements the corpus store on a plain data directory:
// histograms as JSON, feature matrices as CSV and ranking caches as JSON.
package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/google/renameio"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// BackendName identifies the file backend in the provider registry.
const BackendName = "file"

const (
	histogramsFile = "histograms.json"
	rankingsPrefix = "rankings_"
	idColumn       = "image_id"
)

// Store is a corpus store rooted at a data directory. Every write goes to
// a temporary file that atomically replaces the previous version.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates a store in dir, creating the directory when missing.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Initialize creates the store and registers it as the active backend.
func Initialize(dir string) (*Store, error) {
	s, err := New(dir)
	if err != nil {
		return nil, err
	}
	database.RegisterBackend(BackendName,
		func() database.CorpusReader { return s },
		func() database.CorpusWriter { return s },
	)
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) matrixPath(kind database.MatrixKind) string {
	return filepath.Join(s.dir, string(kind)+".csv")
}

func (s *Store) rankingsPath(method retrieval.Method) string {
	return filepath.Join(s.dir, rankingsPrefix+string(method)+".json")
}

// LoadHistograms reads histograms.json.
func (s *Store) LoadHistograms(ctx context.Context) ([]database.StoredHistogram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.StoredHistogram
	if err := readJSON(filepath.Join(s.dir, histogramsFile), &out); err != nil {
		return nil, fmt.Errorf("load histograms: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImageID < out[j].ImageID })
	return out, nil
}

// SaveHistograms writes histograms.json.
func (s *Store) SaveHistograms(ctx context.Context, histograms []database.StoredHistogram) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]database.StoredHistogram(nil), histograms...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ImageID < sorted[j].ImageID })

	if err := writeJSON(filepath.Join(s.dir, histogramsFile), sorted); err != nil {
		return fmt.Errorf("save histograms: %w", err)
	}
	return nil
}

// Count returns the number of stored histograms.
func (s *Store) Count(ctx context.Context) (int, error) {
	h, err := s.LoadHistograms(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(h), nil
}

// LoadMatrix reads <kind>.csv. The first column holds the image ID, the
// header names the feature columns.
func (s *Store) LoadMatrix(ctx context.Context, kind database.MatrixKind) (*features.Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.matrixPath(kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s matrix: %w", kind, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s matrix: %w", kind, err)
	}
	defer f.Close()

	m, err := ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("load %s matrix: %w", kind, err)
	}
	return m, nil
}

// SaveMatrix writes <kind>.csv.
func (s *Store) SaveMatrix(ctx context.Context, kind database.MatrixKind, m *features.Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.matrixPath(kind), func(w io.Writer) error { return WriteMatrix(w, m) }); err != nil {
		return fmt.Errorf("save %s matrix: %w", kind, err)
	}
	return nil
}

// LoadRankings reads rankings_<method>.json.
func (s *Store) LoadRankings(ctx context.Context, method retrieval.Method) (database.Rankings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw map[string][][2]float64
	if err := readJSON(s.rankingsPath(method), &raw); err != nil {
		return nil, fmt.Errorf("load %s rankings: %w", method, err)
	}

	out := make(database.Rankings, len(raw))
	for key, entries := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("load %s rankings: invalid image id %q", method, key)
		}
		results := make([]retrieval.Result, len(entries))
		for i, e := range entries {
			results[i] = retrieval.Result{Distance: e[0], ImageID: int(e[1])}
		}
		out[id] = results
	}
	return out, nil
}

// SaveRankings writes rankings_<method>.json as {"<id>": [[distance, id], ...]}.
func (s *Store) SaveRankings(ctx context.Context, method retrieval.Method, rankings database.Rankings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string][][2]float64, len(rankings))
	for id, results := range rankings {
		entries := make([][2]float64, len(results))
		for i, r := range results {
			entries[i] = [2]float64{r.Distance, float64(r.ImageID)}
		}
		raw[strconv.Itoa(id)] = entries
	}

	if err := writeJSON(s.rankingsPath(method), raw); err != nil {
		return fmt.Errorf("save %s rankings: %w", method, err)
	}
	return nil
}

// ClearRankings removes every rankings_<method>.json in the data directory.
func (s *Store) ClearRankings(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, rankingsPrefix+"*.json"))
	if err != nil {
		return fmt.Errorf("list rankings: %w", err)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ReadMatrix parses a matrix in CSV form.
func ReadMatrix(r io.Reader) (*features.Matrix, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || header[0] != idColumn {
		return nil, fmt.Errorf("invalid header: first column must be %s", idColumn)
	}
	columns := append([]string(nil), header[1:]...)

	var (
		ids  []int
		rows [][]float64
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}

		id, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid image id %q", len(rows)+1, record[0])
		}
		row := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("image %d column %s: %w", id, columns[i], err)
			}
			row[i] = v
		}
		ids = append(ids, id)
		rows = append(rows, row)
	}

	return features.New(ids, columns, rows)
}

// WriteMatrix writes a matrix in CSV form. Floats use the shortest
// representation that parses back to the same value.
func WriteMatrix(w io.Writer, m *features.Matrix) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{idColumn}, m.Columns()...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, m.Dim()+1)
	for pos := range m.Len() {
		id, row := m.RowAt(pos)
		record[0] = strconv.Itoa(id)
		for i, v := range row {
			record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write image %d: %w", id, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the configured data directory
	if errors.Is(err, os.ErrNotExist) {
		return database.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		return enc.Encode(v)
	})
}

// writeAtomic streams content into a temporary file next to path and
// renames it over path once complete.
func writeAtomic(path string, write func(w io.Writer) error) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer func() { _ = t.Cleanup() }()

	if err := write(t); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
