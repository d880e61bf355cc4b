// Package sqlite persists the vector index as a single SQLite database inside
// the index directory. Searches run against an in-memory copy loaded at open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"eventbot/internal/domain"
	"eventbot/internal/vectorstore"
	"eventbot/internal/vectorstore/memory"
)

// FileName is the database file inside the index directory.
const FileName = "index.db"

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE chunks (
	seq    INTEGER PRIMARY KEY,
	source TEXT NOT NULL,
	part   INTEGER NOT NULL,
	text   TEXT NOT NULL,
	vector TEXT NOT NULL
);
`

// Index serves searches from the records of an existing index directory.
// It is read-only; rebuilding goes through Writer.
type Index struct {
	store *memory.Storage
	dir   string
}

var _ vectorstore.Index = (*Index)(nil)

func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	return i.store.Search(ctx, vector, k)
}

func (i *Index) Meta() domain.IndexMeta { return i.store.Meta() }

func (i *Index) Close() error { return i.store.Close() }

// Open loads the index stored in dir. A missing directory or database is a
// configuration error: the index must be built before serving queries.
func Open(ctx context.Context, dir string, log *slog.Logger) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.Configf("index directory %q not found; run the ingestion first", dir)
		}
		return nil, fmt.Errorf("checking index directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.Configf("index database %q not found; run the ingestion first", path)
		}
		return nil, fmt.Errorf("checking index database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	records, err := readRecords(ctx, db)
	if err != nil {
		return nil, err
	}
	store := memory.NewStorage()
	if err := store.BulkLoad(ctx, records, meta); err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	log.Info("index loaded", "dir", dir, "records", len(records), "model", meta.EmbeddingModel)
	return &Index{store: store, dir: dir}, nil
}

func readMeta(ctx context.Context, db *sql.DB) (domain.IndexMeta, error) {
	var meta domain.IndexMeta
	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'meta'`).Scan(&raw)
	if err != nil {
		return meta, domain.Configf("index metadata unreadable (rebuild the index): %v", err)
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return meta, domain.Configf("index metadata corrupt (rebuild the index): %v", err)
	}
	return meta, nil
}

func readRecords(ctx context.Context, db *sql.DB) ([]domain.IndexRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT seq, source, part, text, vector FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	var records []domain.IndexRecord
	for rows.Next() {
		var r domain.IndexRecord
		var vec string
		if err := rows.Scan(&r.Chunk.Seq, &r.Chunk.Source, &r.Chunk.Part, &r.Chunk.Text, &vec); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(vec), &r.Vector); err != nil {
			return nil, fmt.Errorf("decoding vector of chunk %d: %w", r.Chunk.Seq, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Writer builds a fresh index directory and swaps it into place.
type Writer struct {
	dir string
	// Backup keeps the replaced index as <dir>-backup-<timestamp>.
	Backup bool
	log    *slog.Logger
	now    func() time.Time
}

func NewWriter(dir string, backup bool, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{dir: filepath.Clean(dir), Backup: backup, log: log, now: time.Now}
}

// Exists reports whether an index database is present.
func (w *Writer) Exists(context.Context) (bool, error) {
	_, err := os.Stat(filepath.Join(w.dir, FileName))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// BulkLoad writes records into a temporary sibling directory, then replaces
// the index directory with it. The old index stays intact until the new one
// is completely written.
func (w *Writer) BulkLoad(ctx context.Context, records []domain.IndexRecord, meta domain.IndexMeta) error {
	if len(records) == 0 {
		return errors.New("refusing to write an empty index")
	}
	meta.Records = len(records)
	meta.Dimension = len(records[0].Vector)

	parent := filepath.Dir(w.dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating index parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(w.dir)+"-build-")
	if err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	if err := writeDB(ctx, filepath.Join(tmp, FileName), records, meta); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := w.swap(tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	w.log.Info("index written", "dir", w.dir, "records", meta.Records, "dimension", meta.Dimension)
	return nil
}

func (w *Writer) swap(tmp string) error {
	if _, err := os.Stat(w.dir); errors.Is(err, os.ErrNotExist) {
		return os.Rename(tmp, w.dir)
	}
	old := w.dir + "-old-" + filepath.Base(tmp)
	if w.Backup {
		old = w.dir + "-backup-" + w.now().Format("20060102-150405")
	}
	if err := os.Rename(w.dir, old); err != nil {
		return fmt.Errorf("moving previous index aside: %w", err)
	}
	if err := os.Rename(tmp, w.dir); err != nil {
		if rerr := os.Rename(old, w.dir); rerr != nil {
			w.log.Error("restoring previous index failed", "from", old, "err", rerr)
		}
		return fmt.Errorf("installing new index: %w", err)
	}
	if w.Backup {
		w.log.Info("previous index kept", "backup", old)
		return nil
	}
	if err := os.RemoveAll(old); err != nil {
		w.log.Warn("removing previous index", "dir", old, "err", err)
	}
	return nil
}

func writeDB(ctx context.Context, path string, records []domain.IndexRecord, meta domain.IndexMeta) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("creating index database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (seq, source, part, text, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		vec, err := json.Marshal(r.Vector)
		if err != nil {
			return fmt.Errorf("encoding vector: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.Chunk.Seq, r.Chunk.Source, r.Chunk.Part, r.Chunk.Text, string(vec)); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", r.Chunk.Seq, err)
		}
	}

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('meta', ?)`, string(rawMeta)); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return tx.Commit()
}
