package corpus

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteRepository persists the loaded corpus so queries do not re-parse the
// JSONL source. Embeddings are stored as little-endian float32 blobs.
type SQLiteRepository struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenSQLiteRepository opens or creates the corpus database at path.
// An empty path opens an in-memory database.
func OpenSQLiteRepository(path string) (*SQLiteRepository, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	repo := &SQLiteRepository{db: db, path: path}
	if err := repo.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize corpus schema: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) initSchema() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL UNIQUE,
		title     TEXT NOT NULL,
		content   TEXT NOT NULL,
		category  TEXT NOT NULL,
		embedding BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);

	CREATE TABLE IF NOT EXISTS categories (
		position INTEGER PRIMARY KEY,
		name     TEXT NOT NULL UNIQUE
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`)
	return err
}

// Replace swaps the stored corpus for docs and categories in one transaction.
func (r *SQLiteRepository) Replace(ctx context.Context, docs []Document, categories CategorySet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("corpus database is closed")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	catStmt, err := tx.PrepareContext(ctx, `INSERT INTO categories(position, name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare category statement: %w", err)
	}
	defer catStmt.Close()
	for i, name := range categories.Names() {
		if _, err := catStmt.ExecContext(ctx, i, name); err != nil {
			return fmt.Errorf("failed to store category %s: %w", name, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents(id, title, content, category, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer docStmt.Close()
	for i := range docs {
		d := &docs[i]
		if _, err := docStmt.ExecContext(ctx, d.ID, d.Title, d.Content, d.Category, encodeVector(d.Embedding)); err != nil {
			return fmt.Errorf("failed to store document %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// SetEmbeddings stores vectors for existing documents.
func (r *SQLiteRepository) SetEmbeddings(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("corpus database is closed")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE documents SET embedding = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding statement: %w", err)
	}
	defer stmt.Close()
	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, encodeVector(vectors[i]), id); err != nil {
			return fmt.Errorf("failed to store embedding for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored documents in insertion order and the category set.
func (r *SQLiteRepository) Load(ctx context.Context) ([]Document, CategorySet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, CategorySet{}, fmt.Errorf("corpus database is closed")
	}

	names, err := r.loadCategories(ctx)
	if err != nil {
		return nil, CategorySet{}, err
	}
	set, err := NewCategorySet(names)
	if err != nil {
		return nil, CategorySet{}, fmt.Errorf("stored categories are invalid: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, category, embedding FROM documents ORDER BY seq`)
	if err != nil {
		return nil, CategorySet{}, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var blob []byte
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Category, &blob); err != nil {
			return nil, CategorySet{}, fmt.Errorf("failed to scan document: %w", err)
		}
		if d.Embedding, err = decodeVector(blob); err != nil {
			return nil, CategorySet{}, fmt.Errorf("document %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, set, rows.Err()
}

func (r *SQLiteRepository) loadCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Count returns the number of stored documents.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, fmt.Errorf("corpus database is closed")
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	_, _ = r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return r.db.Close()
}

func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
