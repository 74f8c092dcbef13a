package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const schema = `CREATE TABLE IF NOT EXISTS files (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(512) NOT NULL,
	message_id VARCHAR(64) NOT NULL,
	chunk_index INT NULL,
	channel_id VARCHAR(64) NOT NULL,
	is_folder BOOLEAN NOT NULL DEFAULT FALSE,
	folder_id VARCHAR(64) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uk_files_message_id (message_id),
	KEY idx_files_scope_name (folder_id, name)
)`

const entryColumns = `id, name, message_id, chunk_index, channel_id, is_folder, folder_id, created_at`

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// TiDBClient is the relational catalog: one row per entry, folder children
// tagged with their parent's message id. Works against TiDB or MySQL.
type TiDBClient struct {
	db *sql.DB
}

// NewTiDBClient initializes a new TiDB client and ensures the schema exists.
func NewTiDBClient(dsn string) (*TiDBClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	tc := &TiDBClient{db: db}
	if err := tc.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return tc, nil
}

// EnsureSchema creates the files table if it is missing.
func (tc *TiDBClient) EnsureSchema(ctx context.Context) error {
	if _, err := tc.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (tc *TiDBClient) Close() error {
	return tc.db.Close()
}

// Insert adds one catalog row with tracing
func (tc *TiDBClient) Insert(ctx context.Context, entry *models.CatalogEntry) error {
	ctx, span := tracer.Start(ctx, "tidb.insert_entry",
		trace.WithAttributes(
			attribute.String("message_id", entry.MessageID),
			attribute.String("name", entry.Name),
			attribute.Int("chunk_index", entry.Index()),
		),
	)
	defer span.End()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var chunkIndex sql.NullInt64
	if entry.ChunkIndex != nil {
		chunkIndex = sql.NullInt64{Int64: int64(*entry.ChunkIndex), Valid: true}
	}

	query := `INSERT INTO files (name, message_id, chunk_index, channel_id, is_folder, folder_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := tc.db.ExecContext(ctx, query,
		entry.Name, entry.MessageID, chunkIndex, entry.ChannelID, entry.IsFolder, entry.FolderID, entry.CreatedAt)
	if err != nil {
		span.RecordError(err)
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("%s: %w", entry.MessageID, ErrDuplicateMessage)
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read insert id: %w", err)
	}
	entry.ID = id

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// GetByMessageID retrieves a single row by message id with tracing
func (tc *TiDBClient) GetByMessageID(ctx context.Context, messageID string) (*models.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "tidb.get_entry",
		trace.WithAttributes(
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	query := `SELECT ` + entryColumns + ` FROM files WHERE message_id = ?`

	entry, err := scanEntry(tc.db.QueryRowContext(ctx, query, messageID))
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return entry, nil
}

// ListScope returns the direct children of folderID in insertion order
func (tc *TiDBClient) ListScope(ctx context.Context, folderID string) ([]models.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "tidb.list_scope",
		trace.WithAttributes(
			attribute.String("folder_id", folderID),
		),
	)
	defer span.End()

	query := `SELECT ` + entryColumns + ` FROM files WHERE folder_id = ? ORDER BY id ASC`

	entries, err := tc.queryEntries(ctx, query, folderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("entry_count", len(entries)))
	return entries, nil
}

// FindByName returns all rows for name in folderID ordered by chunk index
func (tc *TiDBClient) FindByName(ctx context.Context, folderID, name string) ([]models.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "tidb.find_by_name",
		trace.WithAttributes(
			attribute.String("folder_id", folderID),
			attribute.String("name", name),
		),
	)
	defer span.End()

	query := `SELECT ` + entryColumns + `
			  FROM files
			  WHERE folder_id = ? AND name = ?
			  ORDER BY COALESCE(chunk_index, -1) ASC, id ASC`

	entries, err := tc.queryEntries(ctx, query, folderID, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("entry_count", len(entries)))
	return entries, nil
}

// Delete removes the row for messageID
func (tc *TiDBClient) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracer.Start(ctx, "tidb.delete_entry",
		trace.WithAttributes(
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	res, err := tc.db.ExecContext(ctx, `DELETE FROM files WHERE message_id = ?`, messageID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}
	return nil
}

// CountChildren counts rows whose parent is folderID
func (tc *TiDBClient) CountChildren(ctx context.Context, folderID string) (int, error) {
	ctx, span := tracer.Start(ctx, "tidb.count_children",
		trace.WithAttributes(
			attribute.String("folder_id", folderID),
		),
	)
	defer span.End()

	var count int
	err := tc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE folder_id = ?`, folderID).Scan(&count)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count children: %w", err)
	}
	return count, nil
}

func (tc *TiDBClient) queryEntries(ctx context.Context, query string, args ...interface{}) ([]models.CatalogEntry, error) {
	rows, err := tc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	var chunkIndex sql.NullInt64
	err := row.Scan(
		&entry.ID,
		&entry.Name,
		&entry.MessageID,
		&chunkIndex,
		&entry.ChannelID,
		&entry.IsFolder,
		&entry.FolderID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if chunkIndex.Valid {
		entry.ChunkIndex = models.ChunkIndexPtr(int(chunkIndex.Int64))
	}
	return &entry, nil
}
