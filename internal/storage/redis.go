package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix = "discloud:"
	rootScope = "root"
)

// RedisClient is the document catalog. Each scope (root or a folder) is one
// hash whose fields are the children's message ids and whose values are the
// JSON-encoded entries, so a folder record carries its child list inline.
// A second hash maps message id to scope for point lookups.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func scopeKey(folderID string) string {
	if folderID == "" {
		folderID = rootScope
	}
	return keyPrefix + "scope:" + folderID
}

func indexKey() string { return keyPrefix + "index" }
func seqKey() string   { return keyPrefix + "seq" }

// Insert stores entry in its scope's child list with tracing
func (rc *RedisClient) Insert(ctx context.Context, entry *models.CatalogEntry) error {
	ctx, span := tracer.Start(ctx, "redis.insert_entry",
		trace.WithAttributes(
			attribute.String("message_id", entry.MessageID),
			attribute.String("folder_id", entry.FolderID),
		),
	)
	defer span.End()

	// Claiming the index field first makes duplicate detection atomic.
	claimed, err := rc.client.HSetNX(ctx, indexKey(), entry.MessageID, entry.FolderID).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to claim index: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%s: %w", entry.MessageID, ErrDuplicateMessage)
	}

	if err := rc.writeEntry(ctx, entry); err != nil {
		span.RecordError(err)
		if derr := rc.client.HDel(context.WithoutCancel(ctx), indexKey(), entry.MessageID).Err(); derr != nil {
			return fmt.Errorf("%w (releasing index claim: %v)", err, derr)
		}
		return err
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// writeEntry allocates the entry id and stores the entry in its scope hash.
func (rc *RedisClient) writeEntry(ctx context.Context, entry *models.CatalogEntry) error {
	id, err := rc.client.Incr(ctx, seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate entry id: %w", err)
	}
	entry.ID = id
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := rc.client.HSet(ctx, scopeKey(entry.FolderID), entry.MessageID, data).Err(); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetByMessageID resolves the entry's scope via the index, then reads it
func (rc *RedisClient) GetByMessageID(ctx context.Context, messageID string) (*models.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "redis.get_entry",
		trace.WithAttributes(
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	folderID, err := rc.client.HGet(ctx, indexKey(), messageID).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	data, err := rc.client.HGet(ctx, scopeKey(folderID), messageID).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}

	var entry models.CatalogEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	span.SetAttributes(attribute.Bool("found", true))
	return &entry, nil
}

// ListScope returns a scope's child list in insertion order
func (rc *RedisClient) ListScope(ctx context.Context, folderID string) ([]models.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "redis.list_scope",
		trace.WithAttributes(
			attribute.String("folder_id", folderID),
		),
	)
	defer span.End()

	values, err := rc.client.HVals(ctx, scopeKey(folderID)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list scope: %w", err)
	}

	entries := make([]models.CatalogEntry, 0, len(values))
	for _, v := range values {
		var entry models.CatalogEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	sortByInsertion(entries)

	span.SetAttributes(attribute.Int("entry_count", len(entries)))
	return entries, nil
}

// FindByName filters a scope's child list by name
func (rc *RedisClient) FindByName(ctx context.Context, folderID, name string) ([]models.CatalogEntry, error) {
	entries, err := rc.ListScope(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var matched []models.CatalogEntry
	for _, e := range entries {
		if e.Name == name {
			matched = append(matched, e)
		}
	}
	sortByChunk(matched)
	return matched, nil
}

// Delete drops the entry from its scope's child list and from the index
func (rc *RedisClient) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracer.Start(ctx, "redis.delete_entry",
		trace.WithAttributes(
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	folderID, err := rc.client.HGet(ctx, indexKey(), messageID).Result()
	if err == redis.Nil {
		return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read index: %w", err)
	}

	_, err = rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, scopeKey(folderID), messageID)
		pipe.HDel(ctx, indexKey(), messageID)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	span.SetAttributes(attribute.Bool("delete_success", true))
	return nil
}

// CountChildren is the length of the folder's child list
func (rc *RedisClient) CountChildren(ctx context.Context, folderID string) (int, error) {
	n, err := rc.client.HLen(ctx, scopeKey(folderID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count children: %w", err)
	}
	return int(n), nil
}
