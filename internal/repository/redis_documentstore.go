package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// keyField is stored in every hash so that an empty document still exists.
const keyField = "__key"

// createScript writes the hash only if it does not exist yet and indexes it.
// KEYS[1] document hash, KEYS[2] collection index; ARGV[1] document key,
// ARGV[2..] field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], '` + keyField + `', ARGV[1])
if #ARGV > 1 then
	redis.call('HSET', KEYS[1], unpack(ARGV, 2))
end
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// createAllScript writes several hashes only if none of them exists. KEYS
// holds document hash and collection index pairs. ARGV holds, per document,
// its key, the number of field/value arguments, then those arguments.
// Returns 0 on success or the 1-based position of the first taken key.
var createAllScript = redis.NewScript(`
local n = #KEYS / 2
for i = 1, n do
	if redis.call('EXISTS', KEYS[2 * i - 1]) == 1 then
		return i
	end
end
local a = 1
for i = 1, n do
	local key = ARGV[a]
	local count = tonumber(ARGV[a + 1])
	a = a + 2
	redis.call('HSET', KEYS[2 * i - 1], '` + keyField + `', key)
	for j = 0, count - 1, 2 do
		redis.call('HSET', KEYS[2 * i - 1], ARGV[a + j], ARGV[a + j + 1])
	end
	a = a + count
	redis.call('SADD', KEYS[2 * i], key)
end
return 0
`)

// updateScript merges field/value pairs into an existing hash.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if #ARGV > 0 then
	redis.call('HSET', KEYS[1], unpack(ARGV))
end
return 1
`)

// RedisDocumentStore is a Redis implementation of the DocumentStore
// interface. Each document is a hash whose field values are JSON encoded, so
// partial updates map directly onto HSET. A set per collection indexes keys.
type RedisDocumentStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisDocumentStore.
type RedisOption func(*RedisDocumentStore)

// WithPrefix sets the key prefix for Redis keys. Default is "tracker".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisDocumentStore) {
		s.prefix = prefix
	}
}

// NewRedisDocumentStore creates a new Redis-backed document store.
func NewRedisDocumentStore(client *redis.Client, opts ...RedisOption) *RedisDocumentStore {
	s := &RedisDocumentStore{
		client: client,
		prefix: "tracker",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisDocumentStore) docKey(collection, key string) string {
	return fmt.Sprintf("%s:doc:%s:%s", s.prefix, collection, key)
}

func (s *RedisDocumentStore) indexKey(collection string) string {
	return fmt.Sprintf("%s:idx:%s", s.prefix, collection)
}

// Get retrieves a document by key.
func (s *RedisDocumentStore) Get(ctx context.Context, collection, key string) (Document, error) {
	fields, err := s.client.HGetAll(ctx, s.docKey(collection, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s/%s: %w", collection, key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeHash(fields)
}

// Create stores a new document unless the key is taken.
func (s *RedisDocumentStore) Create(ctx context.Context, collection, key string, doc Document) error {
	args, err := encodeHash(doc)
	if err != nil {
		return err
	}
	args = append([]any{key}, args...)

	created, err := createScript.Run(ctx, s.client,
		[]string{s.docKey(collection, key), s.indexKey(collection)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis create %s/%s: %w", collection, key, err)
	}
	if created == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// CreateAll stores every document in one script call, so either all of them
// are written or none.
func (s *RedisDocumentStore) CreateAll(ctx context.Context, docs ...Insert) error {
	if len(docs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(docs)*2)
	var args []any
	for _, d := range docs {
		fields, err := encodeHash(d.Data)
		if err != nil {
			return err
		}
		keys = append(keys, s.docKey(d.Collection, d.Key), s.indexKey(d.Collection))
		args = append(args, d.Key, len(fields))
		args = append(args, fields...)
	}

	taken, err := createAllScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("redis create batch: %w", err)
	}
	if taken > 0 {
		d := docs[taken-1]
		return &ConflictError{Collection: d.Collection, Key: d.Key}
	}
	return nil
}

// Update merges fields into an existing document.
func (s *RedisDocumentStore) Update(ctx context.Context, collection, key string, fields Document) error {
	args, err := encodeHash(fields)
	if err != nil {
		return err
	}
	updated, err := updateScript.Run(ctx, s.client,
		[]string{s.docKey(collection, key)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis update %s/%s: %w", collection, key, err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// Query returns documents whose field equals value.
func (s *RedisDocumentStore) Query(ctx context.Context, collection, field string, value any) ([]Entry, error) {
	entries, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return filterEntries(entries, field, value), nil
}

// List returns every document in the collection.
func (s *RedisDocumentStore) List(ctx context.Context, collection string) ([]Entry, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", collection, err)
	}
	sort.Strings(keys)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, s.docKey(collection, key))
	}
	if len(keys) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis list %s: %w", collection, err)
		}
	}

	entries := make([]Entry, 0, len(keys))
	for i, key := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		doc, err := decodeHash(fields)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Data: doc})
	}
	return entries, nil
}

// Ping checks the Redis connection.
func (s *RedisDocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisDocumentStore) Close() error {
	return s.client.Close()
}

func encodeHash(doc Document) ([]any, error) {
	args := make([]any, 0, len(doc)*2)
	for field, value := range doc {
		if field == keyField {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", field, err)
		}
		args = append(args, field, string(data))
	}
	return args, nil
}

func decodeHash(fields map[string]string) (Document, error) {
	doc := make(Document, len(fields))
	for field, raw := range fields {
		if field == keyField {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode field %s: %w", field, err)
		}
		doc[field] = v
	}
	return doc, nil
}
