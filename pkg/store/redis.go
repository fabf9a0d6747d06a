package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

// keepLatest replaces the stored row only when the incoming event time is
// newer, so replays and out-of-order batches never move a key backwards.
// KEYS[1] row hash, KEYS[2] index set; ARGV event time ms, row json, ttl ms.
var keepLatest = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'row', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
redis.call('SADD', KEYS[2], KEYS[1])
return 1
`)

// RedisStore is the online store: it serves the latest row per primary key
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// RedisConfig holds Redis store configuration. Several addresses select cluster mode.
type RedisConfig struct {
	Addrs     []string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisStore connects to Redis
func NewRedisStore(ctx context.Context, config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if len(config.Addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses specified")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    config.Addrs,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Redis online feature store initialized",
		zap.Strings("addrs", config.Addrs),
		zap.Duration("ttl", config.TTL),
	)

	return newRedisStore(client, config, logger), nil
}

func newRedisStore(client redis.UniversalClient, config RedisConfig, logger *zap.Logger) *RedisStore {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "ccfraud"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: config.TTL, logger: logger}
}

// The group ID is a hash tag so all keys of a group share a cluster slot.
func (r *RedisStore) rowKey(group *schema.FeatureGroup, pk string) string {
	return fmt.Sprintf("%s:{%s}:%s", r.prefix, group.ID(), pk)
}

func (r *RedisStore) indexKey(group *schema.FeatureGroup) string {
	return fmt.Sprintf("%s:{%s}:keys", r.prefix, group.ID())
}

// Write upserts the newest row of every primary key in one pipeline
func (r *RedisStore) Write(ctx context.Context, table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if table.Len() == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.Cmd, 0, table.Len())
	for _, row := range table.Rows {
		pk, err := PrimaryKey(table.Group, row)
		if err != nil {
			return err
		}
		ts, err := EventTimeMillis(table.Group, row)
		if err != nil {
			return err
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row of %s: %w", table.Group.ID(), err)
		}

		cmds = append(cmds, keepLatest.Eval(ctx, pipe,
			[]string{r.rowKey(table.Group, pk), r.indexKey(table.Group)},
			strconv.FormatInt(ts, 10), data, r.ttl.Milliseconds()))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", table.Group.ID(), err)
	}

	var updated int64
	for _, cmd := range cmds {
		if n, err := cmd.Int64(); err == nil {
			updated += n
		}
	}

	r.logger.Info("Batch written to Redis",
		zap.String("group", table.Group.ID()),
		zap.Int("rows", table.Len()),
		zap.Int64("updated", updated),
	)
	return nil
}

// Read returns the latest row of every primary key of the group
func (r *RedisStore) Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error) {
	keys, err := r.client.SMembers(ctx, r.indexKey(group)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %s: %w", group.ID(), err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group.ID())
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGet(ctx, k, "row")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read %s from Redis: %w", group.ID(), err)
	}

	table := NewTable(group)
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err == redis.Nil {
			// expired since it was indexed
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from Redis: %w", group.ID(), err)
		}
		row, err := decodeRow(group, data)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	SortRows(group, table.Rows)
	return table, nil
}

// Get returns the latest row of one primary key, or nil when absent
func (r *RedisStore) Get(ctx context.Context, group *schema.FeatureGroup, pk string) (Row, error) {
	data, err := r.client.HGet(ctx, r.rowKey(group, pk), "row").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s from Redis: %w", group.ID(), pk, err)
	}
	return decodeRow(group, data)
}

// Close closes the client
func (r *RedisStore) Close() error {
	r.logger.Info("Closing Redis feature store")
	return r.client.Close()
}
