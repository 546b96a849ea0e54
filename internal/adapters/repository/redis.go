package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

const (
	defaultRedisPrefix  = "medsafety:"
	defaultRestoreLock  = 30 * time.Second
	redisChangeChannel  = "changes"
	redisRestoreLockKey = "lock:restore"
)

// RedisStore keeps each collection in a hash (<prefix><collection>, field =
// document id) and publishes every committed change on <prefix>changes.
type RedisStore struct {
	client  *redis.Client
	locker  *redislock.Client
	prefix  string
	lockTTL time.Duration
	now     func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisKeyPrefix namespaces every key and channel.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRestoreLockTTL bounds how long a restore may hold the cluster-wide lock.
func WithRestoreLockTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		locker:  redislock.New(client),
		prefix:  defaultRedisPrefix,
		lockTTL: defaultRestoreLock,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects and pings once. Failure to reach the server is a
// StorageError so startup can report it like any other backend failure.
func DialRedis(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &StorageError{Backend: "redis", Op: "connect", Err: err}
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) key(collection string) string { return s.prefix + collection }

func (s *RedisStore) channel() string { return s.prefix + redisChangeChannel }

func (s *RedisStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	all, err := s.client.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(all))
	for _, v := range all {
		out = append(out, json.RawMessage(v))
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	v, err := s.client.HGet(ctx, s.key(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(v), nil
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, doc json.RawMessage) error {
	msg, err := s.change(collection, model.OpSet, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(collection), id, []byte(doc))
		pipe.Publish(ctx, s.channel(), msg)
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, collection string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.client.HDel(ctx, s.key(collection), ids...).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	pipe := s.client.Pipeline()
	for _, id := range ids {
		msg, err := s.change(collection, model.OpDelete, id)
		if err != nil {
			return int(n), err
		}
		pipe.Publish(ctx, s.channel(), msg)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// Replace swaps the collection in one MULTI block while holding a
// cluster-wide lock, so two concurrent restores cannot interleave.
func (s *RedisStore) Replace(ctx context.Context, collection string, docs map[string]json.RawMessage) error {
	lock, err := s.locker.Obtain(ctx, s.prefix+redisRestoreLockKey, s.lockTTL, nil)
	if err != nil {
		return fmt.Errorf("obtain restore lock: %w", err)
	}
	defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()

	msg, err := s.change(collection, model.OpReset, "")
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(docs))
	for id, d := range docs {
		fields[id] = []byte(d)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(collection))
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key(collection), fields)
		}
		pipe.Publish(ctx, s.channel(), msg)
		return nil
	})
	return err
}

// Watch subscribes to the change channel. A receive failure other than ctx
// ending is sent once as a terminal Event and the stream closes.
func (s *RedisStore) Watch(ctx context.Context, collection string) (<-chan Event, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Event, 1)
	done := make(chan struct{})
	// A blocked ReceiveMessage only returns once the subscription is closed.
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = sub.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- Event{Err: &StorageError{Backend: s.Name(), Op: "watch", Err: err}}:
				case <-ctx.Done():
				}
				return
			}
			var c model.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil || c.Collection != collection {
				continue
			}
			select {
			case out <- Event{Change: c}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) change(collection string, op model.ChangeOp, id string) ([]byte, error) {
	return json.Marshal(model.Change{Collection: collection, Op: op, ID: id, At: s.now().UTC()})
}
