package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/jobboard-client/internal/model"
)

// Ensure Store implements the model.Store interface.
var _ model.Store = (*Store)(nil)

const scanBatch = 100

// Store keeps both scopes in redis. Durable keys are shared by every client
// of a profile; ephemeral keys are namespaced by a per-process session id and
// expire after a TTL that is refreshed on each write.
type Store struct {
	redis        redis.UniversalClient
	profile      string
	session      string
	ephemeralTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithSession pins the ephemeral namespace, e.g. to resume a session.
func WithSession(id string) Option {
	return func(s *Store) {
		s.session = id
	}
}

// New creates a redis-backed store for the given profile.
func New(client redis.UniversalClient, profile string, ephemeralTTL time.Duration, opts ...Option) *Store {
	s := &Store{
		redis:        client,
		profile:      profile,
		session:      uuid.NewString(),
		ephemeralTTL: ephemeralTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the ephemeral namespace id.
func (s *Store) Session() string {
	return s.session
}

func (s *Store) prefix(scope model.Scope) (string, error) {
	switch scope {
	case model.ScopeDurable:
		return "jobboard:" + s.profile + ":durable:", nil
	case model.ScopeEphemeral:
		return "jobboard:" + s.profile + ":ephemeral:" + s.session + ":", nil
	default:
		return "", model.ErrUnknownScope
	}
}

func (s *Store) Get(ctx context.Context, scope model.Scope, key string) (string, bool, error) {
	prefix, err := s.prefix(scope)
	if err != nil {
		return "", false, err
	}

	v, err := s.redis.Get(ctx, prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s key %q: %w", scope, key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, scope model.Scope, key, value string) error {
	prefix, err := s.prefix(scope)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if scope == model.ScopeEphemeral {
		ttl = s.ephemeralTTL
	}
	if err := s.redis.Set(ctx, prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s key %q: %w", scope, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope model.Scope, keys ...string) error {
	prefix, err := s.prefix(scope)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, prefix+k)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete %s keys: %w", scope, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, scope model.Scope) ([]string, error) {
	prefix, err := s.prefix(scope)
	if err != nil {
		return nil, err
	}

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s keys: %w", scope, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.redis.Close()
}
