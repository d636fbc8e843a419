// Package prefs persists the resizable panel widths. Nothing else about the
// map survives a restart.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"techloc/map-core/internal/sidebar"
	"techloc/map-core/internal/sqlcgen"
)

// DefaultProfile is used when no profile name is configured.
const DefaultProfile = "default"

// Store loads and saves layout numbers. A missing record loads as the
// default layout.
type Store interface {
	LoadLayout(ctx context.Context) (sidebar.Layout, error)
	SaveLayout(ctx context.Context, layout sidebar.Layout) error
}

func profileOrDefault(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultProfile
	}
	return p
}

// LayoutQueries is the subset of *sqlcgen.Queries the Postgres store uses.
type LayoutQueries interface {
	GetLayoutPreference(ctx context.Context, profile string) (sqlcgen.LayoutPreference, error)
	UpsertLayoutPreference(ctx context.Context, arg sqlcgen.UpsertLayoutPreferenceParams) error
}

type PostgresStore struct {
	q       LayoutQueries
	profile string
}

func NewPostgresStore(q LayoutQueries, profile string) *PostgresStore {
	return &PostgresStore{q: q, profile: profileOrDefault(profile)}
}

func (s *PostgresStore) LoadLayout(ctx context.Context) (sidebar.Layout, error) {
	row, err := s.q.GetLayoutPreference(ctx, s.profile)
	if errors.Is(err, pgx.ErrNoRows) {
		return sidebar.DefaultLayout(), nil
	}
	if err != nil {
		return sidebar.DefaultLayout(), fmt.Errorf("get layout preference %s: %w", s.profile, err)
	}
	return sidebar.Layout{Left: int(row.LeftWidth), Right: int(row.RightWidth)}.Normalize(), nil
}

func (s *PostgresStore) SaveLayout(ctx context.Context, layout sidebar.Layout) error {
	l := layout.Normalize()
	err := s.q.UpsertLayoutPreference(ctx, sqlcgen.UpsertLayoutPreferenceParams{
		Profile:    s.profile,
		LeftWidth:  int32(l.Left),
		RightWidth: int32(l.Right),
	})
	if err != nil {
		return fmt.Errorf("upsert layout preference %s: %w", s.profile, err)
	}
	return nil
}

// KV is the part of a redis client the Redis store uses. *redis.Client
// satisfies it.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

const keyPrefix = "mapcore:layout:"

type RedisStore struct {
	kv  KV
	key string
	ttl time.Duration
}

// NewRedisStore stores the layout under mapcore:layout:<profile>. A zero ttl
// keeps the key forever.
func NewRedisStore(kv KV, profile string, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, key: keyPrefix + profileOrDefault(profile), ttl: ttl}
}

func (s *RedisStore) Key() string { return s.key }

// Close releases the underlying client when it owns a connection pool.
func (s *RedisStore) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *RedisStore) LoadLayout(ctx context.Context) (sidebar.Layout, error) {
	raw, err := s.kv.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return sidebar.DefaultLayout(), nil
	}
	if err != nil {
		return sidebar.DefaultLayout(), fmt.Errorf("redis get %s: %w", s.key, err)
	}
	var l sidebar.Layout
	if err := json.Unmarshal(raw, &l); err != nil {
		return sidebar.DefaultLayout(), fmt.Errorf("decode layout %s: %w", s.key, err)
	}
	return l.Normalize(), nil
}

func (s *RedisStore) SaveLayout(ctx context.Context, layout sidebar.Layout) error {
	b, err := json.Marshal(layout.Normalize())
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings once. The caller owns Close.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return c, nil
}

// MemoryStore keeps the layout in process. It is used when no backing store
// is configured.
type MemoryStore struct {
	mu     sync.Mutex
	layout *sidebar.Layout
}

func (s *MemoryStore) LoadLayout(context.Context) (sidebar.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layout == nil {
		return sidebar.DefaultLayout(), nil
	}
	return *s.layout, nil
}

func (s *MemoryStore) SaveLayout(_ context.Context, layout sidebar.Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := layout.Normalize()
	s.layout = &l
	return nil
}
