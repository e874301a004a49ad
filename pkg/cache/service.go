package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agora-social/agora/pkg/interfaces"
)

// TTLClass names the lifetime class of a cache record.
type TTLClass int

const (
	TTLEntity TTLClass = iota
	TTLList
	TTLBulk
	TTLSearch
)

func (c TTLClass) String() string {
	switch c {
	case TTLEntity:
		return "entity"
	case TTLList:
		return "list"
	case TTLBulk:
		return "bulk"
	case TTLSearch:
		return "search"
	default:
		return "unknown"
	}
}

// TTLs holds the default lifetime of each TTLClass.
type TTLs struct {
	Entity time.Duration
	List   time.Duration
	Bulk   time.Duration
	Search time.Duration
}

// For returns the TTL of class c.
func (t TTLs) For(c TTLClass) time.Duration {
	switch c {
	case TTLList:
		return t.List
	case TTLBulk:
		return t.Bulk
	case TTLSearch:
		return t.Search
	default:
		return t.Entity
	}
}

// DefaultTTLs mirrors the configuration defaults.
func DefaultTTLs() TTLs {
	return TTLs{
		Entity: time.Hour,
		List:   5 * time.Minute,
		Bulk:   10 * time.Minute,
		Search: 10 * time.Minute,
	}
}

// Service is the fail-open CacheStore used by cached repositories.
// Values are JSON encoded; TTLs are applied in whole seconds.
type Service struct {
	backend Backend
	enabled bool
	ttls    TTLs
	logger  interfaces.Logger
}

var _ interfaces.CacheStore = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithEnabled toggles caching. A disabled Service performs no I/O at all.
func WithEnabled(enabled bool) Option {
	return func(s *Service) { s.enabled = enabled }
}

// WithTTLs sets the TTL class defaults.
func WithTTLs(ttls TTLs) Option {
	return func(s *Service) { s.ttls = ttls }
}

// NewService builds a Service over backend.
func NewService(backend Backend, logger interfaces.Logger, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		enabled: true,
		ttls:    DefaultTTLs(),
		logger:  logger.WithFields(interfaces.String("component", "cache")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether caching is active.
func (s *Service) Enabled() bool { return s.enabled }

// TTL returns the configured lifetime of class c.
func (s *Service) TTL(c TTLClass) time.Duration { return s.ttls.For(c) }

func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	if !s.enabled {
		return false
	}
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.logger.Warn("cache get failed", interfaces.String("key", key), interfaces.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cache decode failed", interfaces.String("key", key), interfaces.Error(err))
		return false
	}
	return true
}

func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !s.enabled {
		return true
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", interfaces.String("key", key), interfaces.Error(err))
		return false
	}
	if err := s.backend.Set(ctx, key, raw, wholeSeconds(ttl)); err != nil {
		s.logger.Warn("cache set failed", interfaces.String("key", key), interfaces.Error(err))
		return false
	}
	return true
}

func (s *Service) Del(ctx context.Context, keys ...string) bool {
	if !s.enabled || len(keys) == 0 {
		return true
	}
	if _, err := s.backend.Del(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", interfaces.Strings("keys", keys), interfaces.Error(err))
		return false
	}
	return true
}

func (s *Service) DelPattern(ctx context.Context, pattern string) int64 {
	if !s.enabled {
		return 0
	}
	n, err := s.backend.DelPattern(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache pattern delete failed",
			interfaces.String("pattern", pattern),
			interfaces.Int64("removed", n),
			interfaces.Error(err))
	}
	return n
}

func (s *Service) Exists(ctx context.Context, key string) bool {
	if !s.enabled {
		return false
	}
	ok, err := s.backend.Exists(ctx, key)
	if err != nil {
		s.logger.Warn("cache exists failed", interfaces.String("key", key), interfaces.Error(err))
		return false
	}
	return ok
}

func (s *Service) MGet(ctx context.Context, keys []string) []json.RawMessage {
	out := make([]json.RawMessage, len(keys))
	if !s.enabled || len(keys) == 0 {
		return out
	}
	vals, err := s.backend.MGet(ctx, keys)
	if err != nil {
		s.logger.Warn("cache mget failed", interfaces.Int("keys", len(keys)), interfaces.Error(err))
		return out
	}
	for i := range out {
		if i < len(vals) && vals[i] != nil {
			out[i] = json.RawMessage(vals[i])
		}
	}
	return out
}

func (s *Service) MSet(ctx context.Context, entries []interfaces.CacheEntry) bool {
	if !s.enabled || len(entries) == 0 {
		return true
	}
	raw := make([]RawEntry, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e.Value)
		if err != nil {
			s.logger.Warn("cache encode failed", interfaces.String("key", e.Key), interfaces.Error(err))
			return false
		}
		raw = append(raw, RawEntry{Key: e.Key, Value: b, TTL: wholeSeconds(e.TTL)})
	}
	if err := s.backend.MSet(ctx, raw); err != nil {
		s.logger.Warn("cache mset failed", interfaces.Int("entries", len(raw)), interfaces.Error(err))
		return false
	}
	return true
}

// Ping checks the backend regardless of the enabled flag.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend. Only the process that built the Service calls it.
func (s *Service) Close() error {
	return s.backend.Close()
}

func wholeSeconds(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl.Truncate(time.Second)
}
