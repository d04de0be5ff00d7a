package cache

import (
	"bytes"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the entity read expiry when none is configured
const DefaultTTL = 300 * time.Second

// KeySeparator joins the type name and the id in cache keys
const KeySeparator = "::"

// Loader fetches the authoritative value on a cache miss
type Loader[T any] func(ctx context.Context) (T, error)

// Service is a cache-aside helper keyed by (type name, id). The backing store
// is never a source of failure for callers: any store error is logged and the
// loader result is used instead.
type Service struct {
	store  Store
	logger *zap.Logger
	group  *singleflight.Group
	ttl    time.Duration
}

type Option func(*Service)

// WithSingleFlight collapses concurrent misses on the same key into one loader call
func WithSingleFlight() Option {
	return func(s *Service) {
		s.group = &singleflight.Group{}
	}
}

// WithTTL overrides DefaultTTL as the value returned by TTL
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if store == nil {
		store = NopStore{}
	}
	s := &Service{store: store, logger: logger, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL is the configured expiry for entity reads
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func Key(typeName string, id uuid.UUID) string {
	return typeName + KeySeparator + id.String()
}

// GetOrSet returns the cached value for (typeName, id) or calls loader, caches its
// result for ttl and returns it. Loader errors are returned unchanged and never cached.
func GetOrSet[T any](ctx context.Context, s *Service, typeName string, id uuid.UUID, loader Loader[T], ttl time.Duration) (T, error) {
	key := Key(typeName, id)

	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Cache read failed, falling back to loader", zap.String("key", key), zap.Error(err))
		return loader(ctx)
	}

	if found {
		var value T
		err := decode(data, &value)
		if err == nil {
			return value, nil
		}
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
	}

	if s.group == nil {
		return loadAndStore(ctx, s, key, loader, ttl)
	}

	shared, err, _ := s.group.Do(key, func() (any, error) {
		return loadAndStore(ctx, s, key, loader, ttl)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return shared.(T), nil
}

func loadAndStore[T any](ctx context.Context, s *Service, key string, loader Loader[T], ttl time.Duration) (T, error) {
	value, err := loader(ctx)
	if err != nil {
		return value, err
	}

	data, err := encode(value)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return value, nil
	}

	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}

	return value, nil
}

// Invalidate removes the entry for (typeName, id). Failures are logged only.
func (s *Service) Invalidate(ctx context.Context, typeName string, id uuid.UUID) {
	key := Key(typeName, id)
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// Values are msgpack encoded using the json struct tags so that fields hidden
// from API responses are never written to the cache either.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return err
	}
	toUTC(reflect.ValueOf(v))
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// toUTC moves every reachable time.Time into UTC. msgpack decodes timestamps in
// the local zone, while repositories hand out UTC.
func toUTC(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			toUTC(v.Elem())
		}
	case reflect.Struct:
		if v.Type() == timeType {
			if v.CanSet() {
				v.Set(reflect.ValueOf(v.Interface().(time.Time).UTC()))
			}
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				toUTC(v.Field(i))
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			toUTC(v.Index(i))
		}
	}
}
