package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/phishvars/store"
)

// Store wraps a store.Store and serves FieldSummaries and VariableSummaries
// from Redis. Writes invalidate the owner's cached summaries. Redis failures
// are logged and fall through to the wrapped store.
type Store struct {
	store.Store
	cache  *RedisCache
	logger *slog.Logger
}

// NewStore wraps s with cache.
func NewStore(s store.Store, cache *RedisCache) *Store {
	return &Store{Store: s, cache: cache, logger: cache.logger}
}

func fieldsKey(uid int64) string    { return fmt.Sprintf("summary:fields:%d", uid) }
func variablesKey(uid int64) string { return fmt.Sprintf("summary:variables:%d", uid) }

func (s *Store) FieldSummaries(ctx context.Context, uid int64) (store.FieldSummaries, error) {
	return readThrough(ctx, s, fieldsKey(uid), func() (store.FieldSummaries, error) {
		return s.Store.FieldSummaries(ctx, uid)
	})
}

func (s *Store) VariableSummaries(ctx context.Context, uid int64) (store.VariableSummaries, error) {
	return readThrough(ctx, s, variablesKey(uid), func() (store.VariableSummaries, error) {
		return s.Store.VariableSummaries(ctx, uid)
	})
}

func readThrough[T any](ctx context.Context, s *Store, key string, load func() (T, error)) (T, error) {
	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
		s.logger.Warn("discarding undecodable cache entry", "key", key)
	} else if !errors.Is(err, ErrMiss) {
		s.logger.Warn("summary cache read failed", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := s.cache.Set(ctx, key, string(data)); err != nil {
		s.logger.Warn("summary cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// invalidate drops the cached summaries of uid. Field writes touch both
// kinds because variable summaries show the field name.
func (s *Store) invalidate(ctx context.Context, uid int64, fields bool) {
	keys := []string{variablesKey(uid)}
	if fields {
		keys = append(keys, fieldsKey(uid))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("summary cache invalidation failed", "user_id", uid, "error", err)
	}
}

func (s *Store) CreateField(ctx context.Context, f *store.Field) error {
	if err := s.Store.CreateField(ctx, f); err != nil {
		return err
	}
	s.invalidate(ctx, f.UserID, true)
	return nil
}

func (s *Store) UpdateField(ctx context.Context, f *store.Field) error {
	if err := s.Store.UpdateField(ctx, f); err != nil {
		return err
	}
	s.invalidate(ctx, f.UserID, true)
	return nil
}

func (s *Store) DeleteField(ctx context.Context, uid, id int64) error {
	if err := s.Store.DeleteField(ctx, uid, id); err != nil {
		return err
	}
	s.invalidate(ctx, uid, true)
	return nil
}

func (s *Store) CreateVariable(ctx context.Context, v *store.Variable) error {
	if err := s.Store.CreateVariable(ctx, v); err != nil {
		return err
	}
	s.invalidate(ctx, v.UserID, false)
	return nil
}

func (s *Store) UpdateVariable(ctx context.Context, v *store.Variable) error {
	if err := s.Store.UpdateVariable(ctx, v); err != nil {
		return err
	}
	s.invalidate(ctx, v.UserID, false)
	return nil
}

func (s *Store) DeleteVariable(ctx context.Context, uid, id int64) error {
	if err := s.Store.DeleteVariable(ctx, uid, id); err != nil {
		return err
	}
	s.invalidate(ctx, uid, false)
	return nil
}

// Close closes the wrapped store and the Redis connection.
func (s *Store) Close() error {
	return errors.Join(s.Store.Close(), s.cache.Close())
}
