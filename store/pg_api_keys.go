package store

import (
	"context"
	"fmt"
)

const pgAPIKeySelect = `SELECT id, user_id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys`

func (s *PGStore) CreateAPIKey(ctx context.Context, key *APIKey) (string, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return "", err
	}
	if err := s.EnsureAPIKey(ctx, key, rawKey); err != nil {
		return "", err
	}
	return rawKey, nil
}

func (s *PGStore) EnsureAPIKey(ctx context.Context, key *APIKey, rawKey string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (user_id, name, key_hash, key_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (key_hash) DO NOTHING`,
		key.UserID, key.Name, hashKey(rawKey), keyPrefix(rawKey), s.now())
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	err = s.pool.QueryRow(ctx, pgAPIKeySelect+` WHERE key_hash = $1`, hashKey(rawKey)).
		Scan(&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.CreatedAt, &key.LastUsedAt)
	if err != nil {
		return notFound(err, "get api key")
	}
	return nil
}

func (s *PGStore) ListAPIKeys(ctx context.Context, uid int64) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx, pgAPIKeySelect+` WHERE user_id = $1 ORDER BY id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()
	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *PGStore) DeleteAPIKey(ctx context.Context, uid, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, uid)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ValidateAPIKey(ctx context.Context, rawKey string) (*APIKey, error) {
	var k APIKey
	err := s.pool.QueryRow(ctx, `
		UPDATE api_keys SET last_used_at = $2 WHERE key_hash = $1
		RETURNING id, user_id, name, key_hash, key_prefix, created_at, last_used_at`,
		hashKey(rawKey), s.now()).
		Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt)
	if err != nil {
		return nil, notFound(err, "validate api key")
	}
	return &k, nil
}
