package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// APIKey grants bearer access to one user's fields and variables.
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`          // SHA-256 hash, never exposed
	KeyPrefix  string     `json:"key_prefix"` // first 8 chars for identification
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore defines persistence operations for API keys.
type APIKeyStore interface {
	// CreateAPIKey generates a key for key.UserID and returns the raw key.
	// The raw key is only available at creation time.
	CreateAPIKey(ctx context.Context, key *APIKey) (rawKey string, err error)
	// EnsureAPIKey stores a caller-chosen raw key if its hash is unknown.
	EnsureAPIKey(ctx context.Context, key *APIKey, rawKey string) error
	ListAPIKeys(ctx context.Context, uid int64) ([]APIKey, error)
	DeleteAPIKey(ctx context.Context, uid, id int64) error
	// ValidateAPIKey hashes the raw key and looks up the matching key.
	// Returns ErrNotFound if no key matches.
	ValidateAPIKey(ctx context.Context, rawKey string) (*APIKey, error)
}

// apiKeyPrefix is the prefix for all generated API keys.
const apiKeyPrefix = "pv_"

// generateRawKey creates a new raw API key: "pv_" + 32 random hex chars.
func generateRawKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

// hashKey returns the SHA-256 hex digest of a raw API key.
func hashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}

func keyPrefix(rawKey string) string {
	if len(rawKey) <= 8 {
		return rawKey
	}
	return rawKey[:8]
}

// constantTimeHashCompare compares two hex-encoded hashes in constant time.
func constantTimeHashCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// InMemoryAPIKeyStore is a thread-safe in-memory implementation of APIKeyStore.
type InMemoryAPIKeyStore struct {
	mu     sync.Mutex
	nextID int64
	keys   map[int64]*APIKey
}

// NewInMemoryAPIKeyStore creates a new InMemoryAPIKeyStore.
func NewInMemoryAPIKeyStore() *InMemoryAPIKeyStore {
	return &InMemoryAPIKeyStore{keys: make(map[int64]*APIKey)}
}

func (s *InMemoryAPIKeyStore) CreateAPIKey(ctx context.Context, key *APIKey) (string, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return "", err
	}
	if err := s.EnsureAPIKey(ctx, key, rawKey); err != nil {
		return "", err
	}
	return rawKey, nil
}

func (s *InMemoryAPIKeyStore) EnsureAPIKey(_ context.Context, key *APIKey, rawKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := hashKey(rawKey)
	for _, k := range s.keys {
		if constantTimeHashCompare(k.KeyHash, h) {
			*key = *k
			return nil
		}
	}
	s.nextID++
	key.ID = s.nextID
	key.KeyHash = h
	key.KeyPrefix = keyPrefix(rawKey)
	key.CreatedAt = time.Now().UTC()
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *InMemoryAPIKeyStore) ListAPIKeys(_ context.Context, uid int64) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := []APIKey{}
	for _, k := range s.keys {
		if k.UserID == uid {
			results = append(results, *k)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (s *InMemoryAPIKeyStore) DeleteAPIKey(_ context.Context, uid, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.UserID != uid {
		return ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

func (s *InMemoryAPIKeyStore) ValidateAPIKey(_ context.Context, rawKey string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := hashKey(rawKey)
	for _, k := range s.keys {
		if constantTimeHashCompare(k.KeyHash, h) {
			now := time.Now().UTC()
			k.LastUsedAt = &now
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
