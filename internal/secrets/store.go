package secrets

import (
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const keysBucket = "keys"

// BoltStore keeps one API key per provider in its own bbolt file
type BoltStore struct {
	db       *bbolt.DB
	defaults map[string]string
}

// NewBoltStore opens the key file at path. defaults are returned for providers
// that have nothing stored, e.g. keys supplied through flags or the environment.
func NewBoltStore(path string, defaults map[string]string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening key store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(keysBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating key bucket: %w", err)
	}

	normalized := make(map[string]string, len(defaults))
	for provider, key := range defaults {
		if key = strings.TrimSpace(key); key != "" {
			normalized[norm(provider)] = key
		}
	}

	return &BoltStore{db: db, defaults: normalized}, nil
}

// ProviderKey returns the stored key, the configured default, or "" when neither exists
func (s *BoltStore) ProviderKey(provider string) (string, error) {
	provider = norm(provider)
	if provider == "" {
		return "", fmt.Errorf("provider required")
	}

	var key string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(keysBucket)).Get([]byte(provider)); v != nil {
			key = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	if key == "" {
		key = s.defaults[provider]
	}
	return key, nil
}

// SetProviderKey stores key for provider, replacing any previous one
func (s *BoltStore) SetProviderKey(provider, key string) error {
	provider = norm(provider)
	if provider == "" {
		return fmt.Errorf("provider required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(keysBucket)).Put([]byte(provider), []byte(key))
	})
}

// DeleteProviderKey removes the stored key for provider. Configured defaults still apply.
func (s *BoltStore) DeleteProviderKey(provider string) error {
	provider = norm(provider)
	if provider == "" {
		return fmt.Errorf("provider required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(keysBucket)).Delete([]byte(provider))
	})
}

// DeleteAll removes every stored key
func (s *BoltStore) DeleteAll() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(keysBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(keysBucket))
		return err
	})
}

// Close closes the key file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
