// Package bolt implements the TokenStore port on a bbolt key/value file.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

var tokensBucket = []byte("tokens")

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenStore)(nil)

// TokenStore keeps one token per actor kind in the "tokens" bucket.
type TokenStore struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt file at path and ensures the tokens bucket exists.
func Open(path string) (*TokenStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tokensBucket); err != nil {
			return fmt.Errorf("create tokens bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &TokenStore{db: db}, nil
}

// Get returns the token for kind, or ("", nil) when none is stored.
func (s *TokenStore) Get(ctx context.Context, kind model.ActorKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		// The value slice is only valid inside the transaction; string() copies it.
		if v := tx.Bucket(tokensBucket).Get([]byte(kind)); v != nil {
			token = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("get %s token: %w", kind, err)
	}
	return token, nil
}

// Set stores or replaces the token for kind.
func (s *TokenStore) Set(ctx context.Context, kind model.ActorKind, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Put([]byte(kind), []byte(token))
	})
	if err != nil {
		return fmt.Errorf("set %s token: %w", kind, err)
	}
	return nil
}

// Delete removes the token for kind.
func (s *TokenStore) Delete(ctx context.Context, kind model.ActorKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Delete([]byte(kind))
	})
	if err != nil {
		return fmt.Errorf("delete %s token: %w", kind, err)
	}
	return nil
}

// Close releases the database file lock.
func (s *TokenStore) Close() error {
	return s.db.Close()
}
