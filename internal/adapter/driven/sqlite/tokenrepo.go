package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo is the SQLite implementation of the TokenStore port.
// When a key is configured, token values are sealed with AES-256-GCM before
// write and opened after read; without a key they are stored as-is.
type TokenRepo struct {
	db  *DB
	key []byte
}

// NewTokenRepo creates a TokenRepo. key must be nil or 32 bytes.
func NewTokenRepo(db *DB, key []byte) (*TokenRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, driven.ErrEncryptionKeyInvalid
	}
	return &TokenRepo{db: db, key: key}, nil
}

// Set stores or replaces the token for the given actor kind.
func (r *TokenRepo) Set(ctx context.Context, kind model.ActorKind, token string) error {
	value, err := r.seal(token)
	if err != nil {
		return fmt.Errorf("seal %s token: %w", kind, err)
	}

	const query = `INSERT OR REPLACE INTO tokens (actor, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, string(kind), value); err != nil {
		return fmt.Errorf("set %s token: %w", kind, err)
	}
	return nil
}

// Get retrieves the token for the given actor kind.
// Returns ("", nil) if no token is stored.
func (r *TokenRepo) Get(ctx context.Context, kind model.ActorKind) (string, error) {
	const query = `SELECT value FROM tokens WHERE actor = ?`
	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, string(kind)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s token: %w", kind, err)
	}

	token, err := r.open(value)
	if err != nil {
		return "", fmt.Errorf("open %s token: %w", kind, err)
	}
	return token, nil
}

// Delete removes the token for the given actor kind.
func (r *TokenRepo) Delete(ctx context.Context, kind model.ActorKind) error {
	const query = `DELETE FROM tokens WHERE actor = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, string(kind)); err != nil {
		return fmt.Errorf("delete %s token: %w", kind, err)
	}
	return nil
}

// seal encrypts plaintext with AES-256-GCM and returns base64(nonce || ciphertext || tag).
func (r *TokenRepo) seal(plaintext string) (string, error) {
	if r.key == nil {
		return plaintext, nil
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open reverses seal.
func (r *TokenRepo) open(stored string) (string, error) {
	if r.key == nil {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func (r *TokenRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
