// Package secrets stores feed credentials, sealed at rest. The feed record
// itself only ever carries an AuthKind; payloads live here, keyed by feed ID.
package secrets

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"feedkeep/internal/kvstore"
	"feedkeep/internal/model"
)

const nonceSize = 24

var ErrNotFound = errors.New("secret not found")

type Store struct {
	kv  kvstore.Store
	key [32]byte
}

// New derives the sealing key from the configured secret. An empty secret
// still seals (with a fixed derivation) so the on-disk format never changes.
func New(kv kvstore.Store, secretKey string) *Store {
	return &Store{kv: kv, key: sha256.Sum256([]byte("feedkeep/secrets:" + secretKey))}
}

func secretKeyFor(feedID int64) string {
	return fmt.Sprintf("secret/%d", feedID)
}

func (s *Store) Save(ctx context.Context, feedID int64, payload []byte) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], payload, &nonce, &s.key)
	return s.kv.Set(ctx, secretKeyFor(feedID), sealed)
}

func (s *Store) Load(ctx context.Context, feedID int64) ([]byte, error) {
	sealed, err := s.kv.Get(ctx, secretKeyFor(feedID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed payload too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	payload, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed payload corrupt or wrong key")
	}
	return payload, nil
}

func (s *Store) Delete(ctx context.Context, feedID int64) error {
	return s.kv.Delete(ctx, secretKeyFor(feedID))
}

// AuthHeader resolves a feed's credential to an Authorization header value.
// Basic payloads are the raw "user:password" pair; bearer payloads are the
// token itself. Returns "" for AuthNone or a missing secret.
func (s *Store) AuthHeader(ctx context.Context, feed model.Feed) (string, error) {
	switch feed.Auth {
	case "", model.AuthNone:
		return "", nil
	}
	payload, err := s.Load(ctx, feed.ID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	switch feed.Auth {
	case model.AuthBasic:
		return "Basic " + base64.StdEncoding.EncodeToString(payload), nil
	case model.AuthBearer:
		return "Bearer " + string(payload), nil
	}
	return "", nil
}
