// Package revocation maintains the set of bearer tokens invalidated
// before their natural expiry. Tokens are stored hashed so the raw
// credential never lands in the database.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mirrorstack/mirror_server/internal/models"
)

type Store interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
	Revoke(ctx context.Context, raw string, userID uint, expiresAt time.Time) error
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// GormStore backs the revocation set with the revoked_tokens table, so
// a logout is visible to every process sharing the database as soon as
// the insert commits.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) IsRevoked(ctx context.Context, raw string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("token = ?", sha256Hex(raw)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) Revoke(ctx context.Context, raw string, userID uint, expiresAt time.Time) error {
	row := models.RevokedToken{
		Token:     sha256Hex(raw),
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	err := s.DB.WithContext(ctx).Create(&row).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// Prune drops rows whose token would no longer verify anyway.
func (s *GormStore) Prune(ctx context.Context) error {
	return s.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.RevokedToken{}).Error
}

// MemoryStore is the in-process implementation used in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]time.Time)}
}

func (s *MemoryStore) IsRevoked(_ context.Context, raw string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[sha256Hex(raw)]
	return ok, nil
}

func (s *MemoryStore) Revoke(_ context.Context, raw string, _ uint, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[sha256Hex(raw)] = expiresAt
	return nil
}
