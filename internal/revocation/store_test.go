package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mirrorstack/mirror_server/internal/models"
)

func newGormStore(t *testing.T) *GormStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RevokedToken{}))
	return &GormStore{DB: db}
}

func TestGormStoreRevoke(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "some-token")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "some-token", 1, time.Now().Add(time.Hour)))

	revoked, err = s.IsRevoked(ctx, "some-token")
	require.NoError(t, err)
	require.True(t, revoked)

	// a different token is still fine
	revoked, err = s.IsRevoked(ctx, "another-token")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestGormStorePrune(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "stale", 1, time.Now().Add(-time.Hour)))
	require.NoError(t, s.Revoke(ctx, "live", 1, time.Now().Add(time.Hour)))

	require.NoError(t, s.Prune(ctx))

	revoked, err := s.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	require.False(t, revoked)

	revoked, err = s.IsRevoked(ctx, "live")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "tok", 1, time.Now().Add(time.Hour)))

	revoked, err = s.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.True(t, revoked)
}
