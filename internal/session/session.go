package session

import (
	"context"
	"errors"
	"time"

	"github.com/mirrorstack/mirror_server/internal/hash"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/models"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/revocation"
	"github.com/mirrorstack/mirror_server/internal/token"
)

// ErrInvalidCredentials covers both an unknown email and a wrong
// password, so login responses never reveal which accounts exist.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Issuer struct {
	Repo    *repo.Repo
	Codec   *token.Codec
	Revoked revocation.Store
	TTL     time.Duration
}

type LoginResult struct {
	Token string
	User  *models.User
}

// Login verifies credentials (email lookup is case-insensitive),
// touches the last-login timestamp and mints a bearer token with the
// default lifetime.
func (s *Issuer) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if err := s.Repo.TouchLastLogin(ctx, user.ID); err != nil {
		l.Warn("last_login_update_failed", "user_id", user.ID, "error", err)
	}

	identity := token.Identity{ID: user.ID, Email: user.Email, Role: user.Role()}
	signed, err := s.Codec.Encode(identity, s.TTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: signed, User: user}, nil
}

// Logout adds the raw token to the revocation set. Revocation keeps
// the natural expiry so the row can be pruned once the token would no
// longer verify anyway.
func (s *Issuer) Logout(ctx context.Context, raw string, userID uint) error {
	return s.Revoked.Revoke(ctx, raw, userID, time.Now().Add(s.TTL))
}
