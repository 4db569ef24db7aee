package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformed        = errors.New("malformed token")
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Identity is the canonical decoded claim set, trusted for the
// duration of one request.
type Identity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == "admin" }

// legacyIdentity is the claim object older clients put under the
// "email" key: {id, email, type} with type holding the role.
type legacyIdentity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

type bearerClaims struct {
	UserData *Identity       `json:"userData,omitempty"`
	Legacy   *legacyIdentity `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type appClaims struct {
	Uname string `json:"uname"`
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer tokens with a process-wide HS256
// secret injected at startup.
type Codec struct {
	Secret []byte
}

// Encode mints a token carrying identity under the canonical userData
// claim, expiring ttl from now.
func (c *Codec) Encode(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := bearerClaims{
		UserData: &identity,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.Secret)
}

// Decode verifies signature and expiry and normalizes either claim
// shape into an Identity. Shape discrimination never leaks past this
// boundary.
func (c *Codec) Decode(raw string) (Identity, error) {
	var claims bearerClaims
	t, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
			return Identity{}, ErrInvalidSignature
		default:
			return Identity{}, ErrMalformed
		}
	}
	if !t.Valid {
		return Identity{}, ErrInvalidSignature
	}

	switch {
	case claims.UserData != nil:
		return *claims.UserData, nil
	case claims.Legacy != nil:
		role := claims.Legacy.Type
		if role != "admin" {
			role = "user"
		}
		return Identity{ID: claims.Legacy.ID, Email: claims.Legacy.Email, Role: role}, nil
	default:
		return Identity{}, ErrMalformed
	}
}

// EncodeAppToken mints an unexpiring token for mirror devices. The
// uname claim must match the configured sentinel to verify.
func (c *Codec) EncodeAppToken(uname string) (string, error) {
	claims := appClaims{
		Uname: uname,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ID:       uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.Secret)
}

// VerifyAppToken reports whether raw is a valid app token whose uname
// claim equals sentinel.
func (c *Codec) VerifyAppToken(raw, sentinel string) bool {
	var claims appClaims
	t, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.Secret, nil
	})
	if err != nil || !t.Valid {
		return false
	}
	return claims.Uname == sentinel && sentinel != ""
}
