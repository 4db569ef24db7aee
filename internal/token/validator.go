package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingToken    = errors.New("a token is required for authentication")
	ErrMalformedHeader = errors.New("malformed authorization header")
	ErrRevoked         = errors.New("token has been revoked")
	ErrUnauthorized    = errors.New("invalid bearer token")
)

// RevocationChecker is the read side of the revocation set, consulted
// with the raw token string.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

// Validator turns an Authorization header value into an Identity. It
// is stateless aside from the injected revocation set.
type Validator struct {
	Codec   *Codec
	Revoked RevocationChecker
}

// Validate parses a "<scheme> <token>" header, rejects revoked tokens
// before any decoded claim is trusted, then delegates to the codec.
// Codec failures all surface as ErrUnauthorized.
func (v *Validator) Validate(ctx context.Context, header string) (Identity, error) {
	if strings.TrimSpace(header) == "" {
		return Identity{}, ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return Identity{}, ErrMalformedHeader
	}
	raw := parts[1]

	if v.Revoked != nil {
		revoked, err := v.Revoked.IsRevoked(ctx, raw)
		if err != nil {
			return Identity{}, err
		}
		if revoked {
			return Identity{}, ErrRevoked
		}
	}

	identity, err := v.Codec.Decode(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return identity, nil
}
