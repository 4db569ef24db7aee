// Package access decides who may act on which mirror. It is pure
// policy over the ownership store; handlers translate its errors into
// HTTP status codes.
package access

import (
	"context"
	"errors"

	"github.com/mirrorstack/mirror_server/internal/token"
)

var (
	ErrForbidden = errors.New("access denied to this mirror")
	ErrNotFound  = errors.New("mirror not found")
	ErrAdminOnly = errors.New("only an administrator may change roles")
)

type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionDelete
	ActionManageUsers
	ActionChangeRole
)

// OwnershipStore is the membership view the guard depends on.
type OwnershipStore interface {
	HasMembership(ctx context.Context, userID, mirrorID uint) (bool, error)
	CountMembers(ctx context.Context, mirrorID uint) (int64, error)
	MirrorExists(ctx context.Context, mirrorID uint) (bool, error)
}

type Guard struct {
	Store OwnershipStore
}

// Authorize evaluates the rules in precedence order: the admin-only
// gate for role changes, the admin read override, then membership
// before mirror existence. Checking membership first keeps the answer
// for a non-member identical whether or not the mirror exists.
func (g *Guard) Authorize(ctx context.Context, identity token.Identity, mirrorID uint, action Action) error {
	if action == ActionChangeRole {
		if !identity.IsAdmin() {
			return ErrAdminOnly
		}
		return nil
	}

	if action == ActionRead && identity.IsAdmin() {
		return g.requireMirror(ctx, mirrorID)
	}

	member, err := g.Store.HasMembership(ctx, identity.ID, mirrorID)
	if err != nil {
		return err
	}
	if !member {
		if action == ActionDelete {
			// Orphan cleanup: a crash between the membership delete
			// and the mirror delete leaves a zero-member row behind;
			// re-invoking delete must still clean it up.
			return g.requireOrphan(ctx, mirrorID)
		}
		return ErrForbidden
	}

	return g.requireMirror(ctx, mirrorID)
}

func (g *Guard) requireMirror(ctx context.Context, mirrorID uint) error {
	exists, err := g.Store.MirrorExists(ctx, mirrorID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (g *Guard) requireOrphan(ctx context.Context, mirrorID uint) error {
	exists, err := g.Store.MirrorExists(ctx, mirrorID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrForbidden
	}
	count, err := g.Store.CountMembers(ctx, mirrorID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrForbidden
	}
	return nil
}
