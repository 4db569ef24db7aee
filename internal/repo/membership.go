package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mirrorstack/mirror_server/internal/models"
)

func (r *Repo) HasMembership(ctx context.Context, userID, mirrorID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.UserMirror{}).
		Where("user_id = ? AND mirror_id = ?", userID, mirrorID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repo) CountMembers(ctx context.Context, mirrorID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.UserMirror{}).
		Where("mirror_id = ?", mirrorID).
		Count(&count).Error
	return count, err
}

func (r *Repo) AddMembership(ctx context.Context, userID, mirrorID uint) error {
	existing, err := r.HasMembership(ctx, userID, mirrorID)
	if err != nil {
		return err
	}
	if existing {
		return ErrMembershipExists
	}
	return r.DB.WithContext(ctx).Create(&models.UserMirror{UserID: userID, MirrorID: mirrorID}).Error
}

func (r *Repo) RemoveMembership(ctx context.Context, userID, mirrorID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND mirror_id = ?", userID, mirrorID).
		Delete(&models.UserMirror{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MirrorMembers returns the users holding a membership for the mirror.
func (r *Repo) MirrorMembers(ctx context.Context, mirrorID uint) ([]models.User, error) {
	var users []models.User
	err := r.DB.WithContext(ctx).
		Joins("JOIN user_mirrors ON user_mirrors.user_id = users.id").
		Where("user_mirrors.mirror_id = ?", mirrorID).
		Find(&users).Error
	return users, err
}

// RemoveAccess drops the caller's membership and, when that was the
// last one, the mirror row itself, as one transaction. Re-invoking on
// an orphaned mirror (zero members, row still present) cleans it up,
// which makes the operation retry-safe after a crash between the two
// deletes. The returned bool reports whether the mirror row was
// removed.
func (r *Repo) RemoveAccess(ctx context.Context, userID, mirrorID uint) (bool, error) {
	mirrorDeleted := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND mirror_id = ?", userID, mirrorID).
			Delete(&models.UserMirror{}).Error; err != nil {
			return err
		}
		var remaining int64
		if err := tx.Model(&models.UserMirror{}).
			Where("mirror_id = ?", mirrorID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.Delete(&models.Mirror{}, mirrorID).Error; err != nil {
				return err
			}
			mirrorDeleted = true
		}
		return nil
	})
	return mirrorDeleted, err
}

// DeleteMirrorIfOrphaned removes a mirror row that no membership
// references anymore. No-op when members remain or the row is gone.
func (r *Repo) DeleteMirrorIfOrphaned(ctx context.Context, mirrorID uint) (bool, error) {
	deleted := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserMirror{}).
			Where("mirror_id = ?", mirrorID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		res := tx.Delete(&models.Mirror{}, mirrorID)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return deleted, err
}
