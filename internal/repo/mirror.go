package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mirrorstack/mirror_server/internal/mirrorcfg"
	"github.com/mirrorstack/mirror_server/internal/models"
)

// CreateMirror inserts the mirror and the creator's membership row in
// one transaction so a mirror never exists without a member.
func (r *Repo) CreateMirror(ctx context.Context, m *models.Mirror, ownerID uint) error {
	m.LastUpdate = time.Now()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserMirror{UserID: ownerID, MirrorID: m.ID}).Error
	})
}

func (r *Repo) FindMirror(ctx context.Context, id uint) (*models.Mirror, error) {
	var mirror models.Mirror
	err := r.DB.WithContext(ctx).First(&mirror, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMirrorNotFound
		}
		return nil, err
	}
	return &mirror, nil
}

func (r *Repo) MirrorExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Mirror{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MirrorsForUser returns the mirrors the user holds a membership for.
func (r *Repo) MirrorsForUser(ctx context.Context, userID uint) ([]models.Mirror, error) {
	var mirrors []models.Mirror
	err := r.DB.WithContext(ctx).
		Joins("JOIN user_mirrors ON user_mirrors.mirror_id = mirrors.id").
		Where("user_mirrors.user_id = ?", userID).
		Find(&mirrors).Error
	return mirrors, err
}

// MirrorsByIDs resolves index hits against the database, preserving
// only mirrors that still exist.
func (r *Repo) MirrorsByIDs(ctx context.Context, ids []uint) ([]models.Mirror, error) {
	if len(ids) == 0 {
		return []models.Mirror{}, nil
	}
	var mirrors []models.Mirror
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&mirrors).Error
	return mirrors, err
}

// AllMirrors is the admin listing.
func (r *Repo) AllMirrors(ctx context.Context) ([]models.Mirror, error) {
	var mirrors []models.Mirror
	err := r.DB.WithContext(ctx).Find(&mirrors).Error
	return mirrors, err
}

type MirrorUpdate struct {
	Name      *string
	Config    *string
	IPAddress *string
}

func (r *Repo) UpdateMirror(ctx context.Context, id uint, upd MirrorUpdate) (*models.Mirror, error) {
	fields := map[string]interface{}{"last_update": time.Now()}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Config != nil {
		fields["config"] = *upd.Config
	}
	if upd.IPAddress != nil {
		fields["ip_address"] = *upd.IPAddress
	}
	res := r.DB.WithContext(ctx).Model(&models.Mirror{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrMirrorNotFound
	}
	return r.FindMirror(ctx, id)
}

// UpdateConfig runs mutate over the parsed config document under the
// mirror's write lock, then persists the result and bumps lastUpdate.
// The returned bool reports a corrupt stored document that degraded to
// the empty one.
func (r *Repo) UpdateConfig(ctx context.Context, id uint, mutate func(*mirrorcfg.Document) error) (*models.Mirror, bool, error) {
	mu := r.lockConfig(id)
	mu.Lock()
	defer mu.Unlock()

	mirror, err := r.FindMirror(ctx, id)
	if err != nil {
		return nil, false, err
	}
	doc, fellBack := mirrorcfg.Parse(mirror.Config)
	if err := mutate(&doc); err != nil {
		return nil, fellBack, err
	}
	raw, err := mirrorcfg.Serialize(doc)
	if err != nil {
		return nil, fellBack, err
	}
	mirror.Config = raw
	mirror.LastUpdate = time.Now()
	if err := r.DB.WithContext(ctx).Model(&models.Mirror{}).Where("id = ?", id).
		Updates(map[string]interface{}{"config": raw, "last_update": mirror.LastUpdate}).Error; err != nil {
		return nil, fellBack, err
	}
	return mirror, fellBack, nil
}
