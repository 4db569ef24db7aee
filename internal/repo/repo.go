// Package repo holds the gorm persistence layer: users, mirrors and
// the user-mirror association consumed by the access guard.
package repo

import (
	"errors"
	"sync"

	"gorm.io/gorm"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrMirrorNotFound   = errors.New("mirror not found")
	ErrMembershipExists = errors.New("user already has access to this mirror")
)

type Repo struct {
	DB *gorm.DB

	// one mutex per mirror id, serializing config read-modify-write
	// within this process
	configLocks sync.Map
}

func New(db *gorm.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) lockConfig(mirrorID uint) *sync.Mutex {
	mu, _ := r.configLocks.LoadOrStore(mirrorID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
