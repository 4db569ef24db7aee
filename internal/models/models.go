package models

import (
	"time"
)

type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"unique;not null;size:100" json:"email"`
	PasswordHash string     `gorm:"not null"                 json:"-"`
	FirstName    string     `gorm:"size:50"                  json:"first_name,omitempty"`
	LastName     string     `gorm:"size:50"                  json:"last_name,omitempty"`
	IsAdmin      bool       `gorm:"default:false"            json:"is_admin"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Mirror's Config column is a free-form JSON document holding the
// mirror status and widget list, see internal/mirrorcfg.
type Mirror struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"not null;size:50"         json:"name"`
	Config     string    `gorm:"type:text"                json:"config,omitempty"`
	IPAddress  string    `gorm:"size:50"                  json:"ip_address,omitempty"`
	LastUpdate time.Time `json:"last_update"`
}

// UserMirror links a user to a mirror they may act on. One row per
// (user, mirror) pair.
type UserMirror struct {
	ID       uint `gorm:"primaryKey;autoIncrement"                   json:"id"`
	UserID   uint `gorm:"not null;index;uniqueIndex:idx_user_mirror" json:"user_id"`
	MirrorID uint `gorm:"not null;index;uniqueIndex:idx_user_mirror" json:"mirror_id"`
}

// RevokedToken holds tokens invalidated before their natural expiry
// (logout). Token is the sha256 hex of the raw bearer token; rows past
// ExpiresAt may be pruned.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"token"`
	UserID    uint      `gorm:"index"                json:"user_id"`
	ExpiresAt time.Time `gorm:"index;not null"       json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
