package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is an account known to the identity provider.
type User struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PrimaryEmail string         `gorm:"uniqueIndex;not null" json:"primary_email"`
	DisplayName  *string        `json:"display_name"`
	Password     string         `gorm:"not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Name is the label shown as a post's author: the display name, or the
// primary email when no display name is set.
func (u *User) Name() string {
	if u.DisplayName != nil {
		if name := strings.TrimSpace(*u.DisplayName); name != "" {
			return name
		}
	}
	return u.PrimaryEmail
}
