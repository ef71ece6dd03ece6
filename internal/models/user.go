package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. The password hash never leaves the server.
type User struct {
	UserID       string    `gorm:"primaryKey;size:36" json:"userId"`
	FirstName    string    `gorm:"size:100;not null" json:"firstName"`
	LastName     string    `gorm:"size:100;not null" json:"lastName"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Phone        string    `gorm:"size:32" json:"phone"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = NewID()
	}
	return nil
}
