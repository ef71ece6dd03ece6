package models

import (
	"time"

	"gorm.io/gorm"
)

type Organisation struct {
	OrgID       string    `gorm:"primaryKey;size:36" json:"orgId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (Organisation) TableName() string { return "organisations" }

func (o *Organisation) BeforeCreate(tx *gorm.DB) error {
	if o.OrgID == "" {
		o.OrgID = NewID()
	}
	return nil
}

// DefaultOrganisationName is the name given to the organisation created
// alongside every new user.
func DefaultOrganisationName(firstName string) string {
	return firstName + "'s Organisation"
}
