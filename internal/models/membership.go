package models

import "time"

// Membership joins a user to an organisation. The composite primary key
// (org_id, user_id) makes a repeated insert a no-op.
type Membership struct {
	OrgID     string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time

	Org  *Organisation `gorm:"foreignKey:OrgID;references:OrgID;constraint:OnDelete:CASCADE"`
	User *User         `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`
}
