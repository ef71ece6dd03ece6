package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActionUserRegister = "users.register"
	ActionUserLogin    = "users.login"
	ActionOrgCreate    = "organisations.create"
	ActionOrgAddMember = "organisations.add_user"
)

// AuditLog records who did what. OrgID is empty for account-level actions
// such as login.
type AuditLog struct {
	ID           int64          `gorm:"primaryKey" json:"id"`
	OrgID        string         `gorm:"size:36;index" json:"orgId,omitempty"`
	UserID       string         `gorm:"size:36;index" json:"userId,omitempty"`
	Action       string         `gorm:"size:200;not null" json:"action"`
	ResourceType string         `gorm:"size:100" json:"resourceType,omitempty"`
	ResourceID   string         `gorm:"size:36" json:"resourceId,omitempty"`
	Metadata     datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`
	IP           string         `gorm:"size:64" json:"ip,omitempty"`
	UserAgent    string         `gorm:"size:255" json:"userAgent,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
