package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"org_membership/internal/models"
)

// GormStore implements Store on top of a *gorm.DB. The DB should be opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository                 { return gormUsers{db: s.db} }
func (s *GormStore) Organisations() OrganisationRepository { return gormOrganisations{db: s.db} }
func (s *GormStore) AuditLogs() AuditRepository            { return gormAudit{db: s.db} }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

type gormUsers struct{ db *gorm.DB }

func (r gormUsers) Create(ctx context.Context, u *models.User) error {
	return translate("create user", r.db.WithContext(ctx).Create(u).Error)
}

func (r gormUsers) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

func (r gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate("get user by email", err)
	}
	return &u, nil
}

func (r gormUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, translate("count users by email", err)
}

type gormOrganisations struct{ db *gorm.DB }

func (r gormOrganisations) Create(ctx context.Context, o *models.Organisation) error {
	return translate("create organisation", r.db.WithContext(ctx).Create(o).Error)
}

func (r gormOrganisations) GetByID(ctx context.Context, orgID string) (*models.Organisation, error) {
	var o models.Organisation
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&o).Error; err != nil {
		return nil, translate("get organisation", err)
	}
	return &o, nil
}

func (r gormOrganisations) ListForUser(ctx context.Context, userID string) ([]models.Organisation, error) {
	orgs := make([]models.Organisation, 0)
	err := r.db.WithContext(ctx).
		Model(&models.Organisation{}).
		Joins("JOIN memberships m ON m.org_id = organisations.org_id").
		Where("m.user_id = ?", userID).
		Order("m.created_at ASC, m.org_id ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, translate("list organisations", err)
	}
	return orgs, nil
}

func (r gormOrganisations) AddMember(ctx context.Context, orgID, userID string) error {
	m := models.Membership{OrgID: orgID, UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&m).Error
	return translate("add member", err)
}

func (r gormOrganisations) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	return count > 0, translate("check membership", err)
}

func (r gormOrganisations) SharesOrganisation(ctx context.Context, userA, userB string) (bool, error) {
	// JOIN memberships on itself by org_id
	var count int64
	err := r.db.WithContext(ctx).
		Table("memberships a").
		Joins("JOIN memberships b ON b.org_id = a.org_id").
		Where("a.user_id = ? AND b.user_id = ?", userA, userB).
		Count(&count).Error
	return count > 0, translate("check shared membership", err)
}

type gormAudit struct{ db *gorm.DB }

func (r gormAudit) Record(ctx context.Context, entry *models.AuditLog) error {
	return translate("record audit", r.db.WithContext(ctx).Create(entry).Error)
}

func (r gormAudit) ListForOrganisation(ctx context.Context, orgID string, afterID int64, limit int) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("org_id = ?", orgID).Order("id DESC")
	if afterID > 0 {
		query = query.Where("id < ?", afterID)
	}

	logs := make([]models.AuditLog, 0)
	if err := query.Limit(limit).Find(&logs).Error; err != nil {
		return nil, translate("list audit", err)
	}
	return logs, nil
}

// isUniqueViolation catches drivers that do not implement gorm's error
// translation.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
