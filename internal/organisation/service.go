// Package organisation enforces membership-based access to user profiles
// and organisations, and performs every membership mutation.
package organisation

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"org_membership/internal/apperr"
	"org_membership/internal/audit"
	"org_membership/internal/metrics"
	"org_membership/internal/models"
	"org_membership/internal/rbac"
	"org_membership/internal/repository"
)

const (
	msgUserNotFound    = "User not found"
	msgOrgNotFound     = "Organisation not found"
	msgCannotViewUser  = "You don't have permission to view this user"
	msgCannotViewOrg   = "You don't have permission to view this organisation"
	msgCannotAddToOrg  = "You don't have permission to add users to this organisation"
	msgCannotViewAudit = "You don't have permission to view this organisation's audit log"

	DefaultAuditLimit = 20
	MaxAuditLimit     = 100
)

type Service struct {
	store   repository.Store
	checker rbac.Checker
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(store repository.Store, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		checker: rbac.Checker{Memberships: store.Organisations()},
		metrics: m,
		log:     log.With().Str("component", "organisation").Logger(),
	}
}

// GetUser returns target's profile when requester is target or shares an
// organisation with them.
func (s *Service) GetUser(ctx context.Context, requesterID, targetID string) (*models.User, error) {
	user, err := s.loadUser(ctx, targetID, "organisation.GetUser")
	if err != nil {
		return nil, err
	}

	ok, err := s.checker.CanViewUser(ctx, requesterID, user.UserID)
	if err != nil {
		return nil, apperr.Internal("could not check membership", err).WithOp("organisation.GetUser")
	}
	if !ok {
		return nil, apperr.Forbidden(msgCannotViewUser)
	}
	return user, nil
}

// ListOrganisations returns every organisation requester belongs to.
func (s *Service) ListOrganisations(ctx context.Context, requesterID string) ([]models.Organisation, error) {
	orgs, err := s.store.Organisations().ListForUser(ctx, requesterID)
	if err != nil {
		return nil, apperr.Internal("could not list organisations", err).WithOp("organisation.ListOrganisations")
	}
	return orgs, nil
}

// CreateOrganisation persists a new organisation with requester as its
// first member.
func (s *Service) CreateOrganisation(ctx context.Context, requesterID, name, description string) (*models.Organisation, error) {
	org := &models.Organisation{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if org.Name == "" {
		return nil, apperr.Validation("Client error").WithFields(map[string][]string{
			"name": {"This field is required."},
		})
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Organisations().Create(ctx, org); err != nil {
			return err
		}
		if err := tx.Organisations().AddMember(ctx, org.OrgID, requesterID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.AuditLogs(), audit.Event{
			Action:       models.ActionOrgCreate,
			ActorID:      requesterID,
			OrgID:        org.OrgID,
			ResourceType: "organisation",
			ResourceID:   org.OrgID,
			Metadata:     map[string]any{"name": org.Name},
		})
	})
	if err != nil {
		return nil, apperr.Internal("could not create organisation", err).WithOp("organisation.CreateOrganisation")
	}

	s.metrics.OrganisationCreated()
	s.log.Info().Str("org_id", org.OrgID).Str("user_id", requesterID).Msg("organisation created")
	return org, nil
}

// GetOrganisation returns the organisation when requester is a member.
func (s *Service) GetOrganisation(ctx context.Context, requesterID, orgID string) (*models.Organisation, error) {
	org, err := s.loadOrganisation(ctx, orgID, "organisation.GetOrganisation")
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, requesterID, org.OrgID, rbac.OrgRead, msgCannotViewOrg); err != nil {
		return nil, err
	}
	return org, nil
}

// AddUserToOrganisation adds target to the organisation. Checks run in a
// fixed order: organisation exists, requester is a member, target exists.
// A non-member therefore learns nothing about the target.
func (s *Service) AddUserToOrganisation(ctx context.Context, requesterID, orgID, targetID string) error {
	const op = "organisation.AddUserToOrganisation"

	org, err := s.loadOrganisation(ctx, orgID, op)
	if err != nil {
		return err
	}
	if err := s.require(ctx, requesterID, org.OrgID, rbac.OrgAddUser, msgCannotAddToOrg); err != nil {
		return err
	}
	target, err := s.loadUser(ctx, targetID, op)
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Organisations().AddMember(ctx, org.OrgID, target.UserID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.AuditLogs(), audit.Event{
			Action:       models.ActionOrgAddMember,
			ActorID:      requesterID,
			OrgID:        org.OrgID,
			ResourceType: "user",
			ResourceID:   target.UserID,
		})
	})
	if err != nil {
		return apperr.Internal("could not add member", err).WithOp(op)
	}

	s.metrics.MemberAdded()
	s.log.Info().
		Str("org_id", org.OrgID).
		Str("user_id", target.UserID).
		Str("added_by", requesterID).
		Msg("member added")
	return nil
}

// AuditPage is one page of an organisation's audit log. NextCursor is the
// after_id for the following page, or nil on the last page.
type AuditPage struct {
	Logs       []models.AuditLog
	NextCursor *int64
}

// ListOrganisationAudit returns the organisation's audit log newest first,
// gated like GetOrganisation. limit is clamped to [1, MaxAuditLimit].
func (s *Service) ListOrganisationAudit(ctx context.Context, requesterID, orgID string, limit int, afterID int64) (*AuditPage, error) {
	const op = "organisation.ListOrganisationAudit"

	org, err := s.loadOrganisation(ctx, orgID, op)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, requesterID, org.OrgID, rbac.OrgAudit, msgCannotViewAudit); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	// fetch one extra row to learn whether another page exists
	logs, err := s.store.AuditLogs().ListForOrganisation(ctx, org.OrgID, afterID, limit+1)
	if err != nil {
		return nil, apperr.Internal("could not list audit log", err).WithOp(op)
	}

	page := &AuditPage{Logs: logs}
	if len(logs) > limit {
		next := logs[limit-1].ID
		page.Logs = logs[:limit]
		page.NextCursor = &next
	}
	return page, nil
}

func (s *Service) require(ctx context.Context, requesterID, orgID, perm, denied string) error {
	ok, err := s.checker.Can(ctx, requesterID, orgID, perm)
	if err != nil {
		return apperr.Internal("could not check membership", err).WithOp("organisation.require")
	}
	if !ok {
		s.log.Debug().Str("user_id", requesterID).Str("org_id", orgID).Str("permission", perm).Msg("access denied")
		return apperr.Forbidden(denied)
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, userID, op string) (*models.User, error) {
	if !models.ValidID(userID) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err).WithOp(op)
	}
	return user, nil
}

func (s *Service) loadOrganisation(ctx context.Context, orgID, op string) (*models.Organisation, error) {
	if !models.ValidID(orgID) {
		return nil, apperr.NotFound(msgOrgNotFound)
	}
	org, err := s.store.Organisations().GetByID(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(msgOrgNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("could not load organisation", err).WithOp(op)
	}
	return org, nil
}
