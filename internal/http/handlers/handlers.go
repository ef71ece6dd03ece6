// Package handlers holds the gin handlers for the public API. Handlers
// decode and validate the request, call a service and write the response
// envelope; authorization decisions live in the services.
package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"org_membership/internal/apperr"
	"org_membership/internal/auth"
	"org_membership/internal/identity"
	"org_membership/internal/models"
	"org_membership/internal/organisation"
	"org_membership/internal/validation"
)

// IdentityService registers and authenticates users.
type IdentityService interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Result, error)
	Login(ctx context.Context, email, password string) (*identity.Result, error)
}

// OrganisationService enforces membership rules over users and organisations.
type OrganisationService interface {
	GetUser(ctx context.Context, requesterID, targetID string) (*models.User, error)
	ListOrganisations(ctx context.Context, requesterID string) ([]models.Organisation, error)
	CreateOrganisation(ctx context.Context, requesterID, name, description string) (*models.Organisation, error)
	GetOrganisation(ctx context.Context, requesterID, orgID string) (*models.Organisation, error)
	AddUserToOrganisation(ctx context.Context, requesterID, orgID, targetID string) error
	ListOrganisationAudit(ctx context.Context, requesterID, orgID string, limit int, afterID int64) (*organisation.AuditPage, error)
}

// bind decodes the JSON body into dst and validates it. Failures become a
// validation error carrying message and the field map.
func bind(c *gin.Context, v *validation.Validator, dst any, message string) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			// empty body: report the missing fields
			if fields := v.Struct(dst); fields != nil {
				return apperr.Validation(message).WithFields(fields)
			}
			return nil
		}
		return apperr.Validation(message).WithFields(map[string][]string{
			"non_field_errors": {"Malformed JSON body."},
		})
	}
	if fields := v.Struct(dst); fields != nil {
		return apperr.Validation(message).WithFields(fields)
	}
	return nil
}

// requester returns the authenticated caller's user id. The JWT middleware
// guarantees one on every protected route.
func requester(c *gin.Context) (string, error) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		return "", apperr.Unauthorized("Authentication credentials were not provided.")
	}
	return id.UserID, nil
}
