// Package seed creates demo accounts for local development.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"org_membership/internal/identity"
	"org_membership/internal/models"
	"org_membership/internal/repository"
)

// SharedOrganisationName is the organisation every demo user joins.
const SharedOrganisationName = "Demo Organisation"

// DemoPassword is the password of every seeded account.
const DemoPassword = "demo1234"

// DemoUsers are registered by FirstSetup. The first one owns the shared
// organisation.
var DemoUsers = []identity.RegisterInput{
	{Email: "admin@example.com", FirstName: "Admin", LastName: "User"},
	{Email: "alice@example.com", FirstName: "Alice", LastName: "Example"},
	{Email: "bob@example.com", FirstName: "Bob", LastName: "Example"},
}

// Registrar signs users up.
type Registrar interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.Result, error)
}

// Organisations manages organisations on behalf of a member.
type Organisations interface {
	ListOrganisations(ctx context.Context, requesterID string) ([]models.Organisation, error)
	CreateOrganisation(ctx context.Context, requesterID, name, description string) (*models.Organisation, error)
	AddUserToOrganisation(ctx context.Context, requesterID, orgID, targetID string) error
}

// FirstSetup registers the demo users and puts them in one shared
// organisation. Running it again changes nothing.
func FirstSetup(ctx context.Context, users repository.UserRepository, reg Registrar, orgs Organisations, log zerolog.Logger) error {
	ids := make([]string, 0, len(DemoUsers))
	for _, in := range DemoUsers {
		in.Password = DemoPassword
		u, err := ensureUser(ctx, users, reg, in)
		if err != nil {
			return err
		}
		ids = append(ids, u.UserID)
	}

	owner := ids[0]
	shared, err := ensureOrganisation(ctx, orgs, owner)
	if err != nil {
		return err
	}

	for _, id := range ids[1:] {
		if err := orgs.AddUserToOrganisation(ctx, owner, shared.OrgID, id); err != nil {
			return fmt.Errorf("add %s to %s: %w", id, shared.Name, err)
		}
	}

	log.Info().
		Str("org_id", shared.OrgID).
		Int("users", len(ids)).
		Str("password", DemoPassword).
		Msg("seed complete")
	return nil
}

func ensureUser(ctx context.Context, users repository.UserRepository, reg Registrar, in identity.RegisterInput) (*models.User, error) {
	email := identity.NormalizeEmail(in.Email)
	u, err := users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up %s: %w", email, err)
	}

	res, err := reg.Register(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", email, err)
	}
	return res.User, nil
}

func ensureOrganisation(ctx context.Context, orgs Organisations, ownerID string) (*models.Organisation, error) {
	existing, err := orgs.ListOrganisations(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list organisations: %w", err)
	}
	for i := range existing {
		if existing[i].Name == SharedOrganisationName {
			return &existing[i], nil
		}
	}

	org, err := orgs.CreateOrganisation(ctx, ownerID, SharedOrganisationName, "Shared organisation for the seeded demo users")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", SharedOrganisationName, err)
	}
	return org, nil
}
