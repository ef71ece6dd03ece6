// Package identity registers users, checks their credentials and issues
// bearer tokens.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"org_membership/internal/apperr"
	"org_membership/internal/audit"
	"org_membership/internal/auth"
	"org_membership/internal/metrics"
	"org_membership/internal/models"
	"org_membership/internal/repository"
)

const (
	msgRegistrationFailed = "Registration unsuccessful"
	msgAuthFailed         = "Authentication failed"
	msgEmailTaken         = "user with this email already exists."
	msgPasswordTooLong    = "Ensure this field is no longer than 72 bytes."
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
	CompareDummy(plain string)
}

// TokenIssuer mints a bearer token for a user.
type TokenIssuer interface {
	Issue(u *models.User) (string, error)
}

type Service struct {
	store   repository.Store
	hasher  PasswordHasher
	tokens  TokenIssuer
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(store repository.Store, hasher PasswordHasher, tokens TokenIssuer, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		metrics: m,
		log:     log.With().Str("component", "identity").Logger(),
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Result is what a successful register or login hands back to the client.
type Result struct {
	AccessToken  string
	User         *models.User
	Organisation *models.Organisation // set by Register only
}

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user, their default organisation and membership,
// and a token, all in one transaction. A taken email is a validation error
// on the "email" field.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)

	taken, err := s.store.Users().EmailExists(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal("could not check email", err).WithOp("identity.Register")
	}
	if taken {
		return nil, emailTaken()
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperr.Validation(msgRegistrationFailed).WithFields(map[string][]string{
			"password": {msgPasswordTooLong},
		})
	}
	if err != nil {
		return nil, apperr.Internal("could not hash password", err).WithOp("identity.Register")
	}

	res := &Result{}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		user := &models.User{
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        in.Email,
			PasswordHash: hash,
			Phone:        in.Phone,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}

		org := &models.Organisation{Name: models.DefaultOrganisationName(user.FirstName)}
		if err := tx.Organisations().Create(ctx, org); err != nil {
			return err
		}
		if err := tx.Organisations().AddMember(ctx, org.OrgID, user.UserID); err != nil {
			return err
		}

		events := []audit.Event{
			{
				Action:       models.ActionUserRegister,
				ActorID:      user.UserID,
				ResourceType: "user",
				ResourceID:   user.UserID,
			},
			{
				Action:       models.ActionOrgCreate,
				ActorID:      user.UserID,
				OrgID:        org.OrgID,
				ResourceType: "organisation",
				ResourceID:   org.OrgID,
				Metadata:     map[string]any{"name": org.Name, "default": true},
			},
		}
		for _, ev := range events {
			if err := audit.Record(ctx, tx.AuditLogs(), ev); err != nil {
				return err
			}
		}

		token, err := s.tokens.Issue(user)
		if err != nil {
			return err
		}

		res.AccessToken, res.User, res.Organisation = token, user, org
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent registration
			return nil, emailTaken()
		}
		return nil, apperr.Internal("could not register user", err).WithOp("identity.Register")
	}

	s.metrics.UserRegistered()
	s.metrics.OrganisationCreated()
	s.log.Info().
		Str("user_id", res.User.UserID).
		Str("org_id", res.Organisation.OrgID).
		Msg("user registered")
	return res, nil
}

// Login verifies the credentials. Unknown email and wrong password produce
// the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = NormalizeEmail(email)

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Internal("could not load user", err).WithOp("identity.Login")
		}
		s.hasher.CompareDummy(password)
		s.loginFailed(email, "unknown email")
		return nil, apperr.Unauthorized(msgAuthFailed)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.loginFailed(email, "wrong password")
		return nil, apperr.Unauthorized(msgAuthFailed)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Internal("could not issue token", err).WithOp("identity.Login")
	}

	err = audit.Record(ctx, s.store.AuditLogs(), audit.Event{
		Action:       models.ActionUserLogin,
		ActorID:      user.UserID,
		ResourceType: "user",
		ResourceID:   user.UserID,
	})
	if err != nil {
		// login still succeeds when the audit write fails
		s.log.Error().Err(err).Str("user_id", user.UserID).Msg("record login audit")
	}

	s.metrics.Login(true)
	s.log.Info().Str("user_id", user.UserID).Msg("login succeeded")
	return &Result{AccessToken: token, User: user}, nil
}

func (s *Service) loginFailed(email, reason string) {
	s.metrics.Login(false)
	s.log.Warn().Str("email", email).Str("reason", reason).Msg("login failed")
}

func emailTaken() error {
	return apperr.Validation(msgRegistrationFailed).WithFields(map[string][]string{
		"email": {msgEmailTaken},
	})
}
