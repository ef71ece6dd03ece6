package rbac

import (
	"context"
	"strings"
)

// Organisation permissions. Membership grants every one of them; there
// are no roles inside an organisation.
var (
	OrgRead    = Key("organisations", "read")
	OrgAddUser = Key("organisations", "add-user")
	OrgAudit   = Key("organisations", "audit")
)

var memberPermissions = map[string]struct{}{
	OrgRead:    {},
	OrgAddUser: {},
	OrgAudit:   {},
}

// MembershipReader answers membership questions from storage.
type MembershipReader interface {
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	SharesOrganisation(ctx context.Context, userA, userB string) (bool, error)
}

type Checker struct{ Memberships MembershipReader }

// Can reports whether userID holds permKey on orgID.
func (c Checker) Can(ctx context.Context, userID, orgID, permKey string) (bool, error) {
	if _, known := memberPermissions[permKey]; !known {
		return false, nil
	}
	return c.Memberships.IsMember(ctx, orgID, userID)
}

// CanViewUser reports whether requester may read target's profile: always
// for themselves, otherwise only when they share an organisation.
func (c Checker) CanViewUser(ctx context.Context, requester, target string) (bool, error) {
	if requester == target {
		return true, nil
	}
	return c.Memberships.SharesOrganisation(ctx, requester, target)
}

// Key composes a permission key like "organisations:read".
func Key(resource, action string) string { return strings.ToLower(resource + ":" + action) }
