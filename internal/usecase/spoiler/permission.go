package spoiler

import (
	"context"

	"spoilerBot/internal/domain"
)

// Policy controls who may mark other people's messages as spoilers.
type Policy struct {
	AllowAll bool
	UserIDs  []string
	RoleIDs  []string
}

// Authorizer evaluates a Policy: allow-all, then the user allowlist, then a
// role lookup through the transport. Anything else is denied.
type Authorizer struct {
	allowAll bool
	users    map[string]struct{}
	roles    []string
	checker  domain.RoleChecker
}

func NewAuthorizer(p Policy, checker domain.RoleChecker) *Authorizer {
	return &Authorizer{
		allowAll: p.AllowAll,
		users:    toSet(p.UserIDs),
		roles:    append([]string(nil), p.RoleIDs...),
		checker:  checker,
	}
}

func (a *Authorizer) Authorize(ctx context.Context, channelID, userID string) (bool, error) {
	if a.allowAll {
		return true, nil
	}
	if _, ok := a.users[userID]; ok {
		return true, nil
	}
	if len(a.roles) == 0 || a.checker == nil {
		return false, nil
	}
	return a.checker.HasRole(ctx, channelID, userID, a.roles)
}
