package session

import (
	"context"
	"errors"
	"slices"

	"github.com/congo-pay/custody/internal/registry"
)

// DefaultRole is the role of a process with no active session.
const DefaultRole = "guest"

// AnonymousRoles are the role tags accepted without an account.
var AnonymousRoles = []string{DefaultRole, "bank", "relief"}

// ErrUnknownRole is returned when assuming a role outside AnonymousRoles.
var ErrUnknownRole = errors.New("unknown anonymous role")

// Kind tags which variant a Session holds.
type Kind int

const (
	None Kind = iota
	AnonymousRole
	AuthenticatedAccount
)

func (k Kind) String() string {
	switch k {
	case AnonymousRole:
		return "anonymous"
	case AuthenticatedAccount:
		return "account"
	default:
		return "none"
	}
}

// Session is the active identity of the running process. AccountID is set
// only for AuthenticatedAccount sessions.
type Session struct {
	Kind      Kind
	Role      string
	AccountID string
}

func noSession() Session {
	return Session{Kind: None, Role: DefaultRole}
}

// Authenticated reports whether the session belongs to a registered account.
func (s Session) Authenticated() bool { return s.Kind == AuthenticatedAccount }

// IsAnonymousRole reports whether role may be assumed without an account.
func IsAnonymousRole(role string) bool {
	return slices.Contains(AnonymousRoles, role)
}

func roleFor(profile registry.Profile) string {
	if profile.Role != "" {
		return profile.Role
	}
	return registry.DefaultRole
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext, or an empty session.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(ctxKey{}).(Session); ok {
		return s
	}
	return noSession()
}
