package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Decision is the authorization outcome derived once per incoming request.
// It is never cached across requests; claims are short-lived and per-call.
type Decision struct {
	IsAuthenticated bool
	Roles           []string
	IsAdmin         bool
}

// Gate derives authorization decisions from already-verified token claims.
// It performs no network or cluster calls.
type Gate struct {
	namespaceKey string
	adminRole    string
}

// NewGate creates a gate reading roles from the given claim-namespace key
// and treating membership of adminRole as admin.
func NewGate(namespaceKey, adminRole string) *Gate {
	return &Gate{
		namespaceKey: namespaceKey,
		adminRole:    adminRole,
	}
}

// Decide produces a Decision for the given claim set.
// Nil or empty claims yield an unauthenticated decision.
func (g *Gate) Decide(claims jwt.MapClaims) Decision {
	if len(claims) == 0 {
		return Decision{}
	}

	roles := g.extractRoles(claims)

	isAdmin := false
	for _, role := range roles {
		if role == g.adminRole {
			isAdmin = true
			break
		}
	}

	return Decision{
		IsAuthenticated: true,
		Roles:           roles,
		IsAdmin:         isAdmin,
	}
}

// extractRoles looks up the roles array under the configured key, then under
// "<key>_roles". The first key holding a string array wins; later keys are
// not merged. No array under either key means no roles.
func (g *Gate) extractRoles(claims jwt.MapClaims) []string {
	for _, key := range []string{g.namespaceKey, g.namespaceKey + "_roles"} {
		if roles, ok := stringSlice(claims[key]); ok {
			return roles
		}
	}
	return nil
}

// stringSlice converts a JSON-decoded claim value into a []string.
func stringSlice(v any) ([]string, bool) {
	switch vals := v.(type) {
	case []string:
		return vals, true
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
