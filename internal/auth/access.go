package auth

import "github.com/spec-kit/user-service/internal/domain"

// RoleAllows reports whether role satisfies required. An empty requirement
// admits everyone.
func RoleAllows(required []domain.Role, role domain.Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

// OwnershipAllows permits acting on a resource owned by ownerID when the
// caller is the owner or an admin.
func OwnershipAllows(ownerID, callerID string, callerRole domain.Role) bool {
	return ownerID == callerID || callerRole == domain.RoleAdmin
}

// DenyReason tags why a Decision denied access.
type DenyReason string

const (
	DenyRole      DenyReason = "role"
	DenyOwnership DenyReason = "ownership"
)

// Rule describes what an operation requires from its caller. Roles gates
// by role; a non-empty OwnerID adds the ownership gate.
type Rule struct {
	Roles   []domain.Role
	OwnerID string
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Authorize applies the role gate and then, when the rule names an owner,
// the ownership gate. It always uses the caller's live role.
func Authorize(caller domain.Identity, rule Rule) Decision {
	if !RoleAllows(rule.Roles, caller.Role) {
		return Decision{Reason: DenyRole}
	}
	if rule.OwnerID != "" && !OwnershipAllows(rule.OwnerID, caller.SubjectID, caller.Role) {
		return Decision{Reason: DenyOwnership}
	}
	return Decision{Allowed: true}
}
