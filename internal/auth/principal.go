package auth

import (
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
)

// AdminID is the reserved subject of the fixed admin principal. It is a
// sentinel compared before any store lookup and never exists as a user
// record.
const AdminID = "admin"

// Principal is the resolved identity of an authenticated caller.
type Principal struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// AdminPrincipal returns the fixed reserved principal.
func AdminPrincipal() *Principal {
	return &Principal{
		ID:       AdminID,
		Role:     users.RoleAdmin,
		Email:    "admin@example.com",
		FullName: "Admin User",
	}
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == users.RoleAdmin
}

// RequireRole fails with Forbidden unless the principal's role is in the
// allowed set, or with Unauthenticated when there is no principal.
func RequireRole(p *Principal, roles ...string) error {
	if p == nil {
		return apperrors.Unauthenticated("access denied, please login")
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return apperrors.Forbidden("role " + p.Role + " is not authorized to access this resource")
}

// RequireOwnerOrAdmin succeeds for admins, otherwise requires the principal
// to own the resource.
func RequireOwnerOrAdmin(p *Principal, ownerID string) error {
	if p == nil {
		return apperrors.Unauthenticated("access denied, please login")
	}
	if p.IsAdmin() || p.ID == ownerID {
		return nil
	}
	return apperrors.Forbidden("you can only access your own resources")
}

// CanViewProject reports whether the caller may read a project: public
// projects are open to everyone, private ones to owner and admin.
func CanViewProject(p *Principal, isPublic bool, ownerID string) bool {
	if isPublic {
		return true
	}
	return p != nil && (p.IsAdmin() || p.ID == ownerID)
}
