package users

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a stored user can hold. The reserved admin principal lives outside
// this collection entirely (see internal/auth).
const (
	RoleField    = "field"
	RoleVerifier = "verifier"
	RoleAdmin    = "admin"
)

// Account statuses. Deactivation is a status change, never a hard delete,
// so historical projects keep a resolvable submitter. Email uniqueness is
// enforced with a partial index scoped to active users, which lets a
// deactivated account keep its original address.
const (
	StatusActive      = "active"
	StatusDeactivated = "deactivated"
)

// Lockout policy for failed logins.
const (
	MaxLoginAttempts = 5
	LockDuration     = 15 * time.Minute
)

// User represents a registered field or verifier identity.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"fullName"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Status       string             `bson:"status" json:"status"`
	Organization string             `bson:"organization,omitempty" json:"organization,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	ProfileImage string             `bson:"profile_image,omitempty" json:"profileImage,omitempty"`
	ProfileImageKey string          `bson:"profile_image_key,omitempty" json:"-"`

	LoginAttempts int        `bson:"login_attempts" json:"-"`
	LockUntil     *time.Time `bson:"lock_until,omitempty" json:"-"`
	LastLogin     *time.Time `bson:"last_login,omitempty" json:"lastLogin,omitempty"`

	// Denormalized totals, recomputed from the credit-grant ledger.
	TotalCredits int64   `bson:"total_credits" json:"totalCredits"`
	TotalArea    float64 `bson:"total_area" json:"totalArea"`

	Projects []primitive.ObjectID `bson:"projects" json:"projects"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsLocked reports whether the account is inside a lockout window.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// ValidRole reports whether r is a storable user role.
func ValidRole(r string) bool {
	return r == RoleField || r == RoleVerifier || r == RoleAdmin
}
