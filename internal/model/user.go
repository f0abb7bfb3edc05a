package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// User represents a canteen account as stored in the `users` table.
// Students log in with either their phone number or their roll number.
// BalanceCents goes negative when pay-later orders are placed and is reset
// to zero when an administrator clears the student's dues.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name shown on admin order lists.
//  Phone        – unique phone number.
//  Roll         – unique roll number (e.g. STU001).
//  PasswordHash – bcrypt hashed password.
//  Role         – STUDENT or ADMIN.
//  BalanceCents – running balance; negative means money is owed.
//  IsActive     – whether the account may log in.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Phone        string    // users.phone
	Roll         string    // users.roll
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	BalanceCents int64     // users.balance_cents
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the account carries the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
