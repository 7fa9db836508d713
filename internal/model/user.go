package model

import "time"

// User represents an account as stored in the `users` table.  The
// password hash never leaves the server: it carries a "-" json tag so the
// struct can be returned from handlers directly.
//
// Fields:
//
//	ID           - UUID primary key.
//	Name         - display name.
//	Email        - unique, lowercased login address.
//	PasswordHash - bcrypt hash of the password.
//	Phone, WeddingDate, PartnerName, Venue - optional profile details.
type User struct {
	ID           string     `json:"id"`          // users.id
	Name         string     `json:"name"`        // users.name
	Email        string     `json:"email"`       // users.email
	PasswordHash string     `json:"-"`           // users.password_hash
	Phone        string     `json:"phone"`       // users.phone
	WeddingDate  *time.Time `json:"weddingDate"` // users.wedding_date (nullable)
	PartnerName  string     `json:"partnerName"` // users.partner_name
	Venue        string     `json:"venue"`       // users.venue
	CreatedAt    time.Time  `json:"createdAt"`   // users.created_at
	UpdatedAt    time.Time  `json:"updatedAt"`   // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
