package entities

import (
	"time"
)

// User represents a registered driver
type User struct {
	ID             string    `json:"id" db:"id" bson:"_id"`
	Email          string    `json:"email" db:"email" bson:"email"`
	DisplayName    string    `json:"display_name" db:"display_name" bson:"display_name"`
	CompanyName    string    `json:"company_name,omitempty" db:"company_name" bson:"company_name,omitempty"`
	PasswordHash   string    `json:"-" db:"password_hash" bson:"password_hash"`
	ReviewIDs      []string  `json:"review_ids" db:"review_ids" bson:"review_ids"`
	ProfilePicture string    `json:"profile_picture,omitempty" db:"profile_picture" bson:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// PublicProfile is what other drivers can see about a user.
type PublicProfile struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	CompanyName    string `json:"company_name,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	ReviewCount    int    `json:"review_count"`
}

// Public returns the public projection of u.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		DisplayName:    u.DisplayName,
		CompanyName:    u.CompanyName,
		ProfilePicture: u.ProfilePicture,
		ReviewCount:    len(u.ReviewIDs),
	}
}
