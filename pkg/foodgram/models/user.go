package models

import (
	"strings"
	"time"
)

// SystemRole represents a user's system-wide role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// User represents a registered user. Users author recipes and follow
// other users.
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Email        string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Username     string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName    string     `gorm:"size:150;not null" json:"first_name"`
	LastName     string     `gorm:"size:150;not null" json:"last_name"`
	PasswordHash string     `gorm:"not null" json:"-"`
	SystemRole   SystemRole `gorm:"type:varchar(20);default:'user'" json:"system_role"`

	// Relationships
	Recipes       []Recipe       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Favorites     []Favorite     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CartItems     []Cart         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Subscriptions []Subscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Subscribers   []Subscription `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin reports whether the user has the admin system role.
func (u *User) IsAdmin() bool {
	return u.SystemRole == SystemRoleAdmin
}

// FullName returns "First Last", falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
