package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque entity identifier.
func NewID() string {
	return uuid.NewString()
}

// Profile holds the optional, user-editable part of a user record.
type Profile struct {
	Name    string `json:"name,omitempty"`
	Bio     string `json:"bio,omitempty"`
	Contact string `json:"contact,omitempty"`
	Image   string `json:"image,omitempty"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name    *string `json:"name"`
	Bio     *string `json:"bio"`
	Contact *string `json:"contact"`
}

// User represents a registered portal user
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36" bson:"_id"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null" bson:"username"`
	Email        *string   `json:"email,omitempty" gorm:"uniqueIndex" bson:"email,omitempty"`
	PasswordHash string    `json:"-" gorm:"not null" bson:"password_hash"`
	Role         Role      `json:"role" gorm:"type:varchar(16);not null;default:member" bson:"role"`
	IsApproved   bool      `json:"isApproved" gorm:"not null;default:false" bson:"is_approved"`
	Profile      Profile   `json:"profile" gorm:"embedded;embeddedPrefix:profile_" bson:"profile"`
	Version      int64     `json:"-" gorm:"not null;default:0" bson:"version"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// CanLogin reports whether the user passes the approval gate.
// Admins are always treated as approved.
func (u *User) CanLogin() bool {
	return u.Role == RoleAdmin || u.IsApproved
}

// ApplyProfile copies the non-nil fields of p onto the profile.
func (u *User) ApplyProfile(p ProfilePatch) {
	if p.Name != nil {
		u.Profile.Name = *p.Name
	}
	if p.Bio != nil {
		u.Profile.Bio = *p.Bio
	}
	if p.Contact != nil {
		u.Profile.Contact = *p.Contact
	}
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	return &c
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
