package models

import "encoding/json"

// Role is the closed set of user roles known to the ordering application.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
	RoleWaiter Role = "waiter"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAdmin, RoleWaiter:
		return true
	}
	return false
}

// Profile is the server-of-record representation of the user. It is only
// ever replaced as a whole by a successful fetch; fields are never merged
// with a previously cached copy.
type Profile struct {
	ID       int64   `json:"id" validate:"required"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    string  `json:"phone"`
	Role     Role    `json:"role" validate:"required,oneof=client admin waiter"`
	Birthday *string `json:"birthday,omitempty"`
	AgeGroup *string `json:"age_group,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Birthday != nil {
		b := *p.Birthday
		c.Birthday = &b
	}
	if p.AgeGroup != nil {
		a := *p.AgeGroup
		c.AgeGroup = &a
	}
	return &c
}

// ParseProfile decodes a cached profile. It does not validate: cached
// profiles were validated when they were fetched.
func ParseProfile(s string) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
