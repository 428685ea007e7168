// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the system.
type Role string

const (
	// RoleMember is a registered reader and author.
	RoleMember Role = "member"
	// RoleStaff can open the admin area (behind 2FA).
	RoleStaff Role = "staff"
)

// User is a registered member of the blog.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"` // Never serialize the hash
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Bio           *string    `json:"bio,omitempty"`
	Git           *string    `json:"git,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	Role          Role       `json:"role"`
	TOTPSecret    *string    `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled   bool       `json:"totp_enabled"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsStaff returns true if the user may access the admin area.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff
}

// Needs2FASetup returns true if the user has not completed 2FA enrollment.
// Only staff are asked to enroll, on their first admin login.
func (u *User) Needs2FASetup() bool {
	return !u.TOTPEnabled
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
