// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"msdevblog/internal/cache"
	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/signer"
	"msdevblog/internal/store"
	"msdevblog/internal/validation"
)

// ResetMaxAge bounds the age of password reset links.
const ResetMaxAge = 24 * time.Hour

// Notifications sends the letters members receive.
type Notifications interface {
	Activation(ctx context.Context, username, email, token string) error
	PasswordReset(ctx context.Context, username, email, token string) error
}

// MembersDeps wires a Members service.
type MembersDeps struct {
	Users     UserRepo
	Notify    Notifications
	Cache     *cache.Cache
	Validator *validation.Validator

	// SecretKey signs activation and password reset links.
	SecretKey string
	// ActivationMaxAge bounds activation links. Zero never expires.
	ActivationMaxAge time.Duration
}

// Members implements registration, activation and account management.
type Members struct {
	users      UserRepo
	notify     Notifications
	cache      *cache.Cache
	validate   *validation.Validator
	activation *signer.Signer
	reset      *signer.Signer
	maxAge     time.Duration
}

// NewMembers creates the members service.
func NewMembers(d MembersDeps) *Members {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	return &Members{
		users:      d.Users,
		notify:     d.Notify,
		cache:      d.Cache,
		validate:   d.Validator,
		activation: signer.New(d.SecretKey, "members.activation"),
		reset:      signer.New(d.SecretKey, "members.password-reset"),
		maxAge:     d.ActivationMaxAge,
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	Password  string `form:"password1" validate:"required,min=8,max=128"`
	Password2 string `form:"password2" validate:"required,eqfield=Password"`
}

// Register creates an unverified member and mails the activation letter.
// A failed letter does not undo the registration; the member can ask for
// it again from the profile page.
func (m *Members) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := m.validate.Validate(in); err != nil {
		return nil, err
	}
	u, err := m.users.Create(ctx, store.NewUser{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Role:     models.RoleMember,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("member registered", "user_id", u.ID, "username", u.Username)
	m.sendActivation(ctx, u)
	return u, nil
}

// ActivationToken returns the signed token that confirms u's email.
func (m *Members) ActivationToken(u *models.User) string {
	if m.maxAge > 0 {
		return m.activation.SignTimestamped(u.Username)
	}
	return m.activation.Sign(u.Username)
}

func (m *Members) sendActivation(ctx context.Context, u *models.User) {
	if err := m.notify.Activation(ctx, u.Username, u.Email, m.ActivationToken(u)); err != nil {
		slog.Warn("activation letter not queued", "user_id", u.ID, "error", err)
	}
}

// Activation is the outcome of following an activation link.
type Activation struct {
	User *models.User
	// AlreadyActive is set when the address had been confirmed before.
	AlreadyActive bool
}

// Activate confirms the email address named by token. The flag only ever
// goes from false to true.
func (m *Members) Activate(ctx context.Context, token string) (*Activation, error) {
	var (
		username string
		err      error
	)
	if m.maxAge > 0 {
		username, err = m.activation.UnsignTimestamped(token, m.maxAge)
	} else {
		username, err = m.activation.Unsign(token)
	}
	switch {
	case errors.Is(err, signer.ErrExpired):
		return nil, domainerrors.TokenExpired("activation link has expired")
	case err != nil:
		return nil, domainerrors.Validation("activation link is invalid")
	}

	u, err := m.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domainerrors.NotFound("user not found")
	}
	changed, err := m.users.MarkEmailVerified(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		u.EmailVerified = true
		slog.Info("email activated", "user_id", u.ID)
	}
	return &Activation{User: u, AlreadyActive: !changed}, nil
}

// ResendActivation mails a new activation letter to v. It reports false
// when the address is already confirmed and nothing was sent.
func (m *Members) ResendActivation(ctx context.Context, v policy.Viewer) (bool, error) {
	u, err := m.current(ctx, v)
	if err != nil {
		return false, err
	}
	if u.EmailVerified {
		return false, nil
	}
	if err := m.notify.Activation(ctx, u.Username, u.Email, m.ActivationToken(u)); err != nil {
		return false, err
	}
	return true, nil
}

// Login checks credentials given as username or email.
func (m *Members) Login(ctx context.Context, login, password string) (*models.User, error) {
	u, err := m.users.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, err
	}
	if u == nil || !m.users.CheckPassword(u, password) {
		return nil, domainerrors.InvalidCredentials("invalid username or password")
	}
	if err := m.users.TouchLogin(ctx, u.ID); err != nil {
		slog.Warn("failed to record login", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// Current returns the user behind v.
func (m *Members) Current(ctx context.Context, v policy.Viewer) (*models.User, error) {
	return m.current(ctx, v)
}

func (m *Members) current(ctx context.Context, v policy.Viewer) (*models.User, error) {
	if !v.Authenticated {
		return nil, domainerrors.Unauthorized("sign in required")
	}
	u, err := m.users.FindByID(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domainerrors.Unauthorized("account no longer exists")
	}
	return u, nil
}

// ProfileInput is the profile form.
type ProfileInput struct {
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Bio       string `form:"bio" validate:"max=2000"`
	Git       string `form:"git" validate:"omitempty,http_url,max=255"`
}

// ProfileFor fills a ProfileInput from a user.
func ProfileFor(u *models.User) ProfileInput {
	in := ProfileInput{FirstName: u.FirstName, LastName: u.LastName}
	if u.Bio != nil {
		in.Bio = *u.Bio
	}
	if u.Git != nil {
		in.Git = *u.Git
	}
	return in
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// UpdateProfile replaces v's profile fields.
func (m *Members) UpdateProfile(ctx context.Context, v policy.Viewer, in ProfileInput) error {
	u, err := m.current(ctx, v)
	if err != nil {
		return err
	}
	in.Git = strings.TrimSpace(in.Git)
	if err := m.validate.Validate(in); err != nil {
		return err
	}
	return m.users.UpdateProfile(ctx, u.ID, store.Profile{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Bio:       optional(in.Bio),
		Git:       optional(in.Git),
	})
}

// PasswordInput is the password change form.
type PasswordInput struct {
	Old  string `form:"old_password" validate:"required"`
	New  string `form:"new_password1" validate:"required,min=8,max=128"`
	New2 string `form:"new_password2" validate:"required,eqfield=New"`
}

// ChangePassword replaces v's password after checking the current one.
func (m *Members) ChangePassword(ctx context.Context, v policy.Viewer, in PasswordInput) error {
	u, err := m.current(ctx, v)
	if err != nil {
		return err
	}
	if err := m.validate.Validate(in); err != nil {
		return err
	}
	if !m.users.CheckPassword(u, in.Old) {
		return domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"old_password": "is incorrect",
		})
	}
	if err := m.users.SetPassword(ctx, u.ID, in.New); err != nil {
		return err
	}
	slog.Info("password changed", "user_id", u.ID)
	return nil
}

// DeleteAccount removes v's account with all posts and comments.
func (m *Members) DeleteAccount(ctx context.Context, v policy.Viewer, password string) error {
	u, err := m.current(ctx, v)
	if err != nil {
		return err
	}
	if !m.users.CheckPassword(u, password) {
		return domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"password": "is incorrect",
		})
	}
	if err := m.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	m.cache.Invalidate(ctx, cache.KeyCategories, cache.KeyTags, cache.KeyRecentPosts, cache.KeyFeed)
	slog.Info("account deleted", "user_id", u.ID, "username", u.Username)
	return nil
}

// resetFingerprint ties a reset link to the password it replaces, so the
// link stops working once used.
func resetFingerprint(u *models.User) string {
	sum := sha256.Sum256([]byte(u.PasswordHash))
	return hex.EncodeToString(sum[:8])
}

// RequestPasswordReset mails a reset link when email belongs to a member.
// Unknown addresses are ignored so the form does not reveal who is
// registered.
func (m *Members) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := m.validate.Var("email", email, "required,email"); err != nil {
		return err
	}
	u, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		slog.Debug("password reset for unknown email")
		return nil
	}
	token := m.reset.SignTimestamped(u.Username + "|" + resetFingerprint(u))
	return m.notify.PasswordReset(ctx, u.Username, u.Email, token)
}

// ResetInput is the new password form behind a reset link.
type ResetInput struct {
	New  string `form:"new_password1" validate:"required,min=8,max=128"`
	New2 string `form:"new_password2" validate:"required,eqfield=New"`
}

// CheckResetToken validates a reset link and returns its user.
func (m *Members) CheckResetToken(ctx context.Context, token string) (*models.User, error) {
	value, err := m.reset.UnsignTimestamped(token, ResetMaxAge)
	switch {
	case errors.Is(err, signer.ErrExpired):
		return nil, domainerrors.TokenExpired("password reset link has expired")
	case err != nil:
		return nil, domainerrors.Validation("password reset link is invalid")
	}
	username, fingerprint, ok := strings.Cut(value, "|")
	if !ok {
		return nil, domainerrors.Validation("password reset link is invalid")
	}
	u, err := m.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || resetFingerprint(u) != fingerprint {
		return nil, domainerrors.Validation("password reset link is invalid")
	}
	return u, nil
}

// ResetPassword sets a new password through a reset link.
func (m *Members) ResetPassword(ctx context.Context, token string, in ResetInput) error {
	u, err := m.CheckResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := m.validate.Validate(in); err != nil {
		return err
	}
	if err := m.users.SetPassword(ctx, u.ID, in.New); err != nil {
		return err
	}
	slog.Info("password reset", "user_id", u.ID)
	return nil
}
