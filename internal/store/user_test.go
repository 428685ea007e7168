// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	u := newTestUser(t, db, false)

	if u.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if u.Role != models.RoleMember {
		t.Errorf("role: got %q, want %q", u.Role, models.RoleMember)
	}
	if u.EmailVerified {
		t.Error("expected email_verified=false for new user")
	}
	if u.TOTPEnabled {
		t.Error("expected totp_enabled=false for new user")
	}
	if u.PasswordHash == "" || u.PasswordHash == "password123" {
		t.Error("password must be stored hashed")
	}
}

func TestUserStoreCreateNormalizesEmail(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()

	name := "u" + uuid.NewString()[:12]
	u, err := s.Create(ctx, NewUser{Username: name, Email: "  " + name + "@Store-Test.LOCAL ", Password: "password123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", u.ID) })

	if u.Email != name+"@store-test.local" {
		t.Errorf("email: got %q", u.Email)
	}
	found, err := s.FindByEmail(ctx, name+"@STORE-TEST.local")
	if err != nil || found == nil || found.ID != u.ID {
		t.Fatalf("FindByEmail ignoring case: %v, %v", found, err)
	}
}

func TestUserStoreFind(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newTestUser(t, db, false)

	missing, err := s.FindByID(ctx, uuid.New())
	if err != nil {
		t.Fatalf("FindByID (not found): %v", err)
	}
	if missing != nil {
		t.Error("expected nil for random UUID")
	}

	for name, find := range map[string]func() (*models.User, error){
		"id":             func() (*models.User, error) { return s.FindByID(ctx, u.ID) },
		"username":       func() (*models.User, error) { return s.FindByUsername(ctx, u.Username) },
		"login username": func() (*models.User, error) { return s.FindByLogin(ctx, u.Username) },
		"login email":    func() (*models.User, error) { return s.FindByLogin(ctx, u.Email) },
	} {
		found, err := find()
		if err != nil {
			t.Fatalf("find by %s: %v", name, err)
		}
		if found == nil || found.ID != u.ID {
			t.Errorf("find by %s: got %v, want %s", name, found, u.ID)
		}
	}
}

func TestUserStoreDuplicates(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newTestUser(t, db, false)

	_, err := s.Create(ctx, NewUser{Username: u.Username, Email: "other-" + u.Email, Password: "password123"})
	if !domainerrors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("duplicate username: want conflict, got %v", err)
	}
	if _, ok := domainerrors.FieldErrors(err)["username"]; !ok {
		t.Errorf("duplicate username should name the field, got %v", domainerrors.FieldErrors(err))
	}

	_, err = s.Create(ctx, NewUser{Username: u.Username + "x", Email: u.Email, Password: "password123"})
	if !domainerrors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("duplicate email: want conflict, got %v", err)
	}
	if _, ok := domainerrors.FieldErrors(err)["email"]; !ok {
		t.Errorf("duplicate email should name the field, got %v", domainerrors.FieldErrors(err))
	}
}

func TestUserStoreMarkEmailVerified(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newTestUser(t, db, false)

	changed, err := s.MarkEmailVerified(ctx, u.ID)
	if err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	if !changed {
		t.Error("first activation should report a change")
	}

	changed, err = s.MarkEmailVerified(ctx, u.ID)
	if err != nil {
		t.Fatalf("MarkEmailVerified again: %v", err)
	}
	if changed {
		t.Error("second activation should report no change")
	}

	found, _ := s.FindByID(ctx, u.ID)
	if !found.EmailVerified {
		t.Error("expected email_verified=true")
	}
}

func TestUserStoreProfileAndPassword(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newTestUser(t, db, true)

	bio := "Go developer"
	err := s.UpdateProfile(ctx, u.ID, Profile{FirstName: "Ivan", LastName: "Petrov", Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	found, _ := s.FindByID(ctx, u.ID)
	if found.FullName() != "Ivan Petrov" {
		t.Errorf("full name: got %q", found.FullName())
	}
	if found.Bio == nil || *found.Bio != bio {
		t.Errorf("bio: got %v", found.Bio)
	}
	if found.Git != nil {
		t.Errorf("git: expected nil, got %v", *found.Git)
	}

	if err := s.SetPassword(ctx, u.ID, "new-password-1"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	found, _ = s.FindByID(ctx, u.ID)
	if !s.CheckPassword(found, "new-password-1") {
		t.Error("new password should verify")
	}
	if s.CheckPassword(found, "password123") {
		t.Error("old password should no longer verify")
	}
}

func TestUserStoreTOTPLifecycle(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)
	ctx := context.Background()
	u := newTestUser(t, db, true)

	if err := s.SetTOTPSecret(ctx, u.ID, "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("SetTOTPSecret: %v", err)
	}
	found, _ := s.FindByID(ctx, u.ID)
	if found.TOTPSecret == nil || *found.TOTPSecret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("expected TOTP secret set, got %v", found.TOTPSecret)
	}
	if found.TOTPEnabled {
		t.Error("TOTP should not be enabled yet")
	}

	if err := s.EnableTOTP(ctx, u.ID); err != nil {
		t.Fatalf("EnableTOTP: %v", err)
	}
	found, _ = s.FindByID(ctx, u.ID)
	if !found.TOTPEnabled {
		t.Error("expected TOTP enabled after EnableTOTP")
	}

	if err := s.ResetTOTP(ctx, u.ID); err != nil {
		t.Fatalf("ResetTOTP: %v", err)
	}
	found, _ = s.FindByID(ctx, u.ID)
	if found.TOTPSecret != nil || found.TOTPEnabled {
		t.Error("expected TOTP cleared after reset")
	}
}

// TestUserStoreDeleteCascades verifies that removing a user removes their
// posts and comments, including comments on other people's posts.
func TestUserStoreDeleteCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserStore(db)
	posts := NewPostStore(db)
	comments := NewCommentStore(db)

	doomed := newTestUser(t, db, true)
	other := newTestUser(t, db, true)

	own, err := posts.Create(ctx, &models.Post{
		AuthorID: doomed.ID, Title: "Mine", Slug: "mine-" + uuid.NewString()[:8],
		Body: "body", Status: models.PostStatusPublished,
	}, nil)
	if err != nil {
		t.Fatalf("create own post: %v", err)
	}
	theirs, err := posts.Create(ctx, &models.Post{
		AuthorID: other.ID, Title: "Theirs", Slug: "theirs-" + uuid.NewString()[:8],
		Body: "body", Status: models.PostStatusPublished,
	}, nil)
	if err != nil {
		t.Fatalf("create other post: %v", err)
	}
	c, err := comments.Create(ctx, &models.Comment{PostID: theirs.ID, AuthorID: doomed.ID, Body: "hello"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if err := users.Delete(ctx, doomed.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if p, _ := posts.FindByID(ctx, own.ID); p != nil {
		t.Error("author's post should be deleted with the author")
	}
	if cm, _ := comments.FindByID(ctx, c.ID); cm != nil {
		t.Error("author's comment should be deleted with the author")
	}
	if p, _ := posts.FindByID(ctx, theirs.ID); p == nil {
		t.Error("other users' posts must survive")
	}
}
