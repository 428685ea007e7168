// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/slug"
	"msdevblog/internal/store"
	"msdevblog/internal/validation"
)

// AdminPosts is the post storage used by the admin area.
type AdminPosts interface {
	List(ctx context.Context, f store.PostFilter) ([]models.Post, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, status models.PostStatus) (int, error)
}

// AdminCategories is the category storage used by the admin area.
type AdminCategories interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, title, slug string) (*models.Category, error)
	Delete(ctx context.Context, id int64) error
}

// AdminTags is the tag storage used by the admin area.
type AdminTags interface {
	ListAll(ctx context.Context) ([]models.Tag, error)
	Delete(ctx context.Context, id int64) error
}

// AdminUsers is the user storage used by the admin area.
type AdminUsers interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
	ResetTOTP(ctx context.Context, id uuid.UUID) error
}

// AdminComments is the comment storage used by the admin area.
type AdminComments interface {
	Latest(ctx context.Context, limit int) ([]models.Comment, error)
	Count(ctx context.Context) (int, error)
}

// AuditLog lists recorded cache invalidations.
type AuditLog interface {
	RecentEntries(ctx context.Context, limit int) ([]store.CacheLogEntry, error)
}

// AdminDeps wires an Admin. Blog is used to keep caches and the search
// index in step with deletions.
type AdminDeps struct {
	Posts      AdminPosts
	Categories AdminCategories
	Tags       AdminTags
	Users      AdminUsers
	Comments   AdminComments
	Audit      AuditLog
	Blog       *Blog
	Validator  *validation.Validator
}

// Admin implements the staff-only management area. Every method refuses
// viewers who are not staff.
type Admin struct {
	d AdminDeps
}

// NewAdmin creates the admin service.
func NewAdmin(d AdminDeps) *Admin {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	return &Admin{d: d}
}

// commentsShown caps the admin comment list.
const commentsShown = 200

func requireStaff(v policy.Viewer) error {
	if !v.Authenticated {
		return domainerrors.Unauthorized("login required")
	}
	if !v.Staff {
		return domainerrors.Forbidden("staff only")
	}
	return nil
}

// Dashboard summarizes the site for the admin landing page.
type Dashboard struct {
	Posts         int
	Published     int
	Drafts        int
	Users         int
	Comments      int
	Invalidations []store.CacheLogEntry
}

// Dashboard returns the counters and the latest cache invalidations.
func (a *Admin) Dashboard(ctx context.Context, v policy.Viewer) (*Dashboard, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	var d Dashboard
	var err error
	if d.Posts, err = a.d.Posts.Count(ctx, ""); err != nil {
		return nil, err
	}
	if d.Published, err = a.d.Posts.Count(ctx, models.PostStatusPublished); err != nil {
		return nil, err
	}
	d.Drafts = d.Posts - d.Published
	if d.Users, err = a.d.Users.Count(ctx); err != nil {
		return nil, err
	}
	if d.Comments, err = a.d.Comments.Count(ctx); err != nil {
		return nil, err
	}
	if a.d.Audit != nil {
		if d.Invalidations, err = a.d.Audit.RecentEntries(ctx, 20); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

// AllPosts returns every post in any status, newest first.
func (a *Admin) AllPosts(ctx context.Context, v policy.Viewer) ([]models.Post, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	posts, _, err := a.d.Posts.List(ctx, store.PostFilter{})
	return posts, err
}

// DeletePost removes any post.
func (a *Admin) DeletePost(ctx context.Context, v policy.Viewer, id uuid.UUID) error {
	if err := requireStaff(v); err != nil {
		return err
	}
	if err := a.d.Posts.Delete(ctx, id); err != nil {
		return err
	}
	a.d.Blog.forget(ctx, id)
	slog.Info("post deleted by staff", "post_id", id, "staff", v.Username)
	return nil
}

// AllCategories returns every category.
func (a *Admin) AllCategories(ctx context.Context, v policy.Viewer) ([]models.Category, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	return a.d.Categories.List(ctx)
}

// CategoryInput is the category form. A blank slug is derived from the title.
type CategoryInput struct {
	Title string `form:"title" validate:"notblank,max=255"`
	Slug  string `form:"slug" validate:"max=255"`
}

// CreateCategory adds a category.
func (a *Admin) CreateCategory(ctx context.Context, v policy.Viewer, in CategoryInput) (*models.Category, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	if err := a.d.Validator.Validate(in); err != nil {
		return nil, err
	}
	source := in.Slug
	if strings.TrimSpace(source) == "" {
		source = in.Title
	}
	s := slug.Generate(source)
	if s == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"slug": "Cannot build a URL from this value.",
		})
	}
	if len(s) > slug.MaxLength {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"slug": fmt.Sprintf("URL is longer than %d characters after transliteration.", slug.MaxLength),
		})
	}
	c, err := a.d.Categories.Create(ctx, strings.TrimSpace(in.Title), s)
	if err != nil {
		return nil, err
	}
	a.d.Blog.InvalidateTaxonomy(ctx, "category", strconv.FormatInt(c.ID, 10), "create")
	return c, nil
}

// DeleteCategory removes a category; its posts move to the default one.
func (a *Admin) DeleteCategory(ctx context.Context, v policy.Viewer, id int64) error {
	if err := requireStaff(v); err != nil {
		return err
	}
	if err := a.d.Categories.Delete(ctx, id); err != nil {
		return err
	}
	a.d.Blog.InvalidateTaxonomy(ctx, "category", strconv.FormatInt(id, 10), "delete")
	return nil
}

// AllTags returns every tag, used or not.
func (a *Admin) AllTags(ctx context.Context, v policy.Viewer) ([]models.Tag, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	return a.d.Tags.ListAll(ctx)
}

// DeleteTag removes a tag from every post.
func (a *Admin) DeleteTag(ctx context.Context, v policy.Viewer, id int64) error {
	if err := requireStaff(v); err != nil {
		return err
	}
	if err := a.d.Tags.Delete(ctx, id); err != nil {
		return err
	}
	a.d.Blog.InvalidateTaxonomy(ctx, "tag", strconv.FormatInt(id, 10), "delete")
	return nil
}

// AllUsers returns every member.
func (a *Admin) AllUsers(ctx context.Context, v policy.Viewer) ([]models.User, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	return a.d.Users.List(ctx)
}

// target loads a user other than v.
func (a *Admin) target(ctx context.Context, v policy.Viewer, id uuid.UUID) (*models.User, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	if id == v.ID {
		return nil, domainerrors.Validation("use the profile page to change your own account")
	}
	u, err := a.d.Users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domainerrors.NotFound("user not found")
	}
	return u, nil
}

// DeleteUser removes a member with their posts and comments.
func (a *Admin) DeleteUser(ctx context.Context, v policy.Viewer, id uuid.UUID) error {
	u, err := a.target(ctx, v, id)
	if err != nil {
		return err
	}
	if err := a.d.Users.Delete(ctx, u.ID); err != nil {
		return err
	}
	a.d.Blog.InvalidateTaxonomy(ctx, "user", u.ID.String(), "delete")
	slog.Info("user deleted by staff", "user_id", u.ID, "username", u.Username, "staff", v.Username)
	return nil
}

// SetRole promotes a member to staff or demotes them.
func (a *Admin) SetRole(ctx context.Context, v policy.Viewer, id uuid.UUID, role models.Role) error {
	if role != models.RoleMember && role != models.RoleStaff {
		return domainerrors.ValidationWithDetails("validation failed", map[string]string{"role": "Unknown role."})
	}
	u, err := a.target(ctx, v, id)
	if err != nil {
		return err
	}
	return a.d.Users.SetRole(ctx, u.ID, role)
}

// ResetTOTP clears a staff member's second factor so they enroll again.
func (a *Admin) ResetTOTP(ctx context.Context, v policy.Viewer, id uuid.UUID) error {
	u, err := a.target(ctx, v, id)
	if err != nil {
		return err
	}
	if err := a.d.Users.ResetTOTP(ctx, u.ID); err != nil {
		return err
	}
	slog.Info("2fa reset", "user_id", u.ID, "staff", v.Username)
	return nil
}

// LatestComments returns the newest comments across the site.
func (a *Admin) LatestComments(ctx context.Context, v policy.Viewer) ([]models.Comment, error) {
	if err := requireStaff(v); err != nil {
		return nil, err
	}
	return a.d.Comments.Latest(ctx, commentsShown)
}
