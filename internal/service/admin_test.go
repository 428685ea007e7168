// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/store"
)

// Storage methods only the admin area needs.

func (r memPosts) Count(_ context.Context, status models.PostStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.posts {
		if status == "" || p.Status == status {
			n++
		}
	}
	return n, nil
}

func (r memCategories) Create(_ context.Context, title, s string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next int64
	for id, c := range r.categories {
		if c.Slug == s {
			return nil, domainerrors.ConflictWithDetails("category exists", map[string]string{"slug": "taken"})
		}
		next = max(next, id)
	}
	c := &models.Category{ID: next + 1, Title: title, Slug: s}
	r.categories[c.ID] = c
	return c, nil
}

func (r memCategories) Delete(_ context.Context, id int64) error {
	if id == models.DefaultCategoryID {
		return domainerrors.Validation("the default category cannot be deleted")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.categories, id)
	for _, p := range r.posts {
		if p.CategoryID == id {
			p.CategoryID = models.DefaultCategoryID
		}
	}
	return nil
}

func (r memTags) ListAll(ctx context.Context) ([]models.Tag, error) { return r.List(ctx) }

func (r memTags) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s, t := range r.tags {
		if t.ID == id {
			delete(r.tags, s)
		}
	}
	return nil
}

func (r memComments) Latest(_ context.Context, limit int) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Comment
	for _, c := range r.comments {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memComments) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.comments), nil
}

func (r *memUsers) List(context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUsers) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *memUsers) SetRole(_ context.Context, id uuid.UUID, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].Role = role
	return nil
}

func (r *memUsers) ResetTOTP(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].TOTPSecret = nil
	r.users[id].TOTPEnabled = false
	return nil
}

type memAudit struct{ entries []store.CacheLogEntry }

func (a memAudit) RecentEntries(context.Context, int) ([]store.CacheLogEntry, error) {
	return a.entries, nil
}

type adminFixture struct {
	*blogFixture
	admin *Admin
	users *memUsers
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	f := newBlogFixture(t, false)
	users := newMemUsers()
	a := NewAdmin(AdminDeps{
		Posts:      memPosts{f.mem},
		Categories: memCategories{f.mem},
		Tags:       memTags{f.mem},
		Users:      users,
		Comments:   memComments{f.mem},
		Audit:      memAudit{entries: []store.CacheLogEntry{{ID: 1, EntityType: "post", Action: "create"}}},
		Blog:       f.blog,
	})
	return &adminFixture{blogFixture: f, admin: a, users: users}
}

func staff() policy.Viewer {
	return policy.Viewer{ID: uuid.New(), Username: "admin", Authenticated: true, EmailVerified: true, Staff: true}
}

func (f *adminFixture) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), store.NewUser{Username: name, Email: name + "@example.com", Password: "password123"})
	require.NoError(t, err)
	return u
}

func TestAdmin_RequiresStaff(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	_, err := f.admin.Dashboard(ctx, policy.Anonymous())
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = f.admin.AllPosts(ctx, member(true))
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	err = f.admin.DeleteCategory(ctx, member(true), 2)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	assert.Contains(t, f.mem.categories, int64(2), "nothing deleted")
}

func TestAdmin_Dashboard(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	author := member(true)

	_, err := f.blog.CreatePost(ctx, author, input("Первый", models.PostStatusPublished))
	require.NoError(t, err)
	_, err = f.blog.CreatePost(ctx, author, input("Второй", models.PostStatusDraft))
	require.NoError(t, err)
	f.addUser(t, "ivan")

	d, err := f.admin.Dashboard(ctx, staff())
	require.NoError(t, err)
	assert.Equal(t, 2, d.Posts)
	assert.Equal(t, 1, d.Published)
	assert.Equal(t, 1, d.Drafts)
	assert.Equal(t, 1, d.Users)
	assert.Len(t, d.Invalidations, 1)
}

func TestAdmin_DeleteAnyPost(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	p, err := f.blog.CreatePost(ctx, member(true), input("Чужой пост", models.PostStatusPublished))
	require.NoError(t, err)

	require.NoError(t, f.admin.DeletePost(ctx, staff(), p.ID))
	assert.NotContains(t, f.mem.posts, p.ID)
	assert.Contains(t, f.search.deleted, p.ID)
	assert.Equal(t, logEntry{"post", p.ID.String(), "delete"}, f.log.entries[len(f.log.entries)-1])

	all, err := f.admin.AllPosts(ctx, staff())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAdmin_Categories(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	c, err := f.admin.CreateCategory(ctx, staff(), CategoryInput{Title: "  Базы данных "})
	require.NoError(t, err)
	assert.Equal(t, "bazy-dannyh", c.Slug)
	assert.Equal(t, "Базы данных", c.Title)

	_, err = f.admin.CreateCategory(ctx, staff(), CategoryInput{Title: "Другое", Slug: "bazy-dannyh"})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = f.admin.CreateCategory(ctx, staff(), CategoryInput{Title: " "})
	assert.Contains(t, domainerrors.FieldErrors(err), "title")

	_, err = f.admin.CreateCategory(ctx, staff(), CategoryInput{Title: "!!!"})
	assert.Contains(t, domainerrors.FieldErrors(err), "slug")

	// 255 characters fit the title but not the transliterated slug.
	_, err = f.admin.CreateCategory(ctx, staff(), CategoryInput{Title: strings.Repeat("ш", 255)})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Contains(t, domainerrors.FieldErrors(err), "slug")

	in := input("В категории", models.PostStatusPublished)
	in.CategoryID = c.ID
	p, err := f.blog.CreatePost(ctx, member(true), in)
	require.NoError(t, err)

	require.NoError(t, f.admin.DeleteCategory(ctx, staff(), c.ID))
	assert.Equal(t, models.DefaultCategoryID, f.mem.posts[p.ID].CategoryID)
	assert.Equal(t, logEntry{"category", "3", "delete"}, f.log.entries[len(f.log.entries)-1])

	err = f.admin.DeleteCategory(ctx, staff(), models.DefaultCategoryID)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAdmin_Tags(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	in := input("С тегами", models.PostStatusPublished)
	in.Tags = "Go, Postgres"
	_, err := f.blog.CreatePost(ctx, member(true), in)
	require.NoError(t, err)

	tags, err := f.admin.AllTags(ctx, staff())
	require.NoError(t, err)
	require.Len(t, tags, 2)

	require.NoError(t, f.admin.DeleteTag(ctx, staff(), tags[0].ID))
	tags, err = f.admin.AllTags(ctx, staff())
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestAdmin_Users(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	ivan := f.addUser(t, "ivan")
	secret := "JBSWY3DPEHPK3PXP"
	f.users.users[ivan.ID].TOTPSecret = &secret
	f.users.users[ivan.ID].TOTPEnabled = true

	me := staff()
	assert.ErrorIs(t, f.admin.DeleteUser(ctx, me, me.ID), domainerrors.ErrValidation, "no self-delete")
	assert.ErrorIs(t, f.admin.DeleteUser(ctx, me, uuid.New()), domainerrors.ErrNotFound)

	require.NoError(t, f.admin.SetRole(ctx, me, ivan.ID, models.RoleStaff))
	assert.Equal(t, models.RoleStaff, f.users.users[ivan.ID].Role)
	assert.ErrorIs(t, f.admin.SetRole(ctx, me, ivan.ID, "root"), domainerrors.ErrValidation)

	require.NoError(t, f.admin.ResetTOTP(ctx, me, ivan.ID))
	assert.False(t, f.users.users[ivan.ID].TOTPEnabled)
	assert.Nil(t, f.users.users[ivan.ID].TOTPSecret)

	users, err := f.admin.AllUsers(ctx, me)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, f.admin.DeleteUser(ctx, me, ivan.ID))
	assert.Empty(t, f.users.users)
}

func TestAdmin_LatestComments(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	p, err := f.blog.CreatePost(ctx, member(true), input("Обсуждаемый", models.PostStatusPublished))
	require.NoError(t, err)
	_, err = f.blog.AddComment(ctx, member(true), p.ID, CommentInput{Body: "Отлично"})
	require.NoError(t, err)

	comments, err := f.admin.LatestComments(ctx, staff())
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Отлично", comments[0].Body)
}
