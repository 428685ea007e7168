// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/search"
	"msdevblog/internal/slug"
	"msdevblog/internal/store"
)

// memBlog is an in-memory stand-in for the post, category, tag and comment
// stores. It enforces the same per-day slug rule as the database.
type memBlog struct {
	mu         sync.Mutex
	now        time.Time
	posts      map[uuid.UUID]*models.Post
	categories map[int64]*models.Category
	tags       map[string]*models.Tag
	comments   map[uuid.UUID]*models.Comment
	nextTag    int64
	writes     int
}

func newMemBlog() *memBlog {
	return &memBlog{
		now:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		posts: map[uuid.UUID]*models.Post{},
		categories: map[int64]*models.Category{
			models.DefaultCategoryID: {ID: models.DefaultCategoryID, Title: "Все категории", Slug: "all"},
			2:                        {ID: 2, Title: "Python", Slug: "python"},
		},
		tags:     map[string]*models.Tag{},
		comments: map[uuid.UUID]*models.Comment{},
	}
}

type memPosts struct{ *memBlog }
type memCategories struct{ *memBlog }
type memTags struct{ *memBlog }
type memComments struct{ *memBlog }

func (m *memBlog) day(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (m *memBlog) slugTaken(p *models.Post, created time.Time) bool {
	for _, other := range m.posts {
		if other.ID != p.ID && other.Slug == p.Slug && m.day(other.CreatedAt) == m.day(created) {
			return true
		}
	}
	return false
}

func (m *memBlog) attach(p *models.Post, tags []slug.Tag) {
	p.Tags = nil
	for _, t := range tags {
		existing, ok := m.tags[t.Slug]
		if !ok {
			m.nextTag++
			existing = &models.Tag{ID: m.nextTag, Name: t.Name, Slug: t.Slug}
			m.tags[t.Slug] = existing
		}
		p.Tags = append(p.Tags, *existing)
	}
	c := m.categories[p.CategoryID]
	p.CategorySlug, p.CategoryTitle = c.Slug, c.Title
}

func conflict(s string) error {
	return domainerrors.ConflictWithDetails(store.MsgSlugTaken, map[string]string{"slug": s})
}

func (r memPosts) Create(_ context.Context, p *models.Post, tags []slug.Tag) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.ID = uuid.New()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.now
	}
	cp.UpdatedAt = cp.CreatedAt
	if r.slugTaken(&cp, cp.CreatedAt) {
		return nil, conflict(cp.Slug)
	}
	r.attach(&cp, tags)
	r.posts[cp.ID] = &cp
	r.writes++
	out := cp
	return &out, nil
}

func (r memPosts) Update(_ context.Context, p *models.Post, tags []slug.Tag) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.posts[p.ID]
	if !ok {
		return nil, domainerrors.NotFound("post not found")
	}
	cp := *p
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = r.now.Add(time.Minute)
	if r.slugTaken(&cp, cp.CreatedAt) {
		return nil, conflict(cp.Slug)
	}
	r.attach(&cp, tags)
	r.posts[cp.ID] = &cp
	r.writes++
	out := cp
	return &out, nil
}

func (r memPosts) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	for cid, c := range r.comments {
		if c.PostID == id {
			delete(r.comments, cid)
		}
	}
	r.writes++
	return nil
}

func (r memPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (r memPosts) FindBySlug(_ context.Context, s string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Post
	for _, p := range r.posts {
		if p.Slug == s && (best == nil || p.CreatedAt.After(best.CreatedAt)) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (r memPosts) List(_ context.Context, f store.PostFilter) ([]models.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for _, p := range r.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.CategorySlug != "" && p.CategorySlug != f.CategorySlug {
			continue
		}
		if f.TagSlug != "" {
			found := false
			for _, t := range p.Tags {
				found = found || t.Slug == f.TagSlug
			}
			if !found {
				continue
			}
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if out[i].CategoryID != out[j].CategoryID {
			return out[i].CategoryID < out[j].CategoryID
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := len(out)
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, total, nil
		}
		out = out[f.Offset:min(f.Offset+f.Limit, len(out))]
	}
	return out, total, nil
}

func (r memPosts) Recent(ctx context.Context, limit int) ([]models.Post, error) {
	posts, _, err := r.List(ctx, store.PostFilter{Status: models.PostStatusPublished})
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].UpdatedAt.After(posts[j].UpdatedAt) })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, err
}

func (r memCategories) List(context.Context) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Category
	for _, c := range r.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memCategories) FindByID(_ context.Context, id int64) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.categories[id], nil
}

func (r memCategories) FindBySlug(_ context.Context, s string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Slug == s {
			return c, nil
		}
	}
	return nil, nil
}

func (r memTags) List(context.Context) ([]models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tag
	for _, t := range r.tags {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memTags) FindBySlug(_ context.Context, s string) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tags[s], nil
}

func (r memComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.ID = uuid.New()
	cp.CreatedAt = r.now.Add(time.Duration(len(r.comments)) * time.Second)
	r.comments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r memComments) FindByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comments[id], nil
}

func (r memComments) ListByPost(_ context.Context, postID uuid.UUID) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// recordingSearch remembers indexed and deleted posts.
type recordingSearch struct {
	indexed map[uuid.UUID]models.Post
	deleted []uuid.UUID
	query   search.Query
	result  []models.Post
}

func (s *recordingSearch) Search(_ context.Context, q search.Query) ([]models.Post, error) {
	s.query = q
	out := s.result
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *recordingSearch) Index(_ context.Context, p *models.Post) error {
	if s.indexed == nil {
		s.indexed = map[uuid.UUID]models.Post{}
	}
	s.indexed[p.ID] = *p
	return nil
}

func (s *recordingSearch) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type logEntry struct{ entity, id, action string }

type recordingLog struct{ entries []logEntry }

func (l *recordingLog) Log(_ context.Context, entityType, entityID, action string) {
	l.entries = append(l.entries, logEntry{entityType, entityID, action})
}

// memUsers is an in-memory user store with bcrypt passwords at minimum cost.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[uuid.UUID]*models.User{}} }

func (r *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) FindByUsername(_ context.Context, name string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == name })
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == strings.ToLower(email) })
}

func (r *memUsers) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	if strings.Contains(login, "@") {
		return r.FindByEmail(ctx, login)
	}
	return r.FindByUsername(ctx, login)
}

func (r *memUsers) Create(_ context.Context, nu store.NewUser) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == nu.Username {
			return nil, domainerrors.ConflictWithDetails("username already taken", map[string]string{"username": "taken"})
		}
		if u.Email == strings.ToLower(nu.Email) {
			return nil, domainerrors.ConflictWithDetails("email already registered", map[string]string{"email": "taken"})
		}
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.MinCost)
	u := &models.User{
		ID:           uuid.New(),
		Username:     nu.Username,
		Email:        strings.ToLower(nu.Email),
		PasswordHash: string(hash),
		Role:         nu.Role,
	}
	r.users[u.ID] = u
	out := *u
	return &out, nil
}

func (r *memUsers) MarkEmailVerified(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	if u == nil || u.EmailVerified {
		return false, nil
	}
	u.EmailVerified = true
	return true, nil
}

func (r *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, p store.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.FirstName, u.LastName, u.Bio, u.Git = p.FirstName, p.LastName, p.Bio, p.Git
	return nil
}

func (r *memUsers) SetPassword(_ context.Context, id uuid.UUID, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	r.users[id].PasswordHash = string(hash)
	return nil
}

func (r *memUsers) TouchLogin(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.users[id].LastLoginAt = &now
	return nil
}

func (r *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *memUsers) CheckPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// outbox records letters instead of queueing them.
type outbox struct {
	activations []string // tokens
	resets      []string
	feedback    []string
}

func (o *outbox) Activation(_ context.Context, _, _, token string) error {
	o.activations = append(o.activations, token)
	return nil
}

func (o *outbox) PasswordReset(_ context.Context, _, _, token string) error {
	o.resets = append(o.resets, token)
	return nil
}

func (o *outbox) Feedback(_ context.Context, theme, text, email string) error {
	o.feedback = append(o.feedback, theme+"|"+text+"|"+email)
	return nil
}
