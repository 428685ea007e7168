// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/slug"
)

// MsgSlugTaken is reported when a post's slug is already used that day.
const MsgSlugTaken = "URL already used for another post today."

// PostStore handles all post-related database operations.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

const postColumns = `p.id, p.author_id, p.category_id, p.title, p.slug, p.body, p.status,
	p.created_at, p.updated_at, u.username, c.title, c.slug`

const postFrom = ` FROM posts p
	JOIN users u ON u.id = p.author_id
	JOIN categories c ON c.id = p.category_id`

func scanPost(row scanner, extra ...any) (*models.Post, error) {
	p := &models.Post{}
	dest := []any{
		&p.ID, &p.AuthorID, &p.CategoryID, &p.Title, &p.Slug, &p.Body, &p.Status,
		&p.CreatedAt, &p.UpdatedAt, &p.AuthorUsername, &p.CategoryTitle, &p.CategorySlug,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return p, nil
}

// postConflict translates the per-day slug violation into a conflict error.
func postConflict(err error, s string) error {
	if uniqueConstraint(err) == "posts_slug_created_on_key" {
		return domainerrors.ConflictWithDetails("post slug "+s+" already used today",
			map[string]string{"slug": MsgSlugTaken}).WithCause(err)
	}
	return nil
}

// Create inserts a post and its tags in one transaction. When p.CreatedAt is
// zero the database clock is used. A slug already taken on the creation day
// yields a conflict error and nothing is written.
func (s *PostStore) Create(ctx context.Context, p *models.Post, tags []slug.Tag) (*models.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var createdAt *time.Time
	if !p.CreatedAt.IsZero() {
		createdAt = &p.CreatedAt
	}
	category := p.CategoryID
	if category == 0 {
		category = models.DefaultCategoryID
	}

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO posts (author_id, category_id, title, slug, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), COALESCE($7, NOW()))
		RETURNING id
	`, p.AuthorID, category, p.Title, p.Slug, p.Body, p.Status, createdAt).Scan(&id)
	if err != nil {
		if cerr := postConflict(err, p.Slug); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	if _, err := setPostTags(ctx, tx, id, tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Update rewrites a post's editable fields and replaces its tags. The
// creation time never changes; updated_at is bumped.
func (s *PostStore) Update(ctx context.Context, p *models.Post, tags []slug.Tag) (*models.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE posts SET
			category_id = $1, title = $2, slug = $3, body = $4, status = $5,
			updated_at = NOW()
		WHERE id = $6
	`, p.CategoryID, p.Title, p.Slug, p.Body, p.Status, p.ID)
	if err != nil {
		if cerr := postConflict(err, p.Slug); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domainerrors.NotFound("post not found")
	}

	if _, err := setPostTags(ctx, tx, p.ID, tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit post: %w", err)
	}
	return s.FindByID(ctx, p.ID)
}

// Delete removes a post by ID. Comments and tag links cascade.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// FindByID retrieves a post in any status, with its tags. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.findOne(ctx, "id", `p.id = $1`, id)
}

// FindBySlug retrieves a post in any status by slug. Slugs repeat across
// days, so the most recently created match wins. Returns nil if not found.
func (s *PostStore) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, "slug", `p.slug = $1 ORDER BY p.created_at DESC LIMIT 1`, slug)
}

func (s *PostStore) findOne(ctx context.Context, what, where string, arg any) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+postFrom+` WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by %s: %w", what, err)
	}
	tags, err := tagsForPosts(ctx, s.db, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Tags = tags[p.ID]
	return p, nil
}

// PostFilter narrows List and Search. An empty Status matches every status.
type PostFilter struct {
	Status       models.PostStatus
	CategorySlug string
	TagSlug      string
	AuthorID     uuid.UUID
	Limit        int
	Offset       int
}

// where renders the filter as SQL conditions, numbering placeholders after
// the first `skip` arguments.
func (f PostFilter) where(skip int) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(skip+len(args))))
	}

	if f.Status != "" {
		add(`p.status = ?`, f.Status)
	}
	if f.CategorySlug != "" {
		add(`c.slug = ?`, f.CategorySlug)
	}
	if f.TagSlug != "" {
		// EXISTS keeps each post once however many tags match.
		add(`EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.slug = ?)`, f.TagSlug)
	}
	if f.AuthorID != uuid.Nil {
		add(`p.author_id = ?`, f.AuthorID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f PostFilter) page(args []any) (string, []any) {
	if f.Limit <= 0 {
		return "", args
	}
	args = append(args, f.Limit, f.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// List returns posts matching the filter, newest created first with ties
// broken by category, plus the total number of matches ignoring paging.
func (s *PostStore) List(ctx context.Context, f PostFilter) ([]models.Post, int, error) {
	where, args := f.where(0)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+postFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	limit, args := f.page(args)
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+postFrom+where+`
		ORDER BY p.created_at DESC, p.category_id ASC, p.id ASC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	posts, err := s.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Recent returns the most recently updated published posts.
func (s *PostStore) Recent(ctx context.Context, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+postFrom+`
		WHERE p.status = 'published'
		ORDER BY p.updated_at DESC, p.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	return s.collect(ctx, rows)
}

// Search ranks posts matching query with the Russian full-text configuration.
// The filter is applied before ranking.
func (s *PostStore) Search(ctx context.Context, query string, f PostFilter) ([]models.Post, error) {
	where, args := f.where(1)
	cond := ` WHERE p.search_vector @@ q`
	if where != "" {
		cond += " AND " + strings.TrimPrefix(where, " WHERE ")
	}
	args = append([]any{query}, args...)
	limit, args := f.page(args)

	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+`, ts_rank(p.search_vector, q) AS rank`+postFrom+`
		CROSS JOIN websearch_to_tsquery('russian', $1) q`+cond+`
		ORDER BY rank DESC, p.created_at DESC`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return s.collect(ctx, rows, new(float64))
}

// Count returns the number of posts with the given status, or all posts
// when status is empty.
func (s *PostStore) Count(ctx context.Context, status models.PostStatus) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE status = $1`, status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// collect scans post rows, closes them and attaches tags.
func (s *PostStore) collect(ctx context.Context, rows *sql.Rows, extra ...any) ([]models.Post, error) {
	defer rows.Close()

	var posts []models.Post
	var ids []uuid.UUID
	for rows.Next() {
		p, err := scanPost(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	rows.Close()

	tags, err := tagsForPosts(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Tags = tags[posts[i].ID]
	}
	return posts, nil
}
