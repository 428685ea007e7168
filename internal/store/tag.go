// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"msdevblog/internal/models"
	"msdevblog/internal/slug"
)

// TagStore reads tags. Tags are written together with posts, see PostStore.
type TagStore struct {
	db *sql.DB
}

// NewTagStore returns a new TagStore.
func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

// List returns the tags attached to at least one published post, with counts.
func (s *TagStore) List(ctx context.Context) ([]models.Tag, error) {
	return s.list(ctx, `
		SELECT t.id, t.name, t.slug, COUNT(p.id) AS post_count
		FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		JOIN posts p ON p.id = pt.post_id AND p.status = 'published'
		GROUP BY t.id
		ORDER BY t.name
	`)
}

// ListAll returns every tag, including unused ones, with total post counts.
func (s *TagStore) ListAll(ctx context.Context) ([]models.Tag, error) {
	return s.list(ctx, `
		SELECT t.id, t.name, t.slug, COUNT(pt.post_id) AS post_count
		FROM tags t
		LEFT JOIN post_tags pt ON pt.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name
	`)
}

func (s *TagStore) list(ctx context.Context, query string) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.PostCount); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// FindBySlug retrieves a tag by slug. Returns nil if not found.
func (s *TagStore) FindBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var t models.Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug FROM tags WHERE slug = $1`, slug).
		Scan(&t.ID, &t.Name, &t.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tag by slug: %w", err)
	}
	return &t, nil
}

// Delete removes a tag and detaches it from every post.
func (s *TagStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// setPostTags replaces the tags of a post inside tx. Tags are matched by slug;
// an existing tag keeps the name it was first created with.
func setPostTags(ctx context.Context, tx *sql.Tx, postID uuid.UUID, tags []slug.Tag) ([]models.Tag, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return nil, fmt.Errorf("clear post tags: %w", err)
	}

	out := make([]models.Tag, 0, len(tags))
	for _, t := range tags {
		var tag models.Tag
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id, name, slug
		`, t.Name, t.Slug).Scan(&tag.ID, &tag.Name, &tag.Slug)
		if err != nil {
			return nil, fmt.Errorf("upsert tag %q: %w", t.Slug, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, postID, tag.ID); err != nil {
			return nil, fmt.Errorf("link tag %q: %w", t.Slug, err)
		}
		out = append(out, tag)
	}
	return out, nil
}

// tagsForPosts loads the tags of many posts in one query, keyed by post ID.
func tagsForPosts(ctx context.Context, db *sql.DB, ids []uuid.UUID) (map[uuid.UUID][]models.Tag, error) {
	out := make(map[uuid.UUID][]models.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := db.QueryContext(ctx, `
		SELECT pt.post_id, t.id, t.name, t.slug
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1::uuid[])
		ORDER BY t.name
	`, strIDs)
	if err != nil {
		return nil, fmt.Errorf("load post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID uuid.UUID
		var t models.Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan post tag: %w", err)
		}
		out[postID] = append(out[postID], t)
	}
	return out, rows.Err()
}
