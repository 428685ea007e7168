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
)

// CommentStore handles comment persistence. Comments are append-only.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a new CommentStore.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `cm.id, cm.post_id, cm.author_id, cm.parent_id, cm.body, cm.created_at, u.username`

const commentFrom = ` FROM comments cm JOIN users u ON u.id = cm.author_id`

func scanComment(row scanner) (*models.Comment, error) {
	c := &models.Comment{}
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Body, &c.CreatedAt, &c.AuthorUsername)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a comment and returns it with its generated fields.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, author_id, parent_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.PostID, c.AuthorID, c.ParentID, c.Body).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return s.FindByID(ctx, id)
}

// FindByID retrieves a comment. Returns nil if not found.
func (s *CommentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, `SELECT `+commentColumns+commentFrom+` WHERE cm.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

// ListByPost returns a post's comments, oldest first.
func (s *CommentStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	return s.list(ctx, `SELECT `+commentColumns+commentFrom+`
		WHERE cm.post_id = $1 ORDER BY cm.created_at ASC, cm.id ASC`, postID)
}

// Latest returns the newest comments across all posts, for the admin area.
func (s *CommentStore) Latest(ctx context.Context, limit int) ([]models.Comment, error) {
	return s.list(ctx, `SELECT `+commentColumns+commentFrom+`
		ORDER BY cm.created_at DESC LIMIT $1`, limit)
}

// Count returns the total number of comments.
func (s *CommentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

func (s *CommentStore) list(ctx context.Context, query string, args ...any) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
