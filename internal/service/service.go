// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package service holds the blog's use cases. Handlers translate HTTP into
// calls here; every call takes the acting viewer explicitly and returns
// domain errors from internal/errors.
package service

import (
	"context"

	"github.com/google/uuid"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/slug"
	"msdevblog/internal/store"
)

// PostRepo is the post storage used by Blog.
type PostRepo interface {
	Create(ctx context.Context, p *models.Post, tags []slug.Tag) (*models.Post, error)
	Update(ctx context.Context, p *models.Post, tags []slug.Tag) (*models.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, f store.PostFilter) ([]models.Post, int, error)
	Recent(ctx context.Context, limit int) ([]models.Post, error)
}

// CategoryRepo is the category storage used by Blog.
type CategoryRepo interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id int64) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
}

// TagRepo is the tag storage used by Blog.
type TagRepo interface {
	List(ctx context.Context) ([]models.Tag, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tag, error)
}

// CommentRepo is the comment storage used by Blog.
type CommentRepo interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
}

// UserRepo is the user storage used by Members.
type UserRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	Create(ctx context.Context, nu store.NewUser) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p store.Profile) error
	SetPassword(ctx context.Context, id uuid.UUID, password string) error
	TouchLogin(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	CheckPassword(u *models.User, password string) bool
}

// InvalidationLog records cache invalidations for auditing.
type InvalidationLog interface {
	Log(ctx context.Context, entityType, entityID, action string)
}

// Page is one page of a listing. Number starts at 1.
type Page struct {
	Posts  []models.Post
	Total  int
	Number int
	Size   int
}

// Pages returns the number of pages in the listing.
func (p Page) Pages() int {
	if p.Size <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Size - 1) / p.Size
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Number < p.Pages() }

// MaxPage is the highest page number any listing serves.
const MaxPage = 100_000

// offset converts a 1-based page number into a row offset. Pages past
// MaxPage are NotFound.
func offset(page, size int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return 0, 0, domainerrors.NotFound("page not found")
	}
	return page, (page - 1) * size, nil
}
