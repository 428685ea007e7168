// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package search implements full-text post search. Two engines share the
// Searcher interface: Postgres full-text search over the generated
// search_vector column, and an embedded bleve index. Both only ever return
// published posts.
package search

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"msdevblog/internal/models"
	"msdevblog/internal/store"
)

// Query is a search request. Category and tag slugs narrow the result set
// before ranking.
type Query struct {
	Text         string
	CategorySlug string
	TagSlug      string
	Limit        int
	Offset       int
}

// Searcher finds published posts and keeps its index in step with post
// mutations.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]models.Post, error)
	Index(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostSearcher is the subset of store.PostStore used by the Postgres engine.
type PostSearcher interface {
	Search(ctx context.Context, query string, f store.PostFilter) ([]models.Post, error)
}

// Postgres searches with the database's Russian text search configuration.
// The index is a generated column, so Index and Delete do nothing.
type Postgres struct {
	posts PostSearcher
}

// NewPostgres creates a Postgres-backed searcher.
func NewPostgres(posts PostSearcher) *Postgres {
	return &Postgres{posts: posts}
}

// Search returns published posts matching q, best match first.
func (p *Postgres) Search(ctx context.Context, q Query) ([]models.Post, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, nil
	}
	return p.posts.Search(ctx, text, store.PostFilter{
		Status:       models.PostStatusPublished,
		CategorySlug: q.CategorySlug,
		TagSlug:      q.TagSlug,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
}

// Index is a no-op.
func (p *Postgres) Index(context.Context, *models.Post) error { return nil }

// Delete is a no-op.
func (p *Postgres) Delete(context.Context, uuid.UUID) error { return nil }
