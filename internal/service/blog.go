// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"msdevblog/internal/cache"
	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/search"
	"msdevblog/internal/slug"
	"msdevblog/internal/store"
	"msdevblog/internal/validation"
)

const (
	// RecentLimit is the size of the "new posts" sidebar block.
	RecentLimit = 5
	// FeedLimit is the number of items in the RSS feed.
	FeedLimit = 5
)

// BlogDeps wires a Blog. Cache and Log are optional.
type BlogDeps struct {
	Posts      PostRepo
	Categories CategoryRepo
	Tags       TagRepo
	Comments   CommentRepo
	Search     search.Searcher
	Cache      *cache.Cache
	Log        InvalidationLog
	Validator  *validation.Validator

	PageSize               int
	RequireVerifiedAuthors bool
}

// Blog implements reading, writing and commenting on posts.
type Blog struct {
	posts      PostRepo
	categories CategoryRepo
	tags       TagRepo
	comments   CommentRepo
	search     search.Searcher
	cache      *cache.Cache
	log        InvalidationLog
	validate   *validation.Validator

	pageSize        int
	requireVerified bool
}

// NewBlog creates the blog service.
func NewBlog(d BlogDeps) *Blog {
	if d.PageSize <= 0 {
		d.PageSize = 5
	}
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	return &Blog{
		posts:           d.Posts,
		categories:      d.Categories,
		tags:            d.Tags,
		comments:        d.Comments,
		search:          d.Search,
		cache:           d.Cache,
		log:             d.Log,
		validate:        d.Validator,
		pageSize:        d.PageSize,
		requireVerified: d.RequireVerifiedAuthors,
	}
}

// PageSize returns the number of posts per listing page.
func (b *Blog) PageSize() int { return b.pageSize }

// ListVisible returns the posts v may see in listings: published only,
// newest first, the same for every viewer. The second result is the total
// ignoring paging.
func (b *Blog) ListVisible(ctx context.Context, v policy.Viewer, f policy.Filter) ([]models.Post, int, error) {
	l := policy.VisibleListing(v, f)
	return b.posts.List(ctx, store.PostFilter{
		Status:       l.Status,
		CategorySlug: l.CategorySlug,
		TagSlug:      l.TagSlug,
		Limit:        l.Limit,
		Offset:       l.Offset,
	})
}

// Listing is a page of posts, optionally narrowed to a category or tag.
type Listing struct {
	Page
	Category *models.Category
	Tag      *models.Tag
}

// ListPage returns page number `page` of the visible listing. Unknown
// category or tag slugs are NotFound.
func (b *Blog) ListPage(ctx context.Context, v policy.Viewer, categorySlug, tagSlug string, page int) (*Listing, error) {
	out := &Listing{}
	if categorySlug != "" {
		c, err := b.categories.FindBySlug(ctx, categorySlug)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, domainerrors.NotFound("category not found")
		}
		out.Category = c
	}
	if tagSlug != "" {
		t, err := b.tags.FindBySlug(ctx, tagSlug)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, domainerrors.NotFound("tag not found")
		}
		out.Tag = t
	}

	number, off, err := offset(page, b.pageSize)
	if err != nil {
		return nil, err
	}
	posts, total, err := b.ListVisible(ctx, v, policy.Filter{
		CategorySlug: categorySlug,
		TagSlug:      tagSlug,
		Limit:        b.pageSize,
		Offset:       off,
	})
	if err != nil {
		return nil, err
	}
	out.Page = Page{Posts: posts, Total: total, Number: number, Size: b.pageSize}
	if number > 1 && number > out.Pages() {
		return nil, domainerrors.NotFound("page not found")
	}
	return out, nil
}

// Detail is a post opened by its direct link.
type Detail struct {
	Post       *models.Post
	Comments   []models.Comment
	IsAuthor   bool
	CanComment bool
}

// Detail returns the post with the given slug in any status. Drafts are
// unlisted, not private.
func (b *Blog) Detail(ctx context.Context, v policy.Viewer, postSlug string) (*Detail, error) {
	p, err := b.posts.FindBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if p == nil || !policy.CanView(v, p) {
		return nil, domainerrors.NotFound("post not found")
	}
	comments, err := b.comments.ListByPost(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{
		Post:       p,
		Comments:   comments,
		IsAuthor:   policy.IsAuthor(v, p),
		CanComment: policy.CanComment(v),
	}, nil
}

// PostInput is the submitted post form. An empty Slug is derived from the
// title; Tags is a comma separated list.
type PostInput struct {
	Title      string            `form:"title" validate:"notblank,max=255"`
	Slug       string            `form:"slug" validate:"max=255"`
	Body       string            `form:"body" validate:"notblank"`
	Status     models.PostStatus `form:"status" validate:"oneof=draft published"`
	CategoryID int64             `form:"category" validate:"gte=0"`
	Tags       string            `form:"tags"`
}

// FormFor fills a PostInput from an existing post, for the edit form.
func FormFor(p *models.Post) PostInput {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return PostInput{
		Title:      p.Title,
		Slug:       p.Slug,
		Body:       p.Body,
		Status:     p.Status,
		CategoryID: p.CategoryID,
		Tags:       strings.Join(names, ", "),
	}
}

// prepare validates in and derives the slug, the tags and the category.
func (b *Blog) prepare(ctx context.Context, in PostInput) (*models.Post, []slug.Tag, error) {
	if err := b.validate.Validate(in); err != nil {
		return nil, nil, err
	}

	s := slug.Generate(in.Slug)
	if strings.TrimSpace(in.Slug) == "" {
		s = slug.Generate(in.Title)
	}
	if s == "" {
		return nil, nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"slug": "must contain latin letters, cyrillic letters or digits",
		})
	}
	if len(s) > slug.MaxLength {
		return nil, nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"slug": fmt.Sprintf("URL is longer than %d characters after transliteration, enter a shorter one", slug.MaxLength),
		})
	}

	tags, err := slug.Tags(slug.Split(in.Tags))
	if err != nil {
		var collision *slug.CollisionError
		var empty *slug.EmptyError
		var tooLong *slug.TooLongError
		switch {
		case errors.As(err, &collision):
			return nil, nil, domainerrors.ValidationWithDetails("tag slugs collide", map[string]string{
				"tags": fmt.Sprintf("tags %s produce the same URL %q", strings.Join(collision.Names, " and "), collision.Slug),
			}).WithCause(err)
		case errors.As(err, &empty):
			return nil, nil, domainerrors.ValidationWithDetails("invalid tag", map[string]string{
				"tags": fmt.Sprintf("tag %q has no letters or digits", empty.Name),
			}).WithCause(err)
		case errors.As(err, &tooLong):
			return nil, nil, domainerrors.ValidationWithDetails("invalid tag", map[string]string{
				"tags": fmt.Sprintf("tag %q is longer than %d characters", tooLong.Name, slug.MaxTagLength),
			}).WithCause(err)
		}
		return nil, nil, err
	}

	category := in.CategoryID
	if category == 0 {
		category = models.DefaultCategoryID
	} else {
		c, err := b.categories.FindByID(ctx, category)
		if err != nil {
			return nil, nil, err
		}
		if c == nil {
			return nil, nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
				"category": "unknown category",
			})
		}
	}

	return &models.Post{
		CategoryID: category,
		Title:      strings.TrimSpace(in.Title),
		Slug:       s,
		Body:       in.Body,
		Status:     in.Status,
	}, tags, nil
}

// CreatePost writes a new post owned by v. Anonymous viewers are rejected
// before anything is validated or written.
func (b *Blog) CreatePost(ctx context.Context, v policy.Viewer, in PostInput) (*models.Post, error) {
	if err := policy.AuthorizeCreate(v, b.requireVerified); err != nil {
		return nil, err
	}
	p, tags, err := b.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	p.AuthorID = v.ID

	created, err := b.posts.Create(ctx, p, tags)
	if err != nil {
		return nil, err
	}
	b.reindex(ctx, created)
	b.invalidate(ctx, created.ID, "create")
	slog.Info("post created", "post_id", created.ID, "slug", created.Slug, "author", v.Username)
	return created, nil
}

// EditablePost returns the post with the given slug if v may edit it.
func (b *Blog) EditablePost(ctx context.Context, v policy.Viewer, postSlug string) (*models.Post, error) {
	p, err := b.posts.FindBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domainerrors.NotFound("post not found")
	}
	if err := policy.AuthorizeEdit(v, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePost replaces the editable fields of a post. Only its author may.
func (b *Blog) UpdatePost(ctx context.Context, v policy.Viewer, id uuid.UUID, in PostInput) (*models.Post, error) {
	existing, err := b.owned(ctx, v, id)
	if err != nil {
		return nil, err
	}
	p, tags, err := b.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.AuthorID = existing.AuthorID

	updated, err := b.posts.Update(ctx, p, tags)
	if err != nil {
		return nil, err
	}
	b.reindex(ctx, updated)
	b.invalidate(ctx, updated.ID, "update")
	slog.Info("post updated", "post_id", updated.ID, "slug", updated.Slug)
	return updated, nil
}

// DeletePost removes a post and its comments. Only its author may.
func (b *Blog) DeletePost(ctx context.Context, v policy.Viewer, id uuid.UUID) error {
	if _, err := b.owned(ctx, v, id); err != nil {
		return err
	}
	if err := b.posts.Delete(ctx, id); err != nil {
		return err
	}
	b.forget(ctx, id)
	slog.Info("post deleted", "post_id", id)
	return nil
}

// forget drops a deleted post from the search index and the caches.
func (b *Blog) forget(ctx context.Context, id uuid.UUID) {
	if b.search != nil {
		if err := b.search.Delete(ctx, id); err != nil {
			slog.Warn("search index delete failed", "post_id", id, "error", err)
		}
	}
	b.invalidate(ctx, id, "delete")
}

// owned loads a post and checks v may edit it. Missing posts are NotFound;
// other people's posts are Forbidden.
func (b *Blog) owned(ctx context.Context, v policy.Viewer, id uuid.UUID) (*models.Post, error) {
	if !v.Authenticated {
		return nil, policy.AuthorizeEdit(v, nil)
	}
	p, err := b.posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domainerrors.NotFound("post not found")
	}
	if err := policy.AuthorizeEdit(v, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CommentInput is the submitted comment form.
type CommentInput struct {
	Body     string     `form:"body" validate:"notblank,max=5000"`
	ParentID *uuid.UUID `form:"parent" validate:"-"`
}

// AddComment attaches a comment by v to a post. Viewers who may not comment
// (anonymous or unverified) get neither a comment nor an error. A reply's
// parent must belong to the same post.
func (b *Blog) AddComment(ctx context.Context, v policy.Viewer, postID uuid.UUID, in CommentInput) (*models.Comment, error) {
	if err := b.validate.Validate(in); err != nil {
		return nil, err
	}
	p, err := b.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domainerrors.NotFound("post not found")
	}
	if !policy.CanComment(v) {
		slog.Debug("comment discarded", "post_id", postID, "authenticated", v.Authenticated)
		return nil, nil
	}
	if in.ParentID != nil {
		parent, err := b.comments.FindByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.PostID != postID {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
				"parent": "must be a comment on the same post",
			})
		}
	}
	return b.comments.Create(ctx, &models.Comment{
		PostID:   postID,
		AuthorID: v.ID,
		ParentID: in.ParentID,
		Body:     strings.TrimSpace(in.Body),
	})
}

// Search returns page `page` of published posts matching text. Blank
// text yields nothing.
func (b *Blog) Search(ctx context.Context, _ policy.Viewer, text string, page int) (*Page, error) {
	number, off, err := offset(page, b.pageSize)
	if err != nil {
		return nil, err
	}
	posts, err := b.search.Search(ctx, search.Query{Text: text, Limit: b.pageSize + 1, Offset: off})
	if err != nil {
		return nil, err
	}
	// One extra row tells whether a next page exists without counting.
	total := off + len(posts)
	if len(posts) > b.pageSize {
		posts = posts[:b.pageSize]
	}
	return &Page{Posts: posts, Total: total, Number: number, Size: b.pageSize}, nil
}

// Recent returns the most recently updated published posts.
func (b *Blog) Recent(ctx context.Context) ([]models.Post, error) {
	return cache.ReadThrough(ctx, b.cache, cache.KeyRecentPosts, func(ctx context.Context) ([]models.Post, error) {
		return b.posts.Recent(ctx, RecentLimit)
	})
}

// Categories returns every category with its published post count.
func (b *Blog) Categories(ctx context.Context) ([]models.Category, error) {
	return cache.ReadThrough(ctx, b.cache, cache.KeyCategories, b.categories.List)
}

// Tags returns the tags used by published posts.
func (b *Blog) Tags(ctx context.Context) ([]models.Tag, error) {
	return cache.ReadThrough(ctx, b.cache, cache.KeyTags, b.tags.List)
}

// Feed returns the newest published posts for the RSS feed.
func (b *Blog) Feed(ctx context.Context) ([]models.Post, error) {
	posts, _, err := b.ListVisible(ctx, policy.Anonymous(), policy.Filter{Limit: FeedLimit})
	return posts, err
}

// Sidebar is the context shown next to every public page.
type Sidebar struct {
	Categories []models.Category
	Recent     []models.Post
	Tags       []models.Tag
}

// Sidebar loads the sidebar blocks concurrently.
func (b *Blog) Sidebar(ctx context.Context) (*Sidebar, error) {
	var sb Sidebar
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sb.Categories, err = b.Categories(gctx)
		return err
	})
	g.Go(func() (err error) {
		sb.Recent, err = b.Recent(gctx)
		return err
	})
	g.Go(func() (err error) {
		sb.Tags, err = b.Tags(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load sidebar: %w", err)
	}
	return &sb, nil
}

func (b *Blog) reindex(ctx context.Context, p *models.Post) {
	if b.search == nil {
		return
	}
	if err := b.search.Index(ctx, p); err != nil {
		slog.Warn("search index update failed", "post_id", p.ID, "error", err)
	}
}

// invalidate drops every cached value a post mutation can change.
func (b *Blog) invalidate(ctx context.Context, id uuid.UUID, action string) {
	b.cache.Invalidate(ctx, cache.KeyCategories, cache.KeyTags, cache.KeyRecentPosts, cache.KeyFeed)
	if b.log != nil {
		b.log.Log(ctx, "post", id.String(), action)
	}
}

// InvalidateTaxonomy drops cached values after a category or tag change
// made outside the post workflow.
func (b *Blog) InvalidateTaxonomy(ctx context.Context, entityType, id, action string) {
	b.cache.Invalidate(ctx, cache.KeyCategories, cache.KeyTags, cache.KeyRecentPosts, cache.KeyFeed)
	if b.log != nil {
		b.log.Log(ctx, entityType, id, action)
	}
}
