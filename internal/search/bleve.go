// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"msdevblog/internal/models"
)

// PostLoader fetches indexed posts back from the database.
type PostLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

// Bleve is an embedded bleve index of posts. Hits are loaded back through
// PostLoader so results always reflect the stored post.
type Bleve struct {
	mu    sync.RWMutex
	index bleve.Index
	posts PostLoader
}

// document is the indexed shape of a post.
type document struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Status   string   `json:"status"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = ru.AnalyzerName

	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = ru.AnalyzerName
	doc.AddFieldMappingsAt("title", title)

	body := bleve.NewTextFieldMapping()
	body.Analyzer = ru.AnalyzerName
	body.Store = false
	doc.AddFieldMappingsAt("body", body)

	// Exact-match filter fields.
	for _, name := range []string{"status", "category", "tags"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		doc.AddFieldMappingsAt(name, f)
	}

	im.AddDocumentMapping("_default", doc)
	return im
}

// NewBleve opens the index at path, creating it when missing. An empty path
// keeps the index in memory.
func NewBleve(path string, posts PostLoader) (*Bleve, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = bleve.Open(path)
		} else {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	slog.Info("search index ready", "path", path)
	return &Bleve{index: idx, posts: posts}, nil
}

// Close releases the index.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

func toDocument(p *models.Post) document {
	tags := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = t.Slug
	}
	return document{
		Title:    p.Title,
		Body:     p.Body,
		Status:   string(p.Status),
		Category: p.CategorySlug,
		Tags:     tags,
	}
}

// Index adds or replaces a post in the index.
func (b *Bleve) Index(_ context.Context, p *models.Post) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.index.Index(p.ID.String(), toDocument(p)); err != nil {
		return fmt.Errorf("index post: %w", err)
	}
	return nil
}

// Delete removes a post from the index.
func (b *Bleve) Delete(_ context.Context, id uuid.UUID) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.index.Delete(id.String()); err != nil {
		return fmt.Errorf("delete indexed post: %w", err)
	}
	return nil
}

// Reindex indexes posts in one batch.
func (b *Bleve) Reindex(_ context.Context, posts []models.Post) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	batch := b.index.NewBatch()
	for i := range posts {
		if err := batch.Index(posts[i].ID.String(), toDocument(&posts[i])); err != nil {
			return fmt.Errorf("batch index %s: %w", posts[i].ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}
	slog.Info("search index rebuilt", "posts", len(posts))
	return nil
}

// buildQuery matches text against title and body and always requires a
// published status, plus the optional category and tag filters.
func buildQuery(q Query) query.Query {
	title := bleve.NewMatchQuery(q.Text)
	title.SetField("title")
	title.SetBoost(2.0)
	body := bleve.NewMatchQuery(q.Text)
	body.SetField("body")

	status := bleve.NewTermQuery(string(models.PostStatusPublished))
	status.SetField("status")

	must := []query.Query{bleve.NewDisjunctionQuery(title, body), status}
	if q.CategorySlug != "" {
		c := bleve.NewTermQuery(q.CategorySlug)
		c.SetField("category")
		must = append(must, c)
	}
	if q.TagSlug != "" {
		t := bleve.NewTermQuery(q.TagSlug)
		t.SetField("tags")
		must = append(must, t)
	}
	return bleve.NewConjunctionQuery(must...)
}

// staleRetries bounds how often Search re-runs a query after repairing
// hits that no longer match the database.
const staleRetries = 3

// Search returns published posts matching q ordered by score. Hits whose
// post was deleted or unpublished since indexing are repaired in the index
// and the query is run again, so a page is never short because of them.
func (b *Bleve) Search(ctx context.Context, q Query) ([]models.Post, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, nil
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	for attempt := 0; ; attempt++ {
		posts, stale, err := b.search(ctx, q)
		if err != nil {
			return nil, err
		}
		if stale == 0 || attempt == staleRetries {
			return posts, nil
		}
		slog.Info("search index repaired stale hits", "count", stale)
	}
}

// search runs q once. It returns the live published posts among the hits
// and how many stale hits it repaired.
func (b *Bleve) search(ctx context.Context, q Query) ([]models.Post, int, error) {
	b.mu.RLock()
	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, q.Offset, false)
	req.SortBy([]string{"-_score"})
	res, err := b.index.SearchInContext(ctx, req)
	b.mu.RUnlock()
	if err != nil {
		return nil, 0, fmt.Errorf("execute search: %w", err)
	}

	posts := make([]models.Post, 0, len(res.Hits))
	stale := 0
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			if err := b.deleteDoc(hit.ID); err != nil {
				return nil, 0, err
			}
			stale++
			continue
		}
		p, err := b.posts.FindByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		switch {
		case p == nil:
			err = b.deleteDoc(hit.ID)
		case !p.IsPublished():
			// Reindexing stores the current status, which the query excludes.
			err = b.Index(ctx, p)
		default:
			posts = append(posts, *p)
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		stale++
	}
	return posts, stale, nil
}

func (b *Bleve) deleteDoc(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.index.Delete(id); err != nil {
		return fmt.Errorf("delete stale hit %s: %w", id, err)
	}
	return nil
}
