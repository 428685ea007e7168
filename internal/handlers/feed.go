// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"msdevblog/internal/cache"
	"msdevblog/internal/markdown"
	"msdevblog/internal/models"
	"msdevblog/internal/service"
)

// feedExcerptWords is the length of an item description.
const feedExcerptWords = 30

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// Feed serves the RSS feed of the newest published posts.
type Feed struct {
	blog    *service.Blog
	cache   *cache.Cache
	siteURL string
}

// NewFeed creates the feed handler. The rendered document is kept in the
// cache until a post changes.
func NewFeed(blog *service.Blog, c *cache.Cache, siteURL string) *Feed {
	return &Feed{blog: blog, cache: c, siteURL: siteURL}
}

// ServeHTTP writes the feed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := f.cache.Get(r.Context(), cache.KeyFeed)
	if !ok {
		posts, err := f.blog.Feed(r.Context())
		if err != nil {
			slog.Error("load feed failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		body, err = buildFeed(f.siteURL, posts)
		if err != nil {
			slog.Error("encode feed failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		f.cache.Set(r.Context(), cache.KeyFeed, body)
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(body)
}

// buildFeed renders posts as an RSS 2.0 document.
func buildFeed(siteURL string, posts []models.Post) ([]byte, error) {
	ch := rssChannel{
		Title:       "MS DevBlog",
		Link:        siteURL + "/blog/",
		Description: "Новые посты на сайте MSDevBlog.",
		Language:    "ru",
	}
	for _, p := range posts {
		link := siteURL + "/blog/" + p.Slug + "/"
		ch.Items = append(ch.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: markdown.Excerpt(p.Body, feedExcerptWords),
			PubDate:     p.CreatedAt.Format(time.RFC1123Z),
			GUID:        link,
		})
	}
	if len(posts) > 0 {
		ch.LastBuildDate = posts[0].CreatedAt.Format(time.RFC1123Z)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(rss{Version: "2.0", Channel: ch}); err != nil {
		return nil, fmt.Errorf("encode rss: %w", err)
	}
	return buf.Bytes(), nil
}
