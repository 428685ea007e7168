// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus represents the publishing state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Label returns the human readable status name.
func (s PostStatus) Label() string {
	switch s {
	case PostStatusDraft:
		return "Черновик"
	case PostStatusPublished:
		return "Опубликовано"
	}
	return string(s)
}

// Post is a blog entry. Slugs are unique per creation day (UTC), so the
// same slug can be reused on different days.
type Post struct {
	ID         uuid.UUID  `json:"id"`
	AuthorID   uuid.UUID  `json:"author_id"`
	CategoryID int64      `json:"category_id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Body       string     `json:"body"`
	Status     PostStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Virtual fields populated by store methods.
	AuthorUsername string `json:"author_username,omitempty"`
	CategoryTitle  string `json:"category_title,omitempty"`
	CategorySlug   string `json:"category_slug,omitempty"`
	Tags           []Tag  `json:"tags,omitempty"`
}

// IsPublished returns true if the post is in published status.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// Comment is a reader's remark on a post. Comments are never edited.
type Comment struct {
	ID        uuid.UUID  `json:"id"`
	PostID    uuid.UUID  `json:"post_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`

	// Virtual field populated by store methods.
	AuthorUsername string `json:"author_username,omitempty"`
}
