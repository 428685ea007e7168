// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// DefaultCategoryID is the category posts fall back to when theirs is deleted.
// It is created by the first migration and cannot be removed.
const DefaultCategoryID int64 = 1

// Category groups posts. Every post belongs to exactly one category.
type Category struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`

	// Virtual field populated by store methods.
	PostCount int `json:"post_count"`
}

// IsDefault reports whether c is the fallback category.
func (c *Category) IsDefault() bool {
	return c.ID == DefaultCategoryID
}

// Tag is a free-form label attached to posts. Tags are identified by slug;
// Name keeps the spelling first submitted.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Virtual field populated by store methods.
	PostCount int `json:"post_count"`
}
