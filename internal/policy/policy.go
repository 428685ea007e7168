// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package policy decides who may see, edit and comment on posts. Every
// predicate takes the viewer explicitly; nothing here reads request state
// or touches storage.
//
// Posts are unlisted-not-private: drafts never appear in listings, feeds or
// search, but anyone holding the direct link can open them.
package policy

import (
	"github.com/google/uuid"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
)

// Viewer is the identity a decision is made for. The zero value is an
// anonymous visitor.
type Viewer struct {
	ID            uuid.UUID
	Username      string
	Authenticated bool
	EmailVerified bool
	Staff         bool
}

// Anonymous returns the viewer for a visitor without a session.
func Anonymous() Viewer {
	return Viewer{}
}

// ViewerFor builds a viewer from a freshly loaded user. A nil user is anonymous.
func ViewerFor(u *models.User) Viewer {
	if u == nil {
		return Anonymous()
	}
	return Viewer{
		ID:            u.ID,
		Username:      u.Username,
		Authenticated: true,
		EmailVerified: u.EmailVerified,
		Staff:         u.IsStaff(),
	}
}

// CanView reports whether v may open p by direct link. Always true.
func CanView(v Viewer, p *models.Post) bool {
	return true
}

// IsAuthor reports whether v wrote p. Used only to show edit affordances.
func IsAuthor(v Viewer, p *models.Post) bool {
	return v.Authenticated && p != nil && v.ID == p.AuthorID
}

// CanEdit reports whether v may update or delete p: only its author can.
func CanEdit(v Viewer, p *models.Post) bool {
	return IsAuthor(v, p)
}

// CanCreate reports whether v may write new posts. When requireVerified is
// set, members must also have confirmed their email address.
func CanCreate(v Viewer, requireVerified bool) bool {
	if !v.Authenticated {
		return false
	}
	return !requireVerified || v.EmailVerified
}

// CanComment reports whether v may leave comments.
func CanComment(v Viewer) bool {
	return v.Authenticated && v.EmailVerified
}

// AuthorizeCreate returns an error when v may not create posts.
func AuthorizeCreate(v Viewer, requireVerified bool) error {
	if !v.Authenticated {
		return domainerrors.Unauthorized("sign in to write posts")
	}
	if !CanCreate(v, requireVerified) {
		return domainerrors.Forbidden("confirm your email address before writing posts")
	}
	return nil
}

// AuthorizeEdit returns an error when v may not update or delete p.
// Anonymous viewers get Unauthorized; everyone else who is not the author
// gets Forbidden.
func AuthorizeEdit(v Viewer, p *models.Post) error {
	if !v.Authenticated {
		return domainerrors.Unauthorized("sign in to edit posts")
	}
	if !CanEdit(v, p) {
		return domainerrors.Forbidden("only the author can change this post")
	}
	return nil
}

// Filter narrows a post listing. Zero values mean "no constraint".
type Filter struct {
	CategorySlug string
	TagSlug      string
	Limit        int
	Offset       int
}

// Listing is the query every public listing runs: published posts only,
// narrowed by the caller's filter. It is the same for every viewer.
type Listing struct {
	Status       models.PostStatus
	CategorySlug string
	TagSlug      string
	Limit        int
	Offset       int
}

// VisibleListing turns a filter into the listing query for any viewer.
// The viewer is accepted to keep call sites explicit; it never widens
// the result.
func VisibleListing(_ Viewer, f Filter) Listing {
	return Listing{
		Status:       models.PostStatusPublished,
		CategorySlug: f.CategorySlug,
		TagSlug:      f.TagSlug,
		Limit:        f.Limit,
		Offset:       f.Offset,
	}
}
