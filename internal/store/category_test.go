// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"testing"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/models"
)

func TestCategoryStoreListCountsPublished(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	author := newTestUser(t, db, true)
	cat := newTestCategory(t, db)
	posts := NewPostStore(db)

	for _, status := range []models.PostStatus{models.PostStatusPublished, models.PostStatusDraft} {
		if _, err := posts.Create(ctx, newPost(author.ID, cat.ID, "Counted", status), nil); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	list, err := NewCategoryStore(db).List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) == 0 || list[0].ID != models.DefaultCategoryID {
		t.Fatal("the default category should be listed first")
	}
	for _, c := range list {
		if c.ID == cat.ID && c.PostCount != 1 {
			t.Errorf("post count: got %d, want 1 (drafts excluded)", c.PostCount)
		}
	}
}

func TestCategoryStoreFindAndConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)
	cat := newTestCategory(t, db)

	found, err := s.FindBySlug(ctx, cat.Slug)
	if err != nil || found == nil || found.ID != cat.ID {
		t.Fatalf("FindBySlug: %v, %v", found, err)
	}
	missing, err := s.FindByID(ctx, -1)
	if err != nil || missing != nil {
		t.Errorf("FindByID (missing) = %v, %v", missing, err)
	}

	if _, err := s.Create(ctx, "Dup", cat.Slug); !domainerrors.Is(err, domainerrors.ErrConflict) {
		t.Errorf("duplicate slug: want conflict, got %v", err)
	}
}
