// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"msdevblog/internal/database"
	"msdevblog/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "msdevblog")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "msdevblog")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestUser registers a throwaway user and deletes it (with its posts and
// comments) when the test ends.
func newTestUser(t *testing.T, db *sql.DB, verified bool) *models.User {
	t.Helper()
	name := "u" + uuid.NewString()[:12]
	u, err := NewUserStore(db).Create(context.Background(), NewUser{
		Username: name,
		Email:    name + "@store-test.local",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	if verified {
		if _, err := NewUserStore(db).MarkEmailVerified(context.Background(), u.ID); err != nil {
			t.Fatalf("verify test user: %v", err)
		}
		u.EmailVerified = true
	}
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// newTestCategory creates a category removed when the test ends.
func newTestCategory(t *testing.T, db *sql.DB) *models.Category {
	t.Helper()
	s := "cat-" + uuid.NewString()[:8]
	c, err := NewCategoryStore(db).Create(context.Background(), "Category "+s, s)
	if err != nil {
		t.Fatalf("create test category: %v", err)
	}
	t.Cleanup(func() { db.Exec("DELETE FROM categories WHERE id = $1", c.ID) })
	return c
}

// cleanTags removes tags by slug. Call in t.Cleanup().
func cleanTags(t *testing.T, db *sql.DB, slugs ...string) {
	t.Helper()
	for _, s := range slugs {
		db.Exec("DELETE FROM tags WHERE slug = $1", s)
	}
}
