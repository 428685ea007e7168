// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"msdevblog/internal/adminconfig"
	"msdevblog/internal/cache"
	"msdevblog/internal/database"
	"msdevblog/internal/mail"
	"msdevblog/internal/middleware"
	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/render"
	"msdevblog/internal/search"
	"msdevblog/internal/service"
	"msdevblog/internal/session"
	"msdevblog/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "msdevblog")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "msdevblog")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"session:*", "blog:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB         *sql.DB
	Sessions   *session.Store
	Users      *store.UserStore
	Posts      *store.PostStore
	Categories *store.CategoryStore
	Blog       *Blog
	Members    *Members
	Admin      *Admin
	Feed       *Feed
}

// newTestEnv creates a complete test environment with all handler dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	adminCfg, err := adminconfig.Load()
	if err != nil {
		t.Fatalf("adminconfig.Load: %v", err)
	}

	sessions := session.NewStore(vk, false)
	users := store.NewUserStore(db)
	posts := store.NewPostStore(db)
	categories := store.NewCategoryStore(db)
	tags := store.NewTagStore(db)
	comments := store.NewCommentStore(db)
	cacheLog := store.NewCacheLogStore(db)
	c := cache.New(vk, time.Minute)
	notifier := mail.NewNotifier(mail.NewQueue(nil, mail.LogSender{}), "http://test.local", []string{"admin@test.local"})

	blog := service.NewBlog(service.BlogDeps{
		Posts:      posts,
		Categories: categories,
		Tags:       tags,
		Comments:   comments,
		Search:     search.NewPostgres(posts),
		Cache:      c,
		Log:        cacheLog,
		PageSize:   5,
	})
	members := service.NewMembers(service.MembersDeps{
		Users:     users,
		Notify:    notifier,
		Cache:     c,
		SecretKey: "handler-test-secret",
	})
	admin := service.NewAdmin(service.AdminDeps{
		Posts:      posts,
		Categories: categories,
		Tags:       tags,
		Users:      users,
		Comments:   comments,
		Audit:      cacheLog,
		Blog:       blog,
	})

	return &testEnv{
		DB:         db,
		Sessions:   sessions,
		Users:      users,
		Posts:      posts,
		Categories: categories,
		Blog:       NewBlog(renderer, blog, service.NewFeedback(notifier, nil)),
		Members:    NewMembers(renderer, blog, members, sessions),
		Admin:      NewAdmin(renderer, admin, adminCfg),
		Feed:       NewFeed(blog, c, "http://test.local"),
	}
}

// newUser registers a throwaway user and removes it when the test ends.
func (e *testEnv) newUser(t *testing.T, role models.Role, verified bool) *models.User {
	t.Helper()
	ctx := context.Background()
	name := "h" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	u, err := e.Users.Create(ctx, store.NewUser{
		Username: name,
		Email:    name + "@handler-test.local",
		Password: "password123",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if verified {
		if _, err := e.Users.MarkEmailVerified(ctx, u.ID); err != nil {
			t.Fatalf("verify user: %v", err)
		}
		u.EmailVerified = true
	}
	t.Cleanup(func() { e.Users.Delete(context.Background(), u.ID) })
	return u
}

// asViewer attaches the session and viewer of u to r, as the middleware
// chain would. A nil u is an anonymous visitor.
func asViewer(r *http.Request, u *models.User, twoFADone bool) *http.Request {
	if u == nil {
		return r
	}
	ctx := context.WithValue(r.Context(), middleware.SessionKey, &session.Data{
		UserID:    u.ID,
		Username:  u.Username,
		Staff:     u.IsStaff(),
		TwoFADone: twoFADone,
	})
	return r.WithContext(middleware.WithViewer(ctx, policy.ViewerFor(u)))
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// postForm builds a form-encoded POST request.
func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
