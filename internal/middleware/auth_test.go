// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/session"
)

// fakeSessions serves a fixed session and records Destroy calls.
type fakeSessions struct {
	data      *session.Data
	err       error
	destroyed bool
}

func (f *fakeSessions) Get(context.Context, *http.Request) (*session.Data, error) {
	return f.data, f.err
}

func (f *fakeSessions) Destroy(context.Context, http.ResponseWriter, *http.Request) error {
	f.destroyed = true
	return nil
}

// fakeUsers is an in-memory UserFinder.
type fakeUsers struct {
	users map[uuid.UUID]*models.User
	err   error
}

func (f fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func newTestSession(staff, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:    uuid.New(),
		Username:  "ivan",
		Staff:     staff,
		TwoFADone: twoFADone,
	}
}

func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, SessionKey, data)
}

// okHandler is a simple handler that records whether it was invoked.
func okHandler() (http.Handler, *bool) {
	var called bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	return h, &called
}

func TestSessionFromCtx(t *testing.T) {
	t.Run("returns session when present", func(t *testing.T) {
		sess := newTestSession(true, true)
		got := SessionFromCtx(ctxWithSession(context.Background(), sess))
		if got == nil || got.UserID != sess.UserID {
			t.Fatalf("got %+v, want %+v", got, sess)
		}
	})

	t.Run("returns nil when not present", func(t *testing.T) {
		if got := SessionFromCtx(context.Background()); got != nil {
			t.Errorf("expected nil session, got %+v", got)
		}
	})

	t.Run("returns nil for wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), SessionKey, "not-a-session")
		if got := SessionFromCtx(ctx); got != nil {
			t.Errorf("expected nil for wrong type, got %+v", got)
		}
	})
}

func TestLoadSession(t *testing.T) {
	t.Run("stores session in context", func(t *testing.T) {
		sess := newTestSession(false, false)
		var got *session.Data
		h := LoadSession(&fakeSessions{data: sess})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = SessionFromCtx(r.Context())
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if got != sess {
			t.Errorf("session = %+v, want %+v", got, sess)
		}
	})

	t.Run("store error continues anonymous", func(t *testing.T) {
		inner, called := okHandler()
		h := LoadSession(&fakeSessions{err: errors.New("valkey down")})(inner)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if !*called || rr.Code != http.StatusOK {
			t.Errorf("called=%v code=%d, want handler to run", *called, rr.Code)
		}
	})
}

func TestLoadViewer(t *testing.T) {
	sess := newTestSession(false, false)
	user := &models.User{ID: sess.UserID, Username: "ivan", EmailVerified: true, Role: models.RoleMember}

	serve := func(store *fakeSessions, users fakeUsers, withSession bool) (policy.Viewer, *session.Data, *httptest.ResponseRecorder) {
		var v policy.Viewer
		var s *session.Data
		h := LoadViewer(store, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v = ViewerFromCtx(r.Context())
			s = SessionFromCtx(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if withSession {
			req = req.WithContext(ctxWithSession(req.Context(), sess))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return v, s, rr
	}

	t.Run("no session is anonymous", func(t *testing.T) {
		v, _, _ := serve(&fakeSessions{}, fakeUsers{}, false)
		if v.Authenticated {
			t.Errorf("viewer = %+v, want anonymous", v)
		}
	})

	t.Run("fresh user fields", func(t *testing.T) {
		v, _, _ := serve(&fakeSessions{}, fakeUsers{users: map[uuid.UUID]*models.User{user.ID: user}}, true)
		if !v.Authenticated || v.ID != user.ID || !v.EmailVerified || v.Staff {
			t.Errorf("viewer = %+v", v)
		}
	})

	t.Run("deleted user drops the session", func(t *testing.T) {
		store := &fakeSessions{}
		v, s, _ := serve(store, fakeUsers{}, true)
		if v.Authenticated || s != nil {
			t.Errorf("viewer = %+v session = %+v, want anonymous", v, s)
		}
		if !store.destroyed {
			t.Error("orphaned session should be destroyed")
		}
	})

	t.Run("lookup error is 500", func(t *testing.T) {
		_, _, rr := serve(&fakeSessions{}, fakeUsers{err: errors.New("db down")}, true)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rr.Code)
		}
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("redirects to login with next", func(t *testing.T) {
		inner, called := okHandler()
		req := httptest.NewRequest(http.MethodGet, "/blog/new/?draft=1", nil)
		rr := httptest.NewRecorder()
		RequireAuth(inner).ServeHTTP(rr, req)

		if *called {
			t.Error("next handler should NOT have been called")
		}
		if rr.Code != http.StatusSeeOther {
			t.Errorf("status: got %d, want %d", rr.Code, http.StatusSeeOther)
		}
		want := "/members/login/?next=%2Fblog%2Fnew%2F%3Fdraft%3D1"
		if loc := rr.Header().Get("Location"); loc != want {
			t.Errorf("redirect location: got %q, want %q", loc, want)
		}
	})

	t.Run("passes through authenticated viewer", func(t *testing.T) {
		inner, called := okHandler()
		req := httptest.NewRequest(http.MethodGet, "/blog/new/", nil)
		req = req.WithContext(WithViewer(req.Context(), policy.Viewer{ID: uuid.New(), Authenticated: true}))
		rr := httptest.NewRecorder()
		RequireAuth(inner).ServeHTTP(rr, req)

		if !*called || rr.Code != http.StatusOK {
			t.Errorf("called=%v code=%d", *called, rr.Code)
		}
	})
}

func TestRequire2FA(t *testing.T) {
	tests := []struct {
		name           string
		session        *session.Data
		wantCode       int
		wantNextCalled bool
	}{
		{"redirects when second factor pending", newTestSession(true, false), http.StatusSeeOther, false},
		{"passes through when done", newTestSession(true, true), http.StatusOK, true},
		{"passes through without session", nil, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, called := okHandler()
			req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
			if tt.session != nil {
				req = req.WithContext(ctxWithSession(req.Context(), tt.session))
			}
			rr := httptest.NewRecorder()
			Require2FA(inner).ServeHTTP(rr, req)

			if *called != tt.wantNextCalled {
				t.Errorf("next handler called: got %v, want %v", *called, tt.wantNextCalled)
			}
			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusSeeOther && rr.Header().Get("Location") != "/admin/2fa/setup" {
				t.Errorf("redirect location: got %q", rr.Header().Get("Location"))
			}
		})
	}
}

func TestRequireStaff(t *testing.T) {
	tests := []struct {
		name     string
		viewer   policy.Viewer
		wantCode int
	}{
		{"anonymous", policy.Anonymous(), http.StatusForbidden},
		{"member", policy.Viewer{ID: uuid.New(), Authenticated: true}, http.StatusForbidden},
		{"staff", policy.Viewer{ID: uuid.New(), Authenticated: true, Staff: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, called := okHandler()
			req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
			req = req.WithContext(WithViewer(req.Context(), tt.viewer))
			rr := httptest.NewRecorder()
			RequireStaff(inner).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			if *called != (tt.wantCode == http.StatusOK) {
				t.Errorf("next handler called = %v", *called)
			}
		})
	}
}
