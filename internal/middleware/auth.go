// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"msdevblog/internal/models"
	"msdevblog/internal/policy"
	"msdevblog/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// SessionKey is the context key for the session data.
	SessionKey contextKey = "session"
	// ViewerKey is the context key for the resolved policy.Viewer.
	ViewerKey contextKey = "viewer"
)

// LoginPath is where RequireAuth sends anonymous visitors.
const LoginPath = "/members/login/"

// SessionLoader reads and drops sessions. *session.Store satisfies it.
type SessionLoader interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// UserFinder loads the user behind a session.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// LoadSession retrieves the session from Valkey and stores it in the
// request context. It does not enforce authentication.
func LoadSession(store SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("session lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if data != nil {
				r = r.WithContext(context.WithValue(r.Context(), SessionKey, data))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoadViewer resolves the session's user on every request so that
// email verification and role changes apply immediately. A session whose
// user no longer exists is destroyed and the request continues anonymous.
// Must run after LoadSession.
func LoadViewer(store SessionLoader, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer := policy.Anonymous()
			if sess := SessionFromCtx(r.Context()); sess != nil {
				user, err := users.FindByID(r.Context(), sess.UserID)
				if err != nil {
					slog.Error("load viewer", "error", err, "user_id", sess.UserID)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				if user == nil {
					if err := store.Destroy(r.Context(), w, r); err != nil {
						slog.Warn("destroy orphaned session", "error", err)
					}
					r = r.WithContext(context.WithValue(r.Context(), SessionKey, (*session.Data)(nil)))
				} else {
					viewer = policy.ViewerFor(user)
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ViewerKey, viewer)))
		})
	}
}

// RequireAuth redirects anonymous visitors to the login page, carrying the
// requested path in ?next=. Must be applied after LoadViewer.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ViewerFromCtx(r.Context()).Authenticated {
			http.Redirect(w, r, LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require2FA redirects sessions that have not passed the second factor to
// the 2FA page. Must be applied after RequireAuth.
func Require2FA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if sess != nil && !sess.TwoFADone {
			http.Redirect(w, r, "/admin/2fa/setup", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff returns 403 unless the viewer is staff.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ViewerFromCtx(r.Context()).Staff {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromCtx extracts the session data from the request context.
// Returns nil if no session is loaded.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}

// ViewerFromCtx returns the viewer resolved by LoadViewer, or an anonymous
// viewer when none is present.
func ViewerFromCtx(ctx context.Context) policy.Viewer {
	v, ok := ctx.Value(ViewerKey).(policy.Viewer)
	if !ok {
		return policy.Anonymous()
	}
	return v
}

// WithViewer returns ctx carrying v, as LoadViewer would.
func WithViewer(ctx context.Context, v policy.Viewer) context.Context {
	return context.WithValue(ctx, ViewerKey, v)
}
