// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains of the blog.
// It organizes routes into the public blog, the members area and the
// staff-only admin area.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"msdevblog/internal/handlers"
	"msdevblog/internal/middleware"
	"msdevblog/web"
)

// Deps is everything the router wires together.
type Deps struct {
	Sessions middleware.SessionLoader
	Users    middleware.UserFinder

	Blog    *handlers.Blog
	Members *handlers.Members
	Admin   *handlers.Admin
	Auth    *handlers.Auth
	Feed    http.Handler
	Upload  *handlers.Upload

	// Limiter throttles login, registration and password reset posts.
	Limiter *middleware.RateLimiter
	// SecureCookies marks the CSRF cookie HTTPS-only.
	SecureCookies bool
	// ImageOrigin is the upload bucket's origin, allowed by the CSP.
	ImageOrigin string
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders(d.ImageOrigin))

	r.Get("/health", healthHandler)
	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(d.SecureCookies))
		r.Use(middleware.LoadSession(d.Sessions))
		r.Use(middleware.LoadViewer(d.Sessions, d.Users))

		r.NotFound(d.Blog.NotFound)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/blog/", http.StatusMovedPermanently)
		})

		r.Route("/blog", func(r chi.Router) {
			r.NotFound(d.Blog.NotFound)
			r.Get("/", d.Blog.Home)
			r.Handle("/feed/", d.Feed)
			r.Get("/search/", d.Blog.Search)
			r.Post("/search/", d.Blog.SearchSubmit)
			r.Get("/feedback/", d.Blog.Feedback)
			r.Post("/feedback/", d.Blog.FeedbackSubmit)
			r.Get("/about/", d.Blog.About)
			r.Get("/by-category/{slug}/", d.Blog.ByCategory)
			r.Get("/by-tag/{slug}/", d.Blog.ByTag)

			// Writing requires a signed-in member.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/new-post/", d.Blog.NewPost)
				r.Post("/new-post/", d.Blog.CreatePost)
				r.Get("/update-post/{slug}/", d.Blog.EditPost)
				r.Post("/update-post/{slug}/", d.Blog.UpdatePost)
				r.Post("/delete-post/{id}/", d.Blog.DeletePost)
				r.Post("/upload/", d.Upload.Image)
			})

			// Comments are posted to the post's own URL.
			r.Get("/{slug}/", d.Blog.Detail)
			r.Post("/{slug}/", d.Blog.Comment)
		})

		r.Route("/members", func(r chi.Router) {
			r.NotFound(d.Blog.NotFound)
			r.Get("/login/", d.Members.LoginPage)
			r.Post("/logout/", d.Members.Logout)
			r.Get("/register/", d.Members.RegisterPage)
			r.Get("/register/activate/{sign}/", d.Members.Activate)
			r.Get("/password_reset/", d.Members.ResetPage)
			r.Get("/password_reset/done/", d.Members.ResetSent)
			r.Get("/password-reset/{token}/", d.Members.ResetConfirmPage)
			r.Post("/password-reset/{token}/", d.Members.ResetConfirmSubmit)

			r.Group(func(r chi.Router) {
				if d.Limiter != nil {
					r.Use(d.Limiter.Middleware)
				}
				r.Post("/login/", d.Members.LoginSubmit)
				r.Post("/register/", d.Members.RegisterSubmit)
				r.Post("/password_reset/", d.Members.ResetSubmit)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/profile/", d.Members.Profile)
				r.Get("/update-profile/", d.Members.EditProfile)
				r.Post("/update-profile/", d.Members.UpdateProfile)
				r.Post("/repeat-send-email/", d.Members.ResendActivation)
				r.Get("/password/", d.Members.PasswordPage)
				r.Post("/password/", d.Members.PasswordSubmit)
				r.Get("/password-success/", d.Members.PasswordDone)
				r.Get("/delete/", d.Members.DeletePage)
				r.Post("/delete/", d.Members.DeleteSubmit)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireStaff)
			r.NotFound(d.Blog.NotFound)

			// 2FA, before the second factor is done.
			r.Get("/2fa/setup", d.Auth.TwoFASetupPage)
			r.Get("/2fa/verify", d.Auth.TwoFAVerifyPage)
			r.Post("/2fa/verify", d.Auth.TwoFAVerifySubmit)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Require2FA)

				r.Get("/", d.Admin.Dashboard)

				r.Get("/posts/", d.Admin.Posts)
				r.Post("/posts/{id}/delete", d.Admin.DeletePost)

				r.Get("/categories/", d.Admin.Categories)
				r.Post("/categories/", d.Admin.CreateCategory)
				r.Post("/categories/{id}/delete", d.Admin.DeleteCategory)

				r.Get("/tags/", d.Admin.Tags)
				r.Post("/tags/{id}/delete", d.Admin.DeleteTag)

				r.Get("/users/", d.Admin.Users)
				r.Post("/users/{id}/delete", d.Admin.DeleteUser)
				r.Post("/users/{id}/role", d.Admin.SetRole)
				r.Post("/users/{id}/reset-2fa", d.Admin.ResetTwoFA)

				r.Get("/comments/", d.Admin.Comments)
			})
		})
	})

	return r
}

// staticHandler serves the embedded web/static tree under /static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
