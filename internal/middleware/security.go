// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"strings"
)

// SecureHeaders adds security headers to every response. imageOrigins are
// extra hosts post bodies may load images from, such as the upload bucket.
func SecureHeaders(imageOrigins ...string) func(http.Handler) http.Handler {
	img := "img-src 'self' data:"
	for _, o := range imageOrigins {
		if o = strings.TrimSpace(o); o != "" {
			img += " " + o
		}
	}
	csp := strings.Join([]string{
		"default-src 'self'",
		img,
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self'",
		"frame-ancestors 'self'",
		"form-action 'self'",
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			// Legacy XSS filter off; CSP covers it.
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "interest-cohort=()")
			h.Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}
