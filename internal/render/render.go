// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the blog, the
// members area and the admin area. Every page is parsed together with the
// shared base layout and partials from the embedded filesystem.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"msdevblog/internal/markdown"
	"msdevblog/internal/middleware"
	"msdevblog/internal/policy"
	"msdevblog/internal/service"
)

//go:embed templates
var templateFS embed.FS

// SiteName is shown in the header and the page title.
const SiteName = "MS DevBlog"

// PageData holds all data passed to templates.
type PageData struct {
	Title     string            // Page title for <title> tag
	Section   string            // Active navigation item (e.g. "home", "feedback")
	Viewer    policy.Viewer     // Filled from the request context
	CSRFToken string            // Filled from the request context
	Sidebar   *service.Sidebar  // Categories, recent posts and tags; nil hides the sidebar
	Form      map[string]string // Submitted or current form values
	Errors    map[string]string // Per-field validation messages
	Data      map[string]any    // Page-specific data
	Flashes   []Flash           // One-time notification messages
}

// Flash represents a notification message displayed above the content.
type Flash struct {
	Type    string // "success", "error", "info"
	Message string
}

// Renderer handles template parsing and execution.
type Renderer struct {
	templates map[string]*template.Template
}

// funcs are the helpers available in every template.
var funcs = template.FuncMap{
	// markdown renders a post body. The renderer drops raw HTML.
	"markdown": func(src string) (template.HTML, error) {
		out, err := markdown.ToHTML(src)
		return template.HTML(out), err
	},
	"excerpt": markdown.Excerpt,
	"date": func(t time.Time) string {
		return t.Format("02.01.2006")
	},
	"datetime": func(t time.Time) string {
		return t.Format("02.01.2006 15:04")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	// pageURL sets ?page=n on a listing URL, keeping its other parameters.
	"pageURL": func(base string, n int) string {
		u, err := url.Parse(base)
		if err != nil {
			return base
		}
		q := u.Query()
		if n <= 1 {
			q.Del("page")
		} else {
			q.Set("page", strconv.Itoa(n))
		}
		u.RawQuery = q.Encode()
		return u.String()
	},
	"siteName": func() string { return SiteName },
	"year":     func() int { return time.Now().Year() },
}

// New parses every page template from the embedded filesystem. Pages are
// named by their path without extension, e.g. "blog/list".
func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}

	err := fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		rel := strings.TrimPrefix(p, "templates/")
		if !strings.Contains(rel, "/") || strings.HasPrefix(rel, "partials/") {
			return nil // layout and partials are parsed with every page
		}

		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS,
			"templates/base.html", "templates/partials/*.html", p)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", rel, err)
		}
		r.templates[strings.TrimSuffix(rel, ".html")] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Has reports whether a page template exists.
func (rn *Renderer) Has(name string) bool {
	_, ok := rn.templates[name]
	return ok
}

// Page renders a page with status 200.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	rn.PageStatus(w, r, http.StatusOK, name, data)
}

// PageStatus renders a page with the given status. The page is executed
// into a buffer first so that a template error still yields a clean 500.
func (rn *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = &PageData{}
	}
	data.CSRFToken = middleware.CSRFTokenFromCtx(r.Context())
	data.Viewer = middleware.ViewerFromCtx(r.Context())

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
