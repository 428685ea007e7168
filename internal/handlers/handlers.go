// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the HTTP handlers of the blog, the members
// area and the admin area. Handlers read forms, call the services and
// render templates; every rule about who may do what lives in the services.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/middleware"
	"msdevblog/internal/render"
	"msdevblog/internal/service"
)

// Russian messages for the error page, by status.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "Некорректный запрос.",
	http.StatusForbidden:           "Доступ запрещён.",
	http.StatusNotFound:            "Страница не найдена.",
	http.StatusConflict:            "Конфликт данных.",
	http.StatusInternalServerError: "Внутренняя ошибка сервера.",
}

// base holds what every handler group needs to render a page.
type base struct {
	renderer *render.Renderer
	blog     *service.Blog
}

// sidebar loads the sidebar blocks. A failure only hides the sidebar.
func (b *base) sidebar(r *http.Request) *service.Sidebar {
	if b.blog == nil {
		return nil
	}
	sb, err := b.blog.Sidebar(r.Context())
	if err != nil {
		slog.Warn("sidebar unavailable", "error", err, "request_id", chimw.GetReqID(r.Context()))
		return nil
	}
	return sb
}

// page renders a page with the sidebar attached.
func (b *base) page(w http.ResponseWriter, r *http.Request, name string, data *render.PageData) {
	if data.Sidebar == nil {
		data.Sidebar = b.sidebar(r)
	}
	b.renderer.Page(w, r, name, data)
}

// formPage re-renders a form after a failed submission. Validation and
// conflict errors keep the values and show per-field messages; anything
// else goes to fail.
func (b *base) formPage(w http.ResponseWriter, r *http.Request, name string, data *render.PageData, err error) {
	errs, ok := formErrors(err)
	if !ok {
		b.fail(w, r, err)
		return
	}
	data.Errors = errs
	if data.Sidebar == nil {
		data.Sidebar = b.sidebar(r)
	}
	b.renderer.PageStatus(w, r, domainerrors.StatusOf(err), name, data)
}

// formErrors returns the messages to show next to the form fields. It
// reports false for errors a form cannot fix.
func formErrors(err error) (map[string]string, bool) {
	status := domainerrors.StatusOf(err)
	if status != http.StatusBadRequest && status != http.StatusConflict {
		return nil, false
	}
	errs := domainerrors.FieldErrors(err)
	if len(errs) == 0 {
		errs = map[string]string{"form": errorMessage(err)}
	}
	return errs, true
}

// fail maps an error to a response. Unauthorized sends the visitor to the
// login page; other domain errors render the error page with their status.
func (b *base) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := domainerrors.StatusOf(err)
	switch {
	case status == http.StatusUnauthorized:
		http.Redirect(w, r, loginURL(r), http.StatusSeeOther)
		return
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "path", r.URL.Path, "error", err, "request_id", chimw.GetReqID(r.Context()))
	default:
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	b.errorPage(w, r, status)
}

// errorPage renders the error page for a status.
func (b *base) errorPage(w http.ResponseWriter, r *http.Request, status int) {
	msg, ok := statusMessages[status]
	if !ok {
		msg = http.StatusText(status)
	}
	b.renderer.PageStatus(w, r, status, "errors/page", &render.PageData{
		Title: msg,
		Data:  map[string]any{"Status": status, "Message": msg},
	})
}

// NotFound renders the 404 page for unmatched routes.
func (b *base) NotFound(w http.ResponseWriter, r *http.Request) {
	b.errorPage(w, r, http.StatusNotFound)
}

// errorMessage returns the message of a domain error.
func errorMessage(err error) string {
	var derr *domainerrors.Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return err.Error()
}

// loginURL is the login page that brings the visitor back to r.
func loginURL(r *http.Request) string {
	return middleware.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// formValues collects the named fields of a submitted form.
func formValues(r *http.Request, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = r.FormValue(k)
	}
	return out
}

// pageParam reads ?page=. A missing value is the first page; anything that
// is not a positive number is NotFound.
func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > service.MaxPage {
		return 0, domainerrors.NotFound("invalid page")
	}
	return n, nil
}

// safeNext returns next when it is a local path, otherwise fallback. It
// keeps the login form from redirecting to other hosts.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json failed", "error", err)
	}
}
