// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"msdevblog/internal/adminconfig"
	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/markdown"
	"msdevblog/internal/middleware"
	"msdevblog/internal/models"
	"msdevblog/internal/render"
	"msdevblog/internal/service"
)

// Admin groups the staff-only management handlers.
type Admin struct {
	base
	admin  *service.Admin
	config *adminconfig.Config
}

// NewAdmin creates the admin handler group.
func NewAdmin(renderer *render.Renderer, admin *service.Admin, config *adminconfig.Config) *Admin {
	return &Admin{
		base:   base{renderer: renderer},
		admin:  admin,
		config: config,
	}
}

// rowAction is a button next to a listed object.
type rowAction struct {
	Path   string // relative to the section URL
	Label  string
	Danger bool
	Field  string // optional hidden field sent with the action
	Value  string
}

// tableRow is a listed object with its cells in column order.
type tableRow struct {
	ID      string
	Cells   []string
	Actions []rowAction
}

// table is everything admin/list needs.
type table struct {
	Entity    *adminconfig.Entity
	Base      string
	Columns   []adminconfig.Column
	Rows      []tableRow
	Filters   []adminconfig.Filter
	Query     string
	CanCreate bool
	SlugHint  string
}

// Dashboard renders the counters and the latest cache invalidations.
func (h *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.admin.Dashboard(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.Page(w, r, "admin/dashboard", &render.PageData{
		Title:   "Администрирование",
		Section: "admin",
		Data:    map[string]any{"Dashboard": d},
	})
}

// list renders an entity listing, narrowed by the query string.
func (h *Admin) list(w http.ResponseWriter, r *http.Request, status int, name string, rows []adminconfig.Row, actions func(adminconfig.Row) []rowAction, data *render.PageData) {
	e, ok := h.config.Entity(name)
	if !ok {
		h.errorPage(w, r, http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	t := &table{
		Entity:  e,
		Base:    "/admin/" + name + "/",
		Columns: e.Columns(),
		Filters: e.Filters(rows, q),
		Query:   q.Get("q"),
	}
	for _, row := range e.Apply(rows, q) {
		tr := tableRow{ID: row.ID, Cells: e.Cells(row)}
		if actions != nil {
			tr.Actions = actions(row)
		}
		t.Rows = append(t.Rows, tr)
	}
	if src := e.Prepopulate("slug"); src != "" {
		t.CanCreate = name == "categories"
		t.SlugHint = "URL (по умолчанию из поля «" + e.Label(src) + "»)"
	}

	if data == nil {
		data = &render.PageData{}
	}
	data.Title = e.Title
	data.Section = "admin"
	if data.Data == nil {
		data.Data = map[string]any{}
	}
	data.Data["Table"] = t
	h.renderer.PageStatus(w, r, status, "admin/list", data)
}

func deleteAction(id string) rowAction {
	return rowAction{Path: id + "/delete", Label: "Удалить", Danger: true}
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}

// Posts lists every post in any status.
func (h *Admin) Posts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.admin.AllPosts(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := make([]adminconfig.Row, 0, len(posts))
	for _, p := range posts {
		tags := ""
		for i, t := range p.Tags {
			if i > 0 {
				tags += ", "
			}
			tags += t.Name
		}
		rows = append(rows, adminconfig.Row{ID: p.ID.String(), Values: map[string]string{
			"title":    p.Title,
			"slug":     p.Slug,
			"author":   p.AuthorUsername,
			"category": p.CategoryTitle,
			"status":   p.Status.Label(),
			"tags":     tags,
			"body":     p.Body,
			"created":  p.CreatedAt.Format("02.01.2006 15:04"),
			"updated":  p.UpdatedAt.Format("02.01.2006 15:04"),
		}})
	}
	h.list(w, r, http.StatusOK, "posts", rows, func(row adminconfig.Row) []rowAction {
		return []rowAction{deleteAction(row.ID)}
	}, nil)
}

// DeletePost removes any post.
func (h *Admin) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errorPage(w, r, http.StatusNotFound)
		return
	}
	if err := h.admin.DeletePost(r.Context(), middleware.ViewerFromCtx(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/posts/", http.StatusSeeOther)
}

// categories lists categories; the default one cannot be deleted.
func (h *Admin) categories(w http.ResponseWriter, r *http.Request, status int, data *render.PageData) {
	cats, err := h.admin.AllCategories(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := make([]adminconfig.Row, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, adminconfig.Row{ID: strconv.FormatInt(c.ID, 10), Values: map[string]string{
			"id":    strconv.FormatInt(c.ID, 10),
			"title": c.Title,
			"slug":  c.Slug,
			"posts": strconv.Itoa(c.PostCount),
		}})
	}
	h.list(w, r, status, "categories", rows, func(row adminconfig.Row) []rowAction {
		if row.ID == strconv.FormatInt(models.DefaultCategoryID, 10) {
			return nil
		}
		return []rowAction{deleteAction(row.ID)}
	}, data)
}

// Categories lists categories with the create form.
func (h *Admin) Categories(w http.ResponseWriter, r *http.Request) {
	h.categories(w, r, http.StatusOK, nil)
}

// CreateCategory adds a category.
func (h *Admin) CreateCategory(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "title", "slug")
	_, err := h.admin.CreateCategory(r.Context(), middleware.ViewerFromCtx(r.Context()), service.CategoryInput{
		Title: form["title"],
		Slug:  form["slug"],
	})
	if err != nil {
		if errs, ok := formErrors(err); ok {
			h.categories(w, r, domainerrors.StatusOf(err), &render.PageData{Form: form, Errors: errs})
			return
		}
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/categories/", http.StatusSeeOther)
}

// DeleteCategory removes a category; its posts move to the default one.
func (h *Admin) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorPage(w, r, http.StatusNotFound)
		return
	}
	if err := h.admin.DeleteCategory(r.Context(), middleware.ViewerFromCtx(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/categories/", http.StatusSeeOther)
}

// Tags lists every tag.
func (h *Admin) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.admin.AllTags(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := make([]adminconfig.Row, 0, len(tags))
	for _, t := range tags {
		rows = append(rows, adminconfig.Row{ID: strconv.FormatInt(t.ID, 10), Values: map[string]string{
			"name":  t.Name,
			"slug":  t.Slug,
			"posts": strconv.Itoa(t.PostCount),
		}})
	}
	h.list(w, r, http.StatusOK, "tags", rows, func(row adminconfig.Row) []rowAction {
		return []rowAction{deleteAction(row.ID)}
	}, nil)
}

// DeleteTag removes a tag from every post.
func (h *Admin) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorPage(w, r, http.StatusNotFound)
		return
	}
	if err := h.admin.DeleteTag(r.Context(), middleware.ViewerFromCtx(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/tags/", http.StatusSeeOther)
}

// Users lists every account. The viewer's own row has no actions.
func (h *Admin) Users(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	users, err := h.admin.AllUsers(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := make([]adminconfig.Row, 0, len(users))
	roles := make(map[string]models.Role, len(users))
	for _, u := range users {
		lastLogin := ""
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Format("02.01.2006 15:04")
		}
		roles[u.ID.String()] = u.Role
		rows = append(rows, adminconfig.Row{ID: u.ID.String(), Values: map[string]string{
			"username":   u.Username,
			"email":      u.Email,
			"full_name":  u.FullName(),
			"verified":   yesNo(u.EmailVerified),
			"role":       string(u.Role),
			"last_login": lastLogin,
			"created":    u.CreatedAt.Format("02.01.2006"),
		}})
	}
	h.list(w, r, http.StatusOK, "users", rows, func(row adminconfig.Row) []rowAction {
		if row.ID == v.ID.String() {
			return nil
		}
		role := rowAction{Path: row.ID + "/role", Label: "Сделать сотрудником", Field: "role", Value: string(models.RoleStaff)}
		if roles[row.ID] == models.RoleStaff {
			role = rowAction{Path: row.ID + "/role", Label: "Сделать участником", Field: "role", Value: string(models.RoleMember)}
		}
		return []rowAction{
			role,
			{Path: row.ID + "/reset-2fa", Label: "Сбросить 2FA"},
			deleteAction(row.ID),
		}
	}, nil)
}

// userAction runs an admin operation on the user in the URL.
func (h *Admin) userAction(w http.ResponseWriter, r *http.Request, op func(id uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errorPage(w, r, http.StatusNotFound)
		return
	}
	if err := op(id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/users/", http.StatusSeeOther)
}

// DeleteUser removes an account with its posts and comments.
func (h *Admin) DeleteUser(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	h.userAction(w, r, func(id uuid.UUID) error {
		return h.admin.DeleteUser(r.Context(), v, id)
	})
}

// SetRole promotes or demotes an account.
func (h *Admin) SetRole(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	h.userAction(w, r, func(id uuid.UUID) error {
		return h.admin.SetRole(r.Context(), v, id, models.Role(r.FormValue("role")))
	})
}

// ResetTwoFA clears an account's second factor.
func (h *Admin) ResetTwoFA(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	h.userAction(w, r, func(id uuid.UUID) error {
		return h.admin.ResetTOTP(r.Context(), v, id)
	})
}

// Comments lists the newest comments.
func (h *Admin) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.admin.LatestComments(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := make([]adminconfig.Row, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, adminconfig.Row{ID: c.ID.String(), Values: map[string]string{
			"author":  c.AuthorUsername,
			"post":    c.PostID.String(),
			"body":    markdown.Excerpt(c.Body, 20),
			"created": c.CreatedAt.Format("02.01.2006 15:04"),
		}})
	}
	h.list(w, r, http.StatusOK, "comments", rows, nil, nil)
}
