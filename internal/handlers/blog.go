// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/middleware"
	"msdevblog/internal/models"
	"msdevblog/internal/render"
	"msdevblog/internal/service"
)

// postFields are the inputs of the post form.
var postFields = []string{"title", "slug", "body", "status", "category", "tags"}

// Blog groups the public blog handlers.
type Blog struct {
	base
	feedback *service.Feedback
}

// NewBlog creates the blog handler group.
func NewBlog(renderer *render.Renderer, blog *service.Blog, feedback *service.Feedback) *Blog {
	return &Blog{
		base:     base{renderer: renderer, blog: blog},
		feedback: feedback,
	}
}

// Home lists published posts, newest first.
func (h *Blog) Home(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "", "")
}

// ByCategory lists the published posts of a category.
func (h *Blog) ByCategory(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, chi.URLParam(r, "slug"), "")
}

// ByTag lists the published posts carrying a tag.
func (h *Blog) ByTag(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "", chi.URLParam(r, "slug"))
}

func (h *Blog) listing(w http.ResponseWriter, r *http.Request, categorySlug, tagSlug string) {
	page, err := pageParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v := middleware.ViewerFromCtx(r.Context())
	l, err := h.blog.ListPage(r.Context(), v, categorySlug, tagSlug, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := &render.PageData{
		Title: "Главная",
		Data:  map[string]any{"Page": l.Page, "BaseURL": r.URL.Path},
	}
	switch {
	case l.Category != nil:
		data.Title = l.Category.Title
		data.Data["Heading"] = "Категория: " + l.Category.Title
	case l.Tag != nil:
		data.Title = l.Tag.Name
		data.Data["Heading"] = "Тег: " + l.Tag.Name
	default:
		data.Section = "home"
	}
	h.page(w, r, "blog/list", data)
}

// Detail shows a post with its comments.
func (h *Blog) Detail(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	d, err := h.blog.Detail(r.Context(), v, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.page(w, r, "blog/detail", &render.PageData{
		Title: d.Post.Title,
		Data:  map[string]any{"Detail": d},
	})
}

// Comment adds a comment to the post and returns to it. Visitors who may
// not comment are sent back without one.
func (h *Blog) Comment(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	d, err := h.blog.Detail(r.Context(), v, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	back := "/blog/" + d.Post.Slug + "/"

	in := service.CommentInput{Body: r.FormValue("body")}
	form := formValues(r, "body", "parent")
	if raw := strings.TrimSpace(form["parent"]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.formPage(w, r, "blog/detail", &render.PageData{
				Title: d.Post.Title,
				Form:  form,
				Data:  map[string]any{"Detail": d},
			}, domainerrors.ValidationWithDetails("validation failed", map[string]string{"parent": "is invalid"}))
			return
		}
		in.ParentID = &id
	}

	c, err := h.blog.AddComment(r.Context(), v, d.Post.ID, in)
	if err != nil {
		h.formPage(w, r, "blog/detail", &render.PageData{
			Title: d.Post.Title,
			Form:  form,
			Data:  map[string]any{"Detail": d},
		}, err)
		return
	}
	if c != nil {
		back += "#comment-" + c.ID.String()
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// postForm renders the create or edit form.
func (h *Blog) postForm(w http.ResponseWriter, r *http.Request, data *render.PageData, err error) {
	categories, cerr := h.blog.Categories(r.Context())
	if cerr != nil {
		h.fail(w, r, cerr)
		return
	}
	data.Section = "new_post"
	data.Data["Categories"] = categories
	if err != nil {
		h.formPage(w, r, "blog/form", data, err)
		return
	}
	h.page(w, r, "blog/form", data)
}

// postInput reads the post form.
func postInput(form map[string]string) service.PostInput {
	in := service.PostInput{
		Title:  form["title"],
		Slug:   form["slug"],
		Body:   form["body"],
		Status: models.PostStatus(form["status"]),
		Tags:   form["tags"],
	}
	// An unparsable category falls back to the default one.
	in.CategoryID, _ = strconv.ParseInt(form["category"], 10, 64)
	return in
}

// inputForm is the inverse of postInput, for the edit form.
func inputForm(in service.PostInput) map[string]string {
	return map[string]string{
		"title":    in.Title,
		"slug":     in.Slug,
		"body":     in.Body,
		"status":   string(in.Status),
		"category": strconv.FormatInt(in.CategoryID, 10),
		"tags":     in.Tags,
	}
}

// NewPost renders an empty post form.
func (h *Blog) NewPost(w http.ResponseWriter, r *http.Request) {
	h.postForm(w, r, &render.PageData{
		Title: "Новый пост",
		Form: map[string]string{
			"status":   string(models.PostStatusDraft),
			"category": strconv.FormatInt(models.DefaultCategoryID, 10),
		},
		Data: map[string]any{"Action": "/blog/new-post/"},
	}, nil)
}

// CreatePost saves a new post and opens it.
func (h *Blog) CreatePost(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	form := formValues(r, postFields...)
	p, err := h.blog.CreatePost(r.Context(), v, postInput(form))
	if err != nil {
		if st := domainerrors.StatusOf(err); st == http.StatusUnauthorized || st == http.StatusForbidden {
			h.fail(w, r, err)
			return
		}
		h.postForm(w, r, &render.PageData{
			Title: "Новый пост",
			Form:  form,
			Data:  map[string]any{"Action": "/blog/new-post/"},
		}, err)
		return
	}
	http.Redirect(w, r, "/blog/"+p.Slug+"/", http.StatusSeeOther)
}

// EditPost renders the edit form for the viewer's own post.
func (h *Blog) EditPost(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	p, err := h.blog.EditablePost(r.Context(), v, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.postForm(w, r, &render.PageData{
		Title: "Редактирование: " + p.Title,
		Form:  inputForm(service.FormFor(p)),
		Data:  map[string]any{"Action": "/blog/update-post/" + p.Slug + "/", "Editing": true},
	}, nil)
}

// UpdatePost saves the edit form.
func (h *Blog) UpdatePost(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	p, err := h.blog.EditablePost(r.Context(), v, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form := formValues(r, postFields...)
	updated, err := h.blog.UpdatePost(r.Context(), v, p.ID, postInput(form))
	if err != nil {
		h.postForm(w, r, &render.PageData{
			Title: "Редактирование: " + p.Title,
			Form:  form,
			Data:  map[string]any{"Action": "/blog/update-post/" + p.Slug + "/", "Editing": true},
		}, err)
		return
	}
	http.Redirect(w, r, "/blog/"+updated.Slug+"/", http.StatusSeeOther)
}

// DeletePost removes the viewer's own post.
func (h *Blog) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errorPage(w, r, http.StatusNotFound)
		return
	}
	v := middleware.ViewerFromCtx(r.Context())
	if err := h.blog.DeletePost(r.Context(), v, id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/blog/", http.StatusSeeOther)
}

// SearchSubmit turns the header search form into a shareable GET URL.
// A blank query goes home.
func (h *Blog) SearchSubmit(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.FormValue("searched"))
	if q == "" {
		http.Redirect(w, r, "/blog/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/blog/search/?q="+url.QueryEscape(q), http.StatusSeeOther)
}

// Search lists published posts matching ?q=.
func (h *Blog) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Redirect(w, r, "/blog/", http.StatusSeeOther)
		return
	}
	page, err := pageParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v := middleware.ViewerFromCtx(r.Context())
	res, err := h.blog.Search(r.Context(), v, q, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.page(w, r, "blog/list", &render.PageData{
		Title: "Поиск: " + q,
		Data: map[string]any{
			"Page":    *res,
			"Query":   q,
			"BaseURL": "/blog/search/?q=" + url.QueryEscape(q),
		},
	})
}

// Feedback renders the feedback form.
func (h *Blog) Feedback(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "blog/feedback", &render.PageData{
		Title:   "Обратная связь",
		Section: "feedback",
		Data:    map[string]any{},
	})
}

// FeedbackSubmit queues the feedback letter for the site owners.
func (h *Blog) FeedbackSubmit(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "theme", "text", "email")
	err := h.feedback.Submit(r.Context(), service.FeedbackInput{
		Theme: form["theme"],
		Text:  form["text"],
		Email: form["email"],
	})
	data := &render.PageData{
		Title:   "Обратная связь",
		Section: "feedback",
		Form:    form,
		Data:    map[string]any{},
	}
	if err != nil {
		if domainerrors.StatusOf(err) >= http.StatusInternalServerError {
			data.Flashes = []render.Flash{{Type: "error", Message: "Что-то пошло не так, попробуйте повторить позже."}}
			data.Sidebar = h.sidebar(r)
			h.renderer.PageStatus(w, r, http.StatusServiceUnavailable, "blog/feedback", data)
			return
		}
		h.formPage(w, r, "blog/feedback", data, err)
		return
	}
	data.Form = nil
	data.Data["Sent"] = true
	data.Flashes = []render.Flash{{Type: "success", Message: "Ваше сообщение отправлено!"}}
	h.page(w, r, "blog/feedback", data)
}

// About renders the about page.
func (h *Blog) About(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "blog/about", &render.PageData{Title: "О блоге", Section: "about"})
}
