// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/middleware"
	"msdevblog/internal/render"
	"msdevblog/internal/service"
	"msdevblog/internal/session"
)

// Sessions creates, updates and ends login sessions.
type Sessions interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Members groups the handlers of the members area: login, registration,
// activation, profile and password management.
type Members struct {
	base
	members  *service.Members
	sessions Sessions
}

// NewMembers creates the members handler group.
func NewMembers(renderer *render.Renderer, blog *service.Blog, members *service.Members, sessions Sessions) *Members {
	return &Members{
		base:     base{renderer: renderer, blog: blog},
		members:  members,
		sessions: sessions,
	}
}

// LoginPage renders the login form. Signed-in visitors go home.
func (h *Members) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.ViewerFromCtx(r.Context()).Authenticated {
		http.Redirect(w, r, "/blog/", http.StatusSeeOther)
		return
	}
	h.page(w, r, "members/login", &render.PageData{
		Title:   "Вход",
		Section: "login",
		Data:    map[string]any{"Next": r.URL.Query().Get("next")},
	})
}

// LoginSubmit checks the credentials and starts a session.
func (h *Members) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "username")
	next := r.FormValue("next")

	user, err := h.members.Login(r.Context(), form["username"], r.FormValue("password"))
	if err != nil {
		if domainerrors.StatusOf(err) != http.StatusUnauthorized {
			h.fail(w, r, err)
			return
		}
		slog.Info("login failed", "login", form["username"], "remote", r.RemoteAddr)
		h.renderer.PageStatus(w, r, http.StatusOK, "members/login", &render.PageData{
			Title:   "Вход",
			Section: "login",
			Form:    form,
			Errors:  map[string]string{"form": "Неверное имя пользователя или пароль."},
			Data:    map[string]any{"Next": next},
			Sidebar: h.sidebar(r),
		})
		return
	}

	// Any previous session is replaced so its ID cannot be reused.
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("previous session not destroyed", "error", err)
	}
	// TwoFADone starts false; staff complete it before the admin area.
	_, err = h.sessions.Create(r.Context(), w, &session.Data{
		UserID:    user.ID,
		Username:  user.Username,
		Staff:     user.IsStaff(),
		TwoFADone: false,
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		h.errorPage(w, r, http.StatusInternalServerError)
		return
	}
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
	http.Redirect(w, r, safeNext(next, "/blog/"), http.StatusSeeOther)
}

// Logout ends the session.
func (h *Members) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/blog/", http.StatusSeeOther)
}

// RegisterPage renders the registration form.
func (h *Members) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "members/register", &render.PageData{Title: "Регистрация", Section: "register"})
}

// RegisterSubmit creates the account and mails the activation link.
func (h *Members) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "username", "email")
	u, err := h.members.Register(r.Context(), service.RegisterInput{
		Username:  form["username"],
		Email:     form["email"],
		Password:  r.FormValue("password1"),
		Password2: r.FormValue("password2"),
	})
	if err != nil {
		h.formPage(w, r, "members/register", &render.PageData{
			Title:   "Регистрация",
			Section: "register",
			Form:    form,
		}, err)
		return
	}
	h.page(w, r, "members/register_done", &render.PageData{
		Title: "Регистрация завершена",
		Data:  map[string]any{"Email": u.Email},
	})
}

// Activate follows an activation link. A bad or expired link renders the
// invalid-link page; an address confirmed before gets its own message.
func (h *Members) Activate(w http.ResponseWriter, r *http.Request) {
	a, err := h.members.Activate(r.Context(), chi.URLParam(r, "sign"))
	result := "done"
	status := http.StatusOK
	switch {
	case err != nil && domainerrors.StatusOf(err) == http.StatusBadRequest:
		result, status = "invalid", http.StatusBadRequest
	case err != nil:
		h.fail(w, r, err)
		return
	case a.AlreadyActive:
		result = "already"
	}
	h.renderer.PageStatus(w, r, status, "members/activation", &render.PageData{
		Title:   "Подтверждение адреса",
		Data:    map[string]any{"Result": result},
		Sidebar: h.sidebar(r),
	})
}

// ResendActivation mails the activation letter again.
func (h *Members) ResendActivation(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	sent, err := h.members.ResendActivation(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.members.Current(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	flash := render.Flash{Type: "info", Message: "Адрес уже подтверждён."}
	if sent {
		flash = render.Flash{Type: "success", Message: "Письмо отправлено. Проверьте почтовый ящик «" + u.Email + "»."}
	}
	h.page(w, r, "members/profile", &render.PageData{
		Title:   "Профиль",
		Section: "profile",
		Flashes: []render.Flash{flash},
		Data:    map[string]any{"User": u},
	})
}

// Profile shows the viewer's account.
func (h *Members) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.members.Current(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.page(w, r, "members/profile", &render.PageData{
		Title:   "Профиль",
		Section: "profile",
		Data:    map[string]any{"User": u},
	})
}

// profileForm maps a ProfileInput to form values.
func profileForm(in service.ProfileInput) map[string]string {
	return map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"bio":        in.Bio,
		"git":        in.Git,
	}
}

// EditProfile renders the profile form filled from the account.
func (h *Members) EditProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.members.Current(r.Context(), middleware.ViewerFromCtx(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.page(w, r, "members/profile_edit", &render.PageData{
		Title:   "Изменение профиля",
		Section: "profile",
		Form:    profileForm(service.ProfileFor(u)),
	})
}

// UpdateProfile saves the profile form.
func (h *Members) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromCtx(r.Context())
	in := service.ProfileInput{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Bio:       r.FormValue("bio"),
		Git:       r.FormValue("git"),
	}
	if err := h.members.UpdateProfile(r.Context(), v, in); err != nil {
		h.formPage(w, r, "members/profile_edit", &render.PageData{
			Title:   "Изменение профиля",
			Section: "profile",
			Form:    profileForm(in),
		}, err)
		return
	}
	u, err := h.members.Current(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.page(w, r, "members/profile", &render.PageData{
		Title:   "Профиль",
		Section: "profile",
		Flashes: []render.Flash{{Type: "success", Message: "Профиль обновлён."}},
		Data:    map[string]any{"User": u},
	})
}

// PasswordPage renders the password change form.
func (h *Members) PasswordPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "members/password", &render.PageData{Title: "Смена пароля", Section: "profile"})
}

// PasswordSubmit changes the viewer's password.
func (h *Members) PasswordSubmit(w http.ResponseWriter, r *http.Request) {
	err := h.members.ChangePassword(r.Context(), middleware.ViewerFromCtx(r.Context()), service.PasswordInput{
		Old:  r.FormValue("old_password"),
		New:  r.FormValue("new_password1"),
		New2: r.FormValue("new_password2"),
	})
	if err != nil {
		h.formPage(w, r, "members/password", &render.PageData{Title: "Смена пароля", Section: "profile"}, err)
		return
	}
	http.Redirect(w, r, "/members/password-success/", http.StatusSeeOther)
}

// PasswordDone confirms a changed password.
func (h *Members) PasswordDone(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "members/password_done", &render.PageData{Title: "Пароль изменён"})
}

// ResetPage renders the password reset request form.
func (h *Members) ResetPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "members/password_reset", &render.PageData{Title: "Восстановление пароля"})
}

// ResetSubmit mails a reset link. The answer is the same whether or not
// the address is registered.
func (h *Members) ResetSubmit(w http.ResponseWriter, r *http.Request) {
	form := formValues(r, "email")
	if err := h.members.RequestPasswordReset(r.Context(), form["email"]); err != nil {
		h.formPage(w, r, "members/password_reset", &render.PageData{
			Title: "Восстановление пароля",
			Form:  form,
		}, err)
		return
	}
	http.Redirect(w, r, "/members/password_reset/done/", http.StatusSeeOther)
}

// ResetSent confirms that a reset link was sent.
func (h *Members) ResetSent(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "members/password_reset_sent", &render.PageData{Title: "Проверьте почту"})
}

// resetPage renders the new password form behind a reset link, or the
// invalid-link page.
func (h *Members) resetPage(w http.ResponseWriter, r *http.Request, err error) {
	data := &render.PageData{
		Title: "Новый пароль",
		Data:  map[string]any{"Valid": true, "Action": r.URL.Path},
	}
	if err != nil {
		if domainerrors.FieldErrors(err) != nil {
			h.formPage(w, r, "members/password_reset_confirm", data, err)
			return
		}
		if domainerrors.StatusOf(err) != http.StatusBadRequest {
			h.fail(w, r, err)
			return
		}
		data.Data["Valid"] = false
		data.Sidebar = h.sidebar(r)
		h.renderer.PageStatus(w, r, http.StatusBadRequest, "members/password_reset_confirm", data)
		return
	}
	h.page(w, r, "members/password_reset_confirm", data)
}

// ResetConfirmPage checks the reset link before showing the form.
func (h *Members) ResetConfirmPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	_, err := h.members.CheckResetToken(r.Context(), token)
	h.resetPage(w, r, err)
}

// ResetConfirmSubmit sets the new password.
func (h *Members) ResetConfirmSubmit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	err := h.members.ResetPassword(r.Context(), token, service.ResetInput{
		New:  r.FormValue("new_password1"),
		New2: r.FormValue("new_password2"),
	})
	if err != nil {
		h.resetPage(w, r, err)
		return
	}
	http.Redirect(w, r, "/members/password-success/", http.StatusSeeOther)
}

// DeletePage asks for the password before deleting the account.
func (h *Members) DeletePage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "members/delete", &render.PageData{Title: "Удаление аккаунта", Section: "profile"})
}

// DeleteSubmit deletes the account and ends the session.
func (h *Members) DeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := h.members.DeleteAccount(r.Context(), middleware.ViewerFromCtx(r.Context()), r.FormValue("password")); err != nil {
		h.formPage(w, r, "members/delete", &render.PageData{Title: "Удаление аккаунта", Section: "profile"}, err)
		return
	}
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/blog/", http.StatusSeeOther)
}
