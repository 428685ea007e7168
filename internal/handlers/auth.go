// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"msdevblog/internal/middleware"
	"msdevblog/internal/models"
	"msdevblog/internal/render"
)

// totpIssuer names the site in authenticator apps.
const totpIssuer = "MSDevBlog"

// TOTPUsers is the user storage behind the second factor.
type TOTPUsers interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
}

// Auth groups the second-factor handlers that guard the admin area.
type Auth struct {
	renderer *render.Renderer
	sessions Sessions
	users    TOTPUsers
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, sessions Sessions, users TOTPUsers) *Auth {
	return &Auth{
		renderer: renderer,
		sessions: sessions,
		users:    users,
	}
}

// currentUser loads the signed-in user behind the session.
func (a *Auth) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return nil, false
	}
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa failed", "user_id", sess.UserID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

// otpauthURL is the provisioning URI encoded in the QR code.
func otpauthURL(email, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		totpIssuer, url.PathEscape(email), secret, totpIssuer)
}

// setupPage renders the enrollment page for a secret.
func (a *Auth) setupPage(w http.ResponseWriter, r *http.Request, email, secret string, errs map[string]string) {
	qrPNG, err := qrcode.Encode(otpauthURL(email, secret), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.renderer.Page(w, r, "admin/2fa_setup", &render.PageData{
		Title:   "Двухфакторная аутентификация",
		Section: "admin",
		Errors:  errs,
		Data: map[string]any{
			"QRCode": base64.StdEncoding.EncodeToString(qrPNG),
			"Secret": secret,
		},
	})
}

// TwoFASetupPage generates a TOTP secret and displays the QR code.
// Enrolled users go to verification instead.
func (a *Auth) TwoFASetupPage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.TOTPEnabled {
		http.Redirect(w, r, "/admin/2fa/verify", http.StatusSeeOther)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.setupPage(w, r, user.Email, key.Secret(), nil)
}

// TwoFAVerifyPage renders the TOTP code form.
func (a *Auth) TwoFAVerifyPage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if !user.TOTPEnabled {
		http.Redirect(w, r, "/admin/2fa/setup", http.StatusSeeOther)
		return
	}
	a.renderer.Page(w, r, "admin/2fa_verify", &render.PageData{
		Title:   "Подтверждение входа",
		Section: "admin",
	})
}

// TwoFAVerifySubmit validates the TOTP code and completes authentication.
func (a *Auth) TwoFAVerifySubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.TOTPSecret == nil {
		http.Redirect(w, r, "/admin/2fa/setup", http.StatusSeeOther)
		return
	}

	if !totp.Validate(r.FormValue("code"), *user.TOTPSecret) {
		slog.Info("2fa code rejected", "user_id", user.ID)
		errs := map[string]string{"code": "Неверный код, попробуйте ещё раз."}
		if !user.TOTPEnabled {
			a.setupPage(w, r, user.Email, *user.TOTPSecret, errs)
			return
		}
		a.renderer.Page(w, r, "admin/2fa_verify", &render.PageData{
			Title:   "Подтверждение входа",
			Section: "admin",
			Errors:  errs,
		})
		return
	}

	if !user.TOTPEnabled {
		if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	sess := middleware.SessionFromCtx(r.Context())
	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Info("2fa completed", "user_id", user.ID)
	http.Redirect(w, r, "/admin/", http.StatusSeeOther)
}
