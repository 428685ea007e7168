// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with initial development data: a staff
// account, a couple of categories and two posts (one draft, one published).
// It does nothing when users already exist. The staff account is prompted
// to set up 2FA on first admin login (totp_enabled = false).
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var adminID string
	err = tx.QueryRow(`
		INSERT INTO users (username, email, password_hash, first_name, role, email_verified, totp_enabled)
		VALUES ($1, $2, $3, $4, 'staff', TRUE, FALSE)
		RETURNING id
	`, "admin", "admin@msdevblog.local", string(hash), "Admin").Scan(&adminID)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	var catID int64
	err = tx.QueryRow(`
		INSERT INTO categories (title, slug) VALUES ('Go', 'go')
		ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title
		RETURNING id
	`).Scan(&catID)
	if err != nil {
		return fmt.Errorf("seed insert category: %w", err)
	}

	posts := []struct {
		title, slug, body, status string
	}{
		{"Hello, blog", "hello-blog", "The first **published** post.", "published"},
		{"Work in progress", "work-in-progress", "Still a draft.", "draft"},
	}
	for _, p := range posts {
		if _, err := tx.Exec(`
			INSERT INTO posts (author_id, category_id, title, slug, body, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, adminID, catID, p.title, p.slug, p.body, p.status); err != nil {
			return fmt.Errorf("seed insert post %q: %w", p.slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default staff user",
		"username", "admin",
		"password", "admin",
	)

	return nil
}
