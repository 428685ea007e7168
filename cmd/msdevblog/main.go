// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the msdevblog server.
// Without a subcommand it serves the blog; migrate and seed manage the
// database schema and development data.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"msdevblog/internal/config"
	"msdevblog/internal/database"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "msdevblog",
	Short:         "Server-rendered blog with members and a staff admin area",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		setupLogger(cfg)
		slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())
		return nil
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run pending migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and print their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *sql.DB) error {
			if err := database.Migrate(db); err != nil {
				return err
			}
			return database.MigrationStatus(db)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert development data (no-op when data already exists)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *sql.DB) error {
			if err := database.Migrate(db); err != nil {
				return err
			}
			return database.Seed(db)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("msdevblog failed", "error", err)
		os.Exit(1)
	}
}

// setupLogger installs the default logger: text in development, JSON
// everywhere else.
func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsDev() {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(h))
}

// withDB opens the database for the duration of fn.
func withDB(fn func(db *sql.DB) error) error {
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
