// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"msdevblog/internal/adminconfig"
	"msdevblog/internal/cache"
	"msdevblog/internal/config"
	"msdevblog/internal/database"
	"msdevblog/internal/handlers"
	"msdevblog/internal/mail"
	"msdevblog/internal/middleware"
	"msdevblog/internal/render"
	"msdevblog/internal/router"
	"msdevblog/internal/search"
	"msdevblog/internal/service"
	"msdevblog/internal/session"
	"msdevblog/internal/storage"
	"msdevblog/internal/store"
	"msdevblog/internal/validation"
)

// shutdownTimeout bounds in-flight requests on shutdown.
const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			return err
		}
	}

	// Valkey backs sessions, the read-through cache and the mail queue.
	vk, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		return err
	}
	defer vk.Close()

	sessions := session.NewStore(vk, !cfg.IsDev())

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("initialize templates: %w", err)
	}
	adminCfg, err := adminconfig.Load()
	if err != nil {
		return err
	}

	users := store.NewUserStore(db)
	posts := store.NewPostStore(db)
	categories := store.NewCategoryStore(db)
	tags := store.NewTagStore(db)
	comments := store.NewCommentStore(db)
	cacheLog := store.NewCacheLogStore(db)
	pageCache := cache.New(vk, cfg.CacheTTL)

	searcher, closeSearch, err := openSearch(ctx, cfg, posts)
	if err != nil {
		return err
	}
	defer closeSearch()

	var sender mail.Sender = mail.LogSender{}
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		slog.Warn("smtp not configured, mail is logged instead of sent")
	}
	queue := mail.NewQueue(vk, sender)
	notifier := mail.NewNotifier(queue, cfg.SiteURL, cfg.FeedbackTo)

	v := validation.New()
	blog := service.NewBlog(service.BlogDeps{
		Posts:                  posts,
		Categories:             categories,
		Tags:                   tags,
		Comments:               comments,
		Search:                 searcher,
		Cache:                  pageCache,
		Log:                    cacheLog,
		Validator:              v,
		PageSize:               cfg.PageSize,
		RequireVerifiedAuthors: cfg.RequireVerifiedAuthors,
	})
	members := service.NewMembers(service.MembersDeps{
		Users:            users,
		Notify:           notifier,
		Cache:            pageCache,
		Validator:        v,
		SecretKey:        cfg.SecretKey,
		ActivationMaxAge: cfg.ActivationMaxAge,
	})
	admin := service.NewAdmin(service.AdminDeps{
		Posts:      posts,
		Categories: categories,
		Tags:       tags,
		Users:      users,
		Comments:   comments,
		Audit:      cacheLog,
		Blog:       blog,
		Validator:  v,
	})
	feedback := service.NewFeedback(notifier, v)

	// Uploads are optional; without S3 the endpoint answers 503.
	var images handlers.ImageStore
	var imageOrigin string
	storageClient, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
	if err != nil {
		return err
	}
	if storageClient != nil {
		images = storageClient
		imageOrigin = storageClient.Origin()
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("s3 storage not configured, editor uploads disabled")
	}

	limiter := middleware.NewRateLimiter(5, time.Minute)
	defer limiter.Stop()

	r := router.New(router.Deps{
		Sessions:      sessions,
		Users:         users,
		Blog:          handlers.NewBlog(renderer, blog, feedback),
		Members:       handlers.NewMembers(renderer, blog, members, sessions),
		Admin:         handlers.NewAdmin(renderer, admin, adminCfg),
		Auth:          handlers.NewAuth(renderer, sessions, users),
		Feed:          handlers.NewFeed(blog, pageCache, cfg.SiteURL),
		Upload:        handlers.NewUpload(images),
		Limiter:       limiter,
		SecureCookies: !cfg.IsDev(),
		ImageOrigin:   imageOrigin,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openSearch returns the configured search engine and its cleanup. The
// bleve index is rebuilt from the database at startup.
func openSearch(ctx context.Context, cfg *config.Config, posts *store.PostStore) (search.Searcher, func(), error) {
	if cfg.SearchBackend != config.SearchBleve {
		return search.NewPostgres(posts), func() {}, nil
	}

	idx, err := search.NewBleve(cfg.BlevePath, posts)
	if err != nil {
		return nil, nil, err
	}
	all, _, err := posts.List(ctx, store.PostFilter{})
	if err != nil {
		idx.Close()
		return nil, nil, fmt.Errorf("load posts for indexing: %w", err)
	}
	if err := idx.Reindex(ctx, all); err != nil {
		idx.Close()
		return nil, nil, err
	}
	return idx, func() {
		if err := idx.Close(); err != nil {
			slog.Warn("close search index", "error", err)
		}
	}, nil
}
