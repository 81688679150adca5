package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/redflag-cms/internal/api"
	"github.com/bilgisen/redflag-cms/internal/cache"
	"github.com/bilgisen/redflag-cms/internal/config"
	"github.com/bilgisen/redflag-cms/internal/logger"
	"github.com/bilgisen/redflag-cms/internal/middleware"
	"github.com/bilgisen/redflag-cms/internal/publish"
	"github.com/bilgisen/redflag-cms/internal/remote"
	"github.com/bilgisen/redflag-cms/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func main() {
	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	logger.Init(logger.Config{
		Level:   cfg.LogLevel,
		Output:  output,
		Pretty:  cfg.LogPretty,
		Service: "redflag-cms",
	})

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Str("tree", cfg.TreeBackend).Str("assets", cfg.AssetBackend).Msg("Starting application...")

	tree := newTree(cfg, log)

	blobs, err := newBlobs(cfg, tree)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize asset backend")
	}

	history := newPublishLog(cfg, log)
	defer func() {
		log.Info().Msg("Closing publish log...")
		if err := history.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing publish log")
		}
	}()

	if cfg.BuildHookURL == "" {
		log.Warn().Msg("BUILD_HOOK_URL not set, content changes will not trigger a rebuild")
	}
	notifier := publish.NewNotifier(publish.Config{
		HookURL: cfg.BuildHookURL,
		Timeout: cfg.BuildHookTimeout,
		Logger:  log,
	}, history)

	articles := storage.NewArticleStore(tree, notifier, storage.ArticleStoreConfig{
		Dir:         cfg.ArticlesDir,
		Concurrency: cfg.MaxConcurrency,
		Author:      cfg.DefaultAuthor,
		Logger:      log,
	})
	assets := storage.NewAssetStore(blobs, storage.AssetStoreConfig{
		PublicPrefix: cfg.AssetPublicPrefix,
		MaxSize:      cfg.MaxFileSize,
		Logger:       log,
	})

	handlers := api.NewHandlers(api.Deps{
		Articles:    articles,
		Assets:      assets,
		Notifier:    notifier,
		History:     history,
		Timeout:     cfg.HTTPTimeout,
		MaxFileSize: cfg.MaxFileSize,
	})

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    int(cfg.MaxFileSize) + 1<<20,
		ErrorHandler: middleware.ErrorHandler,
	})

	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY not set, API is unauthenticated")
	}
	api.SetupRoutes(app, handlers, api.RouteConfig{
		AdminAPIKey:   cfg.AdminAPIKey,
		AllowedEmails: cfg.AllowedEmails,
	})

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := notifier.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("Pending publish signals abandoned")
	}

	log.Info().Msg("Server exited properly")
}

func newTree(cfg *config.Config, log *zerolog.Logger) remote.Tree {
	if cfg.TreeBackend == config.BackendMemory {
		log.Warn().Msg("Using in-memory tree, content is lost on restart")
		return remote.NewMemoryTree("")
	}
	return remote.NewGitHubClient(remote.GitHubConfig{
		Token:          cfg.GitHubToken,
		Owner:          cfg.GitHubOwner,
		Repo:           cfg.GitHubRepo,
		Branch:         cfg.GitHubBranch,
		APIURL:         cfg.GitHubAPIURL,
		CommitterName:  cfg.CommitterName,
		CommitterEmail: cfg.CommitterEmail,
	})
}

func newBlobs(cfg *config.Config, tree remote.Tree) (storage.BlobBackend, error) {
	if cfg.AssetBackend != config.BackendR2 {
		return storage.NewTreeBlobs(tree, cfg.AssetsDir), nil
	}

	r2 := storage.R2Config{
		Endpoint:   cfg.R2Endpoint,
		AccountID:  cfg.R2AccountID,
		AccessKey:  cfg.R2AccessKey,
		SecretKey:  cfg.R2SecretKey,
		Bucket:     cfg.R2Bucket,
		KeyPrefix:  cfg.R2KeyPrefix,
		PublicURL:  cfg.R2PublicURL,
		PresignTTL: cfg.R2PresignTTL,
	}
	client, err := storage.NewR2Client(context.Background(), r2)
	if err != nil {
		return nil, err
	}
	return storage.NewR2Blobs(client, r2), nil
}

// newPublishLog prefers Redis and falls back to memory when it is not
// configured or unreachable.
func newPublishLog(cfg *config.Config, log *zerolog.Logger) cache.PublishLog {
	if cfg.RedisURL == "" {
		return cache.NewMemoryPublishLog()
	}
	client, err := cache.NewRedisClient(cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, keeping publish history in memory")
		return cache.NewMemoryPublishLog()
	}
	return client
}
