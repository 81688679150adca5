package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/redflag-cms/internal/cache"
	"github.com/bilgisen/redflag-cms/internal/document"
	"github.com/bilgisen/redflag-cms/internal/logger"
	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/bilgisen/redflag-cms/internal/publish"
	"github.com/bilgisen/redflag-cms/internal/storage"
	"github.com/gofiber/fiber/v2"
)

const version = "1.0.0"

type Handlers struct {
	articles *storage.ArticleStore
	assets   *storage.AssetStore
	notifier *publish.Notifier
	history  cache.PublishLog
	timeout  time.Duration
	maxSize  int64
}

type Deps struct {
	Articles *storage.ArticleStore
	Assets   *storage.AssetStore
	Notifier *publish.Notifier
	History  cache.PublishLog
	// Timeout bounds each store call; the stores enforce none themselves.
	Timeout     time.Duration
	MaxFileSize int64
}

func NewHandlers(d Deps) *Handlers {
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	if d.MaxFileSize <= 0 {
		d.MaxFileSize = 10 << 20
	}
	return &Handlers{
		articles: d.Articles,
		assets:   d.Assets,
		notifier: d.Notifier,
		history:  d.History,
		timeout:  d.Timeout,
		maxSize:  d.MaxFileSize,
	}
}

type createArticleRequest struct {
	models.NewArticle
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type updateArticleRequest struct {
	models.ArticlePatch
	PublishedAt *string `json:"publishedAt,omitempty"`
}

func (h *Handlers) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// HealthCheck handles the /health endpoint
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// ListArticles handles GET /api/v1/articles. Files that could not be read
// are reported next to the articles that could.
func (h *Handlers) ListArticles(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	articles, err := h.articles.List(ctx)
	var listErr *storage.ListError
	if err != nil && !errors.As(err, &listErr) {
		return err
	}

	category := c.Query("category")
	status := c.Query("status")
	items := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		if category != "" && a.Category != category {
			continue
		}
		if status != "" && a.Status() != status {
			continue
		}
		items = append(items, a)
	}

	resp := fiber.Map{
		"total": len(items),
		"items": items,
	}
	if listErr != nil {
		logger.Get().Warn().Err(listErr).Int("failed", len(listErr.Failed)).Msg("Partial article listing")
		resp["errors"] = listErr.Failed
	}
	return c.JSON(resp)
}

// GetArticle handles GET /api/v1/articles/:slug
func (h *Handlers) GetArticle(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	article, err := h.articles.Get(ctx, c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(article)
}

// CreateArticle handles POST /api/v1/articles
func (h *Handlers) CreateArticle(c *fiber.Ctx) error {
	var req createArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	in := req.NewArticle
	if req.PublishedAt != "" {
		t, ok := document.ParseTime(req.PublishedAt)
		if !ok {
			return invalidDate()
		}
		in.PublishedAt = t
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	slug, err := h.articles.Create(ctx, in, req.Content)
	if err != nil {
		return err
	}

	c.Location("/api/v1/articles/" + slug)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"slug": slug})
}

// UpdateArticle handles PATCH /api/v1/articles/:slug
func (h *Handlers) UpdateArticle(c *fiber.Ctx) error {
	var req updateArticleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	patch := req.ArticlePatch
	if req.PublishedAt != nil {
		t, ok := document.ParseTime(*req.PublishedAt)
		if !ok {
			return invalidDate()
		}
		patch.PublishedAt = &t
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	article, err := h.articles.Update(ctx, c.Params("slug"), patch)
	if err != nil {
		return err
	}
	return c.JSON(article)
}

// DeleteArticle handles DELETE /api/v1/articles/:slug
func (h *Handlers) DeleteArticle(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.articles.Delete(ctx, c.Params("slug")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListImages handles GET /api/v1/images
func (h *Handlers) ListImages(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	assets, err := h.assets.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"total": len(assets),
		"items": assets,
	})
}

// UploadImage handles POST /api/v1/images with a multipart "file" field. An
// optional "name" field overrides the uploaded file name.
func (h *Handlers) UploadImage(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing multipart field \"file\"")
	}
	if header.Size > h.maxSize {
		return &storage.ValidationError{Fields: map[string]string{"file": "max=" + strconv.FormatInt(h.maxSize, 10)}}
	}

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = header.Filename
	}

	f, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxSize+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	// Browsers and multipart writers fall back to octet-stream when they
	// cannot tell; leave the decision to content sniffing.
	mimeType := header.Header.Get(fiber.HeaderContentType)
	if mimeType == fiber.MIMEOctetStream {
		mimeType = ""
	}

	asset, err := h.assets.Upload(ctx, name, data, mimeType)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(asset)
}

// PublishStatus handles GET /api/v1/publish/status
func (h *Handlers) PublishStatus(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	last, err := h.history.LastPublish(ctx)
	if err != nil {
		return err
	}
	history, err := h.history.History(ctx, c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"last":    last,
		"history": history,
	})
}

// TriggerPublish handles POST /api/v1/publish and waits for the build hook.
func (h *Handlers) TriggerPublish(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	event := h.notifier.Trigger(ctx, "manual")
	switch {
	case event.Skipped:
		return c.Status(fiber.StatusServiceUnavailable).JSON(event)
	case !event.OK():
		return c.Status(fiber.StatusBadGateway).JSON(event)
	}
	return c.Status(fiber.StatusAccepted).JSON(event)
}

func invalidDate() error {
	return &storage.ValidationError{Fields: map[string]string{"publishedAt": "datetime"}}
}
