package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bilgisen/redflag-cms/internal/document"
	"github.com/bilgisen/redflag-cms/internal/logger"
	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/bilgisen/redflag-cms/internal/remote"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Notifier is told about every successful article mutation.
type Notifier interface {
	Notify(ctx context.Context, reason string)
}

type ArticleStoreConfig struct {
	// Dir is the tree directory holding one markdown file per article.
	Dir string
	// Concurrency bounds parallel file fetches while listing.
	Concurrency int
	Author      string
	Now         func() time.Time
	Logger      *zerolog.Logger
}

// ArticleStore keeps articles as markdown files in the remote tree. It
// holds no cache: every call reads the tree again.
type ArticleStore struct {
	tree        remote.Tree
	codec       *document.Codec
	notifier    Notifier
	validate    *validator.Validate
	dir         string
	concurrency int
	author      string
	now         func() time.Time
	log         *zerolog.Logger
}

// located is an article together with where and at which revision it was
// read.
type located struct {
	article *models.Article
	path    string
	sha     string
}

func NewArticleStore(tree remote.Tree, notifier Notifier, cfg ArticleStoreConfig) *ArticleStore {
	if cfg.Dir == "" {
		cfg.Dir = "content/blog"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Author == "" {
		cfg.Author = document.DefaultAuthor
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}

	return &ArticleStore{
		tree: tree,
		codec: document.NewCodec(document.Defaults{
			Author:   cfg.Author,
			Category: document.DefaultCategory,
			Now:      cfg.Now,
		}),
		notifier:    notifier,
		validate:    newValidator(),
		dir:         strings.Trim(cfg.Dir, "/"),
		concurrency: cfg.Concurrency,
		author:      cfg.Author,
		now:         cfg.Now,
		log:         cfg.Logger,
	}
}

// List returns every article, most recently published first. When some
// files cannot be read the readable ones are still returned together with
// a *ListError naming the rest.
func (s *ArticleStore) List(ctx context.Context) ([]*models.Article, error) {
	s.log.Debug().Str("dir", s.dir).Msg("Listing articles")
	entries, err := s.documents(ctx)
	if err != nil {
		return nil, err
	}

	found, err := s.fetchAll(ctx, entries)
	articles := make([]*models.Article, 0, len(found))
	for _, l := range found {
		articles = append(articles, l.article)
	}
	return articles, err
}

// Get returns the article whose slug matches. Only files whose name
// resolves to the slug are fetched.
func (s *ArticleStore) Get(ctx context.Context, slug string) (*models.Article, error) {
	s.log.Debug().Str("slug", slug).Msg("Getting article")
	l, err := s.locate(ctx, slug)
	if err != nil {
		return nil, err
	}
	return l.article, nil
}

// Create writes a new article and returns its slug. The storage key is
// derived from the publish date and title and never changes afterwards.
func (s *ArticleStore) Create(ctx context.Context, in models.NewArticle, body string) (string, error) {
	article := &models.Article{
		Title:       cleanText(in.Title),
		Excerpt:     cleanText(in.Excerpt),
		Category:    strings.TrimSpace(in.Category),
		PublishedAt: in.PublishedAt,
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Tags:        cleanList(in.Tags),
		SEOKeywords: cleanList(in.SEOKeywords),
		Author:      cleanText(in.Author),
		Featured:    in.Featured,
		Draft:       in.Draft,
		Content:     strings.TrimSpace(body),
	}
	if article.Category == "" {
		article.Category = document.DefaultCategory
	}
	if article.Author == "" {
		article.Author = s.author
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = s.now()
	}
	article.Slug = Slugify(article.Title)
	s.log.Debug().Str("slug", article.Slug).Msg("Creating article")

	if err := validateRules(s.validate, articleRules{
		Title:      article.Title,
		Slug:       article.Slug,
		Category:   article.Category,
		CoverImage: article.CoverImage,
	}); err != nil {
		return "", err
	}
	article.Filename = article.PublishedAt.Format("2006-01-02") + "-" + article.Slug

	entries, err := s.documents(ctx)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", article.Slug, err)
	}
	for _, e := range entries {
		if SlugFromFilename(e.Name) == article.Slug {
			return "", fmt.Errorf("create %s: %s: %w", article.Filename, e.Name, ErrSlugTaken)
		}
	}

	data, err := s.codec.Encode(article)
	if err != nil {
		return "", err
	}

	p := s.pathFor(article.Filename)
	if _, err := s.tree.Put(ctx, p, data, "Create article "+article.Filename, ""); err != nil {
		if errors.Is(err, remote.ErrConflict) {
			s.log.Warn().Err(err).Str("path", p).Msg("Article file already exists")
			return "", fmt.Errorf("create %s: %w", article.Filename, ErrAlreadyExists)
		}
		return "", fmt.Errorf("create %s: %w", article.Filename, err)
	}

	s.log.Info().Str("slug", article.Slug).Str("path", p).Msg("Article created")
	s.notifier.Notify(ctx, "create "+article.Slug)
	return article.Slug, nil
}

// Update merges the supplied fields over the current record and writes it
// back with the marker read just before the merge. A concurrent writer
// makes the write fail with remote.ErrConflict; nothing is overwritten.
func (s *ArticleStore) Update(ctx context.Context, slug string, patch models.ArticlePatch) (*models.Article, error) {
	s.log.Debug().Str("slug", slug).Msg("Updating article")
	current, err := s.locate(ctx, slug)
	if err != nil {
		return nil, err
	}

	merged := *current.article
	s.applyPatch(&merged, patch)

	rules := articleRules{Title: merged.Title, Slug: merged.Slug, CoverImage: merged.CoverImage}
	if patch.Category != nil {
		rules.Category = merged.Category
	}
	if err := validateRules(s.validate, rules); err != nil {
		return nil, err
	}

	data, err := s.codec.Encode(&merged)
	if err != nil {
		return nil, err
	}

	if _, err := s.tree.Put(ctx, current.path, data, "Update article "+merged.Filename, current.sha); err != nil {
		if errors.Is(err, remote.ErrConflict) {
			s.log.Warn().Err(err).Str("slug", slug).Msg("Article changed since it was read")
		}
		return nil, fmt.Errorf("update %s: %w", merged.Filename, err)
	}

	s.log.Info().Str("slug", slug).Str("path", current.path).Msg("Article updated")
	s.notifier.Notify(ctx, "update "+slug)
	return &merged, nil
}

// Delete removes the article, presenting the marker it just read.
func (s *ArticleStore) Delete(ctx context.Context, slug string) error {
	s.log.Debug().Str("slug", slug).Msg("Deleting article")
	current, err := s.locate(ctx, slug)
	if err != nil {
		return err
	}

	if err := s.tree.Delete(ctx, current.path, current.sha, "Delete article "+current.article.Filename); err != nil {
		return fmt.Errorf("delete %s: %w", current.article.Filename, err)
	}

	s.log.Info().Str("slug", slug).Str("path", current.path).Msg("Article deleted")
	s.notifier.Notify(ctx, "delete "+slug)
	return nil
}

func (s *ArticleStore) pathFor(filename string) string {
	return path.Join(s.dir, filename+documentExt)
}

// documents lists the article directory, keeping markdown files that are
// not hidden behind a leading underscore. A missing directory holds no
// articles.
func (s *ArticleStore) documents(ctx context.Context) ([]remote.Entry, error) {
	entries, err := s.tree.List(ctx, s.dir)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("dir", s.dir).Msg("Error listing articles")
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	docs := make([]remote.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir && isDocument(e.Name) {
			docs = append(docs, e)
		}
	}
	return docs, nil
}

// locate finds the article for slug. Several files may resolve to one
// slug if they predate uniqueness checks; the first in list order wins.
func (s *ArticleStore) locate(ctx context.Context, slug string) (*located, error) {
	entries, err := s.documents(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []remote.Entry
	for _, e := range entries {
		if SlugFromFilename(e.Name) == slug {
			candidates = append(candidates, e)
		}
	}

	found, err := s.fetchAll(ctx, candidates)
	if len(found) > 0 {
		if err != nil {
			s.log.Warn().Err(err).Str("slug", slug).Msg("Ignoring unreadable duplicate")
		}
		return found[0], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("article %q: %w", slug, remote.ErrNotFound)
}

// fetchAll reads and decodes the entries with bounded concurrency and
// returns them in list order.
func (s *ArticleStore) fetchAll(ctx context.Context, entries []remote.Entry) ([]*located, error) {
	results := make([]*located, len(entries))
	var (
		mu     sync.Mutex
		failed []ItemError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			l, err := s.fetch(gctx, e)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.log.Error().Err(err).Str("path", e.Path).Msg("Error reading article")
				mu.Lock()
				failed = append(failed, ItemError{Path: e.Path, Err: err})
				mu.Unlock()
				return nil
			}
			results[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make([]*located, 0, len(results))
	for _, l := range results {
		if l != nil {
			found = append(found, l)
		}
	}
	sortLocated(found)

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })
		return found, &ListError{Failed: failed}
	}
	return found, nil
}

func (s *ArticleStore) fetch(ctx context.Context, e remote.Entry) (*located, error) {
	file, err := s.tree.Get(ctx, e.Path)
	if err != nil {
		return nil, err
	}
	article, err := s.codec.Decode(file.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Path, err)
	}
	article.Filename = strings.TrimSuffix(e.Name, documentExt)
	article.Slug = SlugFromFilename(e.Name)
	return &located{article: article, path: e.Path, sha: file.SHA}, nil
}

// sortLocated orders by publishedAt descending, then filename descending.
func sortLocated(items []*located) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].article, items[j].article
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.Filename > b.Filename
	})
}

// applyPatch copies the set fields of patch onto a. Filename and slug are
// never touched.
func (s *ArticleStore) applyPatch(a *models.Article, patch models.ArticlePatch) {
	if patch.Title != nil {
		a.Title = cleanText(*patch.Title)
	}
	if patch.Excerpt != nil {
		a.Excerpt = cleanText(*patch.Excerpt)
	}
	if patch.Category != nil {
		a.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.PublishedAt != nil {
		a.PublishedAt = *patch.PublishedAt
	}
	if patch.CoverImage != nil {
		a.CoverImage = strings.TrimSpace(*patch.CoverImage)
	}
	if patch.Tags != nil {
		a.Tags = cleanList(*patch.Tags)
	}
	if patch.SEOKeywords != nil {
		a.SEOKeywords = cleanList(*patch.SEOKeywords)
	}
	if patch.Author != nil {
		a.Author = cleanText(*patch.Author)
		if a.Author == "" {
			a.Author = s.author
		}
	}
	if patch.Featured != nil {
		a.Featured = *patch.Featured
	}
	if patch.Draft != nil {
		a.Draft = *patch.Draft
	}
	if patch.Content != nil {
		a.Content = strings.TrimSpace(*patch.Content)
	}
}
