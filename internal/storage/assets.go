package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bilgisen/redflag-cms/internal/logger"
	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// ImageExtensions is the allow-list for asset names.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".svg":  true,
	".avif": true,
}

// BlobObject is one stored asset as the backend reports it.
type BlobObject struct {
	Name string
	Size int64
	URL  string
}

// BlobBackend stores assets in a flat namespace. Put replaces any object
// with the same name.
type BlobBackend interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	List(ctx context.Context) ([]BlobObject, error)
}

type AssetStoreConfig struct {
	// PublicPrefix is prepended to asset names to form their logical path.
	PublicPrefix string
	MaxSize      int64
	Logger       *zerolog.Logger
}

// AssetStore uploads and lists images. Uploads do not trigger a site
// rebuild on their own.
type AssetStore struct {
	backend BlobBackend
	prefix  string
	maxSize int64
	log     *zerolog.Logger
}

func NewAssetStore(backend BlobBackend, cfg AssetStoreConfig) *AssetStore {
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = "/images"
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	return &AssetStore{
		backend: backend,
		prefix:  "/" + strings.Trim(cfg.PublicPrefix, "/"),
		maxSize: cfg.MaxSize,
		log:     cfg.Logger,
	}
}

// Upload stores data under name, replacing an existing asset of the same
// name, and returns the asset with its stable path.
func (s *AssetStore) Upload(ctx context.Context, name string, data []byte, mimeType string) (*models.Asset, error) {
	name = strings.TrimSpace(name)
	s.log.Debug().Str("name", name).Int("size", len(data)).Msg("Uploading asset")
	if err := validateAssetName(name); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalid("file", "required")
	}
	if int64(len(data)) > s.maxSize {
		return nil, invalid("file", fmt.Sprintf("max=%d", s.maxSize))
	}
	if mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
		return nil, invalid("mimeType", "image")
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		s.log.Warn().Str("name", name).Str("detected", detected.String()).Msg("Rejected non-image upload")
		return nil, invalid("file", "image")
	}

	url, err := s.backend.Put(ctx, name, data, detected.String())
	if err != nil {
		s.log.Error().Err(err).Str("name", name).Msg("Error uploading asset")
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	s.log.Info().Str("name", name).Int("size", len(data)).Msg("Asset uploaded")
	return &models.Asset{
		Name: name,
		Path: s.pathFor(name),
		Size: int64(len(data)),
		URL:  url,
	}, nil
}

// List returns the stored images sorted by name. Objects without an
// allowed image extension are skipped.
func (s *AssetStore) List(ctx context.Context) ([]*models.Asset, error) {
	objects, err := s.backend.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Error listing assets")
		return nil, fmt.Errorf("list assets: %w", err)
	}

	assets := make([]*models.Asset, 0, len(objects))
	for _, o := range objects {
		if !ImageExtensions[strings.ToLower(path.Ext(o.Name))] {
			continue
		}
		assets = append(assets, &models.Asset{
			Name: o.Name,
			Path: s.pathFor(o.Name),
			Size: o.Size,
			URL:  o.URL,
		})
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

func (s *AssetStore) pathFor(name string) string {
	return s.prefix + "/" + name
}

func validateAssetName(name string) error {
	switch {
	case name == "":
		return invalid("name", "required")
	case strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, "."):
		return invalid("name", "flat")
	case !ImageExtensions[strings.ToLower(path.Ext(name))]:
		return invalid("name", "extension")
	}
	return nil
}
