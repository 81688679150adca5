package storage

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/bilgisen/redflag-cms/internal/remote"
	"github.com/bilgisen/redflag-cms/internal/utils"
)

// TreeBlobs keeps assets as files in one directory of the remote tree.
type TreeBlobs struct {
	tree remote.Tree
	dir  string
}

func NewTreeBlobs(tree remote.Tree, dir string) *TreeBlobs {
	if dir == "" {
		dir = "public/images"
	}
	return &TreeBlobs{tree: tree, dir: strings.Trim(dir, "/")}
}

// Put reads the current marker from the directory listing so an existing
// file is replaced. Listings are truncated on large directories, so a name
// missing from the listing is looked up directly. Identical content is not
// committed again.
func (b *TreeBlobs) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	entries, err := b.tree.List(ctx, b.dir)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return "", err
	}

	var current *remote.Entry
	for i := range entries {
		if entries[i].Name == name && !entries[i].IsDir {
			current = &entries[i]
			break
		}
	}

	p := path.Join(b.dir, name)
	if current == nil {
		file, err := b.tree.Get(ctx, p)
		switch {
		case err == nil:
			current = &remote.Entry{Name: name, Path: p, SHA: file.SHA}
		case !errors.Is(err, remote.ErrNotFound):
			return "", err
		}
	}

	if current != nil && current.SHA == utils.GitBlobSHA(data) {
		if current.DownloadURL != "" {
			return current.DownloadURL, nil
		}
		return b.downloadURL(ctx, name), nil
	}

	sha, message := "", "Upload image "+name
	if current != nil {
		sha, message = current.SHA, "Replace image "+name
	}
	if _, err := b.tree.Put(ctx, p, data, message, sha); err != nil {
		return "", err
	}
	return b.downloadURL(ctx, name), nil
}

// downloadURL looks the fresh file up again since the tree only reports
// download links in listings. The write already succeeded, so a failed
// lookup yields an empty URL rather than an error.
func (b *TreeBlobs) downloadURL(ctx context.Context, name string) string {
	entries, err := b.tree.List(ctx, b.dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Name == name {
			return e.DownloadURL
		}
	}
	return ""
}

func (b *TreeBlobs) List(ctx context.Context) ([]BlobObject, error) {
	entries, err := b.tree.List(ctx, b.dir)
	if errors.Is(err, remote.ErrNotFound) {
		return []BlobObject{}, nil
	}
	if err != nil {
		return nil, err
	}

	objects := make([]BlobObject, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		objects = append(objects, BlobObject{Name: e.Name, Size: e.Size, URL: e.DownloadURL})
	}
	return objects, nil
}
