package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	pageSize     int
	listErr      error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, contentTypes: map[string]string{}, pageSize: 2}
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

// ListObjectsV2 pages through keys in order, pageSize at a time.
func (f *fakeBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k])))})
	}
	return out, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)}, nil
}

func TestR2PutUsesPublicURL(t *testing.T) {
	bucket := newFakeBucket()
	blobs := newR2Blobs(bucket, &fakePresigner{}, R2Config{
		Bucket:    "site",
		KeyPrefix: "/images/",
		PublicURL: "https://cdn.example.com/",
	})

	url, err := blobs.Put(context.Background(), "hero.png", pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/hero.png", url)
	assert.Equal(t, pngBytes, bucket.objects["images/hero.png"])
	assert.Equal(t, "image/png", bucket.contentTypes["images/hero.png"])
}

func TestR2PresignsWithoutPublicURL(t *testing.T) {
	presigner := &fakePresigner{}
	blobs := newR2Blobs(newFakeBucket(), presigner, R2Config{Bucket: "site", KeyPrefix: "images", PresignTTL: 15 * time.Minute})

	url, err := blobs.Put(context.Background(), "hero.png", pngBytes, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/site/images/hero.png", url)
	assert.Equal(t, 15*time.Minute, presigner.expires)
}

func TestR2ListPagesAndSkipsNestedKeys(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects["images/a.png"] = pngBytes
	bucket.objects["images/b.gif"] = gifBytes
	bucket.objects["images/c.png"] = pngBytes
	bucket.objects["images/thumbs/d.png"] = pngBytes
	bucket.objects["other/e.png"] = pngBytes

	blobs := newR2Blobs(bucket, &fakePresigner{}, R2Config{Bucket: "site", KeyPrefix: "images", PublicURL: "https://cdn.example.com"})

	objects, err := blobs.List(context.Background())
	require.NoError(t, err)

	var names []string
	for _, o := range objects {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"a.png", "b.gif", "c.png"}, names)
	assert.Equal(t, int64(len(gifBytes)), objects[1].Size)
	assert.Equal(t, "https://cdn.example.com/images/b.gif", objects[1].URL)
}

func TestR2ListError(t *testing.T) {
	bucket := newFakeBucket()
	bucket.listErr = errors.New("access denied")
	blobs := newR2Blobs(bucket, &fakePresigner{}, R2Config{Bucket: "site"})

	_, err := blobs.List(context.Background())
	assert.ErrorContains(t, err, "access denied")
}

func TestR2BackedAssetStore(t *testing.T) {
	blobs := newR2Blobs(newFakeBucket(), &fakePresigner{}, R2Config{Bucket: "site", KeyPrefix: "images", PublicURL: "https://cdn.example.com"})
	store := NewAssetStore(blobs, AssetStoreConfig{})
	ctx := context.Background()

	asset, err := store.Upload(ctx, "hero.png", pngBytes, "")
	require.NoError(t, err)
	assert.Equal(t, "/images/hero.png", asset.Path)
	assert.Equal(t, "https://cdn.example.com/images/hero.png", asset.URL)

	_, err = store.Upload(ctx, "hero.png", gifBytes, "")
	require.NoError(t, err)

	assets, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, int64(len(gifBytes)), assets[0].Size)
}
