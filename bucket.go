package straincrawler

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// MaxDeleteBatch is the most keys one DeleteBatch call accepts.
const MaxDeleteBatch = 1000

// ObjectStore is the bucket the strain images are synced to.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	DeleteBatch(ctx context.Context, keys []string) (DeleteResult, error)
	Head(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
	Close() error
}

type DeleteFailure struct {
	Key string
	Err error
}

type DeleteResult struct {
	Deleted int
	Errors  []DeleteFailure
}

type gcsStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func newGcsStore(ctx context.Context, bucketName string, opts ...option.ClientOption) (*gcsStore, error) {
	if bucketName == "" {
		return nil, eris.New("GCS_BUCKET is not set")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create storage client")
	}
	bucket := client.Bucket(bucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		client.Close()
		return nil, eris.Wrapf(err, "bucket %s is not reachable", bucketName)
	}
	return &gcsStore{client: client, bucket: bucket}, nil
}

func (g *gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return keys, eris.Wrapf(err, "failed to list %s", prefix)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// DeleteBatch deletes up to MaxDeleteBatch keys. Per-key failures are collected, not returned.
func (g *gcsStore) DeleteBatch(ctx context.Context, keys []string) (DeleteResult, error) {
	var res DeleteResult
	if len(keys) > MaxDeleteBatch {
		return res, eris.Errorf("batch of %d keys exceeds %d", len(keys), MaxDeleteBatch)
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := g.bucket.Object(key).Delete(ctx); err != nil {
			res.Errors = append(res.Errors, DeleteFailure{Key: key, Err: err})
			continue
		}
		res.Deleted++
	}
	return res, nil
}

func (g *gcsStore) Head(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "failed to stat %s", key)
	}
	return true, nil
}

func (g *gcsStore) Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error {
	writer := g.bucket.Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = cacheControl
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return eris.Wrapf(err, "failed to write %s", key)
	}
	if err := writer.Close(); err != nil {
		return eris.Wrapf(err, "failed to close writer for %s", key)
	}
	return nil
}

func (g *gcsStore) Close() error {
	return g.client.Close()
}

// ImageSlug lower-cases name, turns spaces and slashes into hyphens, drops everything that is
// not a letter, digit or hyphen, and collapses repeated hyphens: "Blue Dream #1" gives "blue-dream-1".
func ImageSlug(name string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-")
	lowered := replacer.Replace(strings.ToLower(name))

	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return slug
}

// ImageKey is the object key of a strain's image.
func ImageKey(prefix, name string) string {
	if prefix == "" {
		prefix = "strains/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + ImageSlug(name) + ".png"
}

// NormalizeImageURL drops every query parameter and pins the width: scheme://host/path?w=<width>.
func NormalizeImageURL(rawUrl string, width int) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawUrl))
	if err != nil {
		return "", eris.Wrapf(err, "invalid image url %q", rawUrl)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("image url %q is not absolute", rawUrl)
	}
	clean := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path, RawPath: u.RawPath}
	clean.RawQuery = "w=" + strconv.Itoa(width)
	return clean.String(), nil
}
