package backblaze

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/kurin/blazer/b2"

	"github.com/williamokano/tddf_uploader/pkg/storage"
)

type Backend struct {
	name   string
	client *b2.Client
	bucket *b2.Bucket
	prefix string
}

func init() {
	storage.RegisterBackend("backblaze", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg)
	})
}

// New creates a Backblaze B2 backend
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	b2Cfg, err := parseConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	client, err := b2.NewClient(ctx, b2Cfg.AccountID, b2Cfg.ApplicationKey)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", storage.ErrAuthFailed)
	}

	bucket, err := client.Bucket(ctx, b2Cfg.BucketName)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "get bucket", err)
	}

	return &Backend{
		name:   cfg.Name,
		client: client,
		bucket: bucket,
		prefix: strings.Trim(b2Cfg.Prefix, "/"),
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "backblaze" }

// Write streams a file into a B2 object
func (b *Backend) Write(ctx context.Context, sourcePath, destPath string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		file, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer file.Close()

		writer := b.bucket.Object(b.key(destPath)).NewWriter(ctx)
		if _, err := io.Copy(writer, file); err != nil {
			writer.Close()
			return storage.WrapError(b.name, "upload", err)
		}
		if err := writer.Close(); err != nil {
			return storage.WrapError(b.name, "upload", err)
		}
		return nil
	})
}

// Delete removes a file from B2
func (b *Backend) Delete(ctx context.Context, objectPath string) error {
	if err := b.bucket.Object(b.key(objectPath)).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return storage.WrapError(b.name, "delete", storage.ErrNotFound)
		}
		return storage.WrapError(b.name, "delete", err)
	}
	return nil
}

// List returns objects matching pattern
func (b *Backend) List(ctx context.Context, pattern string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo

	iter := b.bucket.List(ctx, b2.ListPrefix(b.key(storage.ListPrefix(pattern))))
	for iter.Next() {
		obj := iter.Object()

		rel := b.relative(obj.Name())
		if rel == "" || !storage.MatchGlob(rel, pattern) {
			continue
		}

		attrs, err := obj.Attrs(ctx)
		if err != nil || attrs.Size == 0 {
			continue
		}

		files = append(files, storage.FileInfo{
			Path:    rel,
			Size:    attrs.Size,
			ModTime: attrs.UploadTimestamp,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, storage.WrapError(b.name, "list", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// Stat returns file metadata
func (b *Backend) Stat(ctx context.Context, objectPath string) (*storage.FileInfo, error) {
	attrs, err := b.bucket.Object(b.key(objectPath)).Attrs(ctx)
	if err != nil {
		if b2.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(b.name, "stat", err)
	}

	return &storage.FileInfo{
		Path:    objectPath,
		Size:    attrs.Size,
		ModTime: attrs.UploadTimestamp,
	}, nil
}

// Exists checks if object exists
func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := b.Stat(ctx, objectPath)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close releases resources
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) key(rel string) string {
	if b.prefix == "" {
		return rel
	}
	return b.prefix + "/" + strings.TrimPrefix(rel, "/")
}

func (b *Backend) relative(name string) string {
	if b.prefix == "" {
		return name
	}
	return strings.TrimPrefix(strings.TrimPrefix(name, b.prefix), "/")
}

func parseConfig(cfg storage.Config) (*Config, error) {
	b2Cfg := &Config{
		Prefix: storage.StringOption(cfg.Options, "prefix", cfg.BaseDir),
	}

	var err error
	if b2Cfg.AccountID, err = storage.RequireString(cfg.Options, "account_id"); err != nil {
		return nil, err
	}
	if b2Cfg.ApplicationKey, err = storage.RequireString(cfg.Options, "application_key"); err != nil {
		return nil, err
	}
	if b2Cfg.BucketName, err = storage.RequireString(cfg.Options, "bucket_name"); err != nil {
		return nil, err
	}

	return b2Cfg, nil
}
