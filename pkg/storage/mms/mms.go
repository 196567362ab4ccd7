// Package mms ships files to the MMS uploader API as a storage destination.
package mms

import (
	"context"
	"errors"
	"os"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/williamokano/tddf_uploader/pkg/mmsapi"
	"github.com/williamokano/tddf_uploader/pkg/storage"
)

type Backend struct {
	name   string
	client *mmsapi.Client
}

func init() {
	storage.RegisterBackend("mms", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(cfg)
	})
}

// New creates an MMS backend from options url, api_key and requests_per_second
func New(cfg storage.Config) (*Backend, error) {
	url, err := storage.RequireString(cfg.Options, "url")
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	client := mmsapi.NewClient(mmsapi.Options{
		BaseURL:           url,
		APIKey:            storage.StringOption(cfg.Options, "api_key", ""),
		RequestsPerSecond: storage.FloatOption(cfg.Options, "requests_per_second", 0),
		Version:           storage.StringOption(cfg.Options, "version", ""),
		Logger:            log.Logger,
	})

	return NewWithClient(cfg.Name, client), nil
}

// NewWithClient wraps an existing client
func NewWithClient(name string, client *mmsapi.Client) *Backend {
	return &Backend{name: name, client: client}
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "mms" }

// Write uploads the file under the base name of destPath.
// The server keeps its own layout, so the date prefix is dropped.
func (b *Backend) Write(ctx context.Context, sourcePath, destPath string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		file, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer file.Close()

		if err := b.client.Upload(ctx, path.Base(destPath), file); err != nil {
			return storage.WrapError(b.name, "upload", classify(err))
		}
		return nil
	})
}

// Delete is not offered by the MMS API
func (b *Backend) Delete(ctx context.Context, objectPath string) error {
	return storage.WrapError(b.name, "delete", storage.ErrUnsupported)
}

// List is not offered by the MMS API
func (b *Backend) List(ctx context.Context, pattern string) ([]storage.FileInfo, error) {
	return nil, storage.WrapError(b.name, "list", storage.ErrUnsupported)
}

// Stat is not offered by the MMS API
func (b *Backend) Stat(ctx context.Context, objectPath string) (*storage.FileInfo, error) {
	return nil, storage.WrapError(b.name, "stat", storage.ErrUnsupported)
}

// Exists is not offered by the MMS API
func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	return false, storage.WrapError(b.name, "exists", storage.ErrUnsupported)
}

func (b *Backend) Close() error { return nil }

func classify(err error) error {
	var statusErr *mmsapi.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, mmsapi.ErrDuplicate):
		return errors.Join(storage.ErrDuplicate, err)
	case errors.Is(err, mmsapi.ErrUnauthorized):
		return errors.Join(storage.ErrAuthFailed, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(storage.ErrTimeout, err)
	case errors.As(err, &statusErr) && statusErr.Code >= 500:
		return errors.Join(storage.ErrConnFailed, err)
	case errors.As(err, &statusErr):
		return err
	default:
		// transport failures: refused connections, resets
		return errors.Join(storage.ErrConnFailed, err)
	}
}
