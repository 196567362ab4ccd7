package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/williamokano/tddf_uploader/pkg/storage"
)

// Backend stores files below a directory on the local filesystem
type Backend struct {
	name     string
	basePath string
}

func init() {
	storage.RegisterBackend("local", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(cfg)
	})
}

// New creates a local filesystem backend rooted at options.path,
// falling back to base_dir.
func New(cfg storage.Config) (*Backend, error) {
	root := storage.StringOption(cfg.Options, "path", cfg.BaseDir)
	if root == "" {
		return nil, storage.WrapError(cfg.Name, "init", storage.ErrInvalidConfig)
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	return &Backend{name: cfg.Name, basePath: root}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "local" }

// Root returns the directory the backend writes into
func (b *Backend) Root() string { return b.basePath }

// Write copies a file into the backend through a temp file, so readers never see a partial copy
func (b *Backend) Write(ctx context.Context, sourcePath, destPath string) error {
	destFullPath := filepath.Join(b.basePath, filepath.FromSlash(destPath))

	if err := os.MkdirAll(filepath.Dir(destFullPath), 0755); err != nil {
		return storage.WrapError(b.name, "write", err)
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return storage.WrapError(b.name, "write", err)
	}
	defer source.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destFullPath), ".partial-*")
	if err != nil {
		return storage.WrapError(b.name, "write", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, source); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return storage.WrapError(b.name, "write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return storage.WrapError(b.name, "write", err)
	}

	if err := os.Rename(tmpPath, destFullPath); err != nil {
		os.Remove(tmpPath)
		return storage.WrapError(b.name, "write", err)
	}

	return nil
}

// Delete removes a file from the backend
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := os.Remove(filepath.Join(b.basePath, filepath.FromSlash(path))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.WrapError(b.name, "delete", storage.ErrNotFound)
		}
		return storage.WrapError(b.name, "delete", err)
	}
	return nil
}

// List walks the backend root and returns files matching pattern
func (b *Backend) List(ctx context.Context, pattern string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo

	err := filepath.WalkDir(b.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(b.basePath, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !storage.MatchGlob(rel, pattern) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() == 0 {
			return nil
		}

		files = append(files, storage.FileInfo{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, storage.WrapError(b.name, "list", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// Stat returns metadata about a file
func (b *Backend) Stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	info, err := os.Stat(filepath.Join(b.basePath, filepath.FromSlash(path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(b.name, "stat", err)
	}

	return &storage.FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists checks if a file exists
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.Stat(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close is a no-op for local backend
func (b *Backend) Close() error {
	return nil
}
