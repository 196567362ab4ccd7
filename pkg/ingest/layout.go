package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/williamokano/tddf_uploader/pkg/config"
)

// ClaimSuffix marks an inbox file that an uploader is working on
const ClaimSuffix = ".uploading"

// EnsureLayout creates the inbox, processed and logs folders
func EnsureLayout(cfg *config.Config) error {
	for _, dir := range []string{cfg.InboxDir(), cfg.ProcessedDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ScanInbox returns the files waiting in dir, sorted by name.
// Dot-files and files already claimed are left out.
func ScanInbox(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ClaimSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

// claim renames path to path+ClaimSuffix so no other instance picks it up
func claim(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		return "", err
	}
	claimed := path + ClaimSuffix
	if err := os.Rename(path, claimed); err != nil {
		return "", err
	}
	return claimed, nil
}

// unclaim puts a claimed file back into the inbox
func unclaim(claimed string) (string, error) {
	original := strings.TrimSuffix(claimed, ClaimSuffix)
	if err := os.Rename(claimed, original); err != nil {
		return claimed, err
	}
	return original, nil
}

// uniquePath returns dir/name, or dir/"stem (n).ext" when taken
func uniquePath(dir, name string) (string, error) {
	name = strings.TrimSuffix(name, ClaimSuffix)

	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}

// moveToProcessed moves a claimed file into dir under a unique name
func moveToProcessed(claimed, dir string) (string, error) {
	dest, err := uniquePath(dir, filepath.Base(claimed))
	if err != nil {
		return "", err
	}
	if err := os.Rename(claimed, dest); err != nil {
		return "", fmt.Errorf("failed to move %s to processed: %w", filepath.Base(claimed), err)
	}
	return dest, nil
}
