package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanInbox(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.TSYSO"), "b")
	touch(t, filepath.Join(dir, "a.TSYSO"), "a")
	touch(t, filepath.Join(dir, ".DS_Store"), "x")
	touch(t, filepath.Join(dir, "c.TSYSO"+ClaimSuffix), "c")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	files, err := ScanInbox(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.TSYSO"), filepath.Join(dir, "b.TSYSO")}, files)
}

func TestClaimUnclaim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.TSYSO")
	touch(t, path, "a")

	claimed, err := claim(path)
	require.NoError(t, err)
	assert.Equal(t, path+ClaimSuffix, claimed)
	assert.NoFileExists(t, path)

	_, err = claim(path)
	assert.Error(t, err, "a claimed file cannot be claimed twice")

	original, err := unclaim(claimed)
	require.NoError(t, err)
	assert.Equal(t, path, original)
	assert.FileExists(t, path)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	name := "VERMNTSB.6759_TDDF_830_01152023_083045.TSYSO"

	p, err := uniquePath(dir, name+ClaimSuffix)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), p)

	touch(t, filepath.Join(dir, name), "1")
	touch(t, filepath.Join(dir, "VERMNTSB.6759_TDDF_830_01152023_083045 (1).TSYSO"), "2")

	p, err = uniquePath(dir, name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "VERMNTSB.6759_TDDF_830_01152023_083045 (2).TSYSO"), p)
}

func TestMoveToProcessed(t *testing.T) {
	inbox, processed := t.TempDir(), t.TempDir()
	claimed := filepath.Join(inbox, "a.TSYSO"+ClaimSuffix)
	touch(t, claimed, "a")
	touch(t, filepath.Join(processed, "a.TSYSO"), "old")

	dest, err := moveToProcessed(claimed, processed)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(processed, "a (1).TSYSO"), dest)
	assert.NoFileExists(t, claimed)
}
