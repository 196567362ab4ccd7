package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/tddf_uploader/pkg/storage"
)

const (
	lateFile   = "VERMNTSB.6759_TDDF_2400_11282022_000826.TSYSO"
	legacyFile = "report.csv"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.2.3")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeMMS serves the uploader API and records uploaded filenames
type fakeMMS struct {
	*httptest.Server
	ready bool

	mu       sync.Mutex
	uploaded []string
}

func newFakeMMS(t *testing.T, ready bool) *fakeMMS {
	t.Helper()
	f := &fakeMMS{ready: ready}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/uploader/ping", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		service := "running"
		if !f.ready {
			service = "starting"
		}
		fmt.Fprintf(w, `{"status":"ok","environment":"test","serviceStatus":%q,"keyStatus":"valid","keyUser":"ops"}`, service)
	})
	mux.HandleFunc("/api/uploader/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pending":2,"processing":1,"completed":40,"failed":0,"isBusy":false}`)
	})
	mux.HandleFunc("/api/uploader/upload", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.uploaded = append(f.uploaded, header.Filename)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeConfig(t *testing.T, cfg map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestParse_Text(t *testing.T) {
	out, err := execute(t, "parse", lateFile)

	require.NoError(t, err)
	assert.Contains(t, out, "24:00 next-day")
	assert.Contains(t, out, "2022-11-29 00:00:00")
	assert.Contains(t, out, "2022-11-29 00:08:26")
	assert.Contains(t, out, "8.4min")
}

func TestParse_FailureExitsNonZero(t *testing.T) {
	out, err := execute(t, "parse", lateFile, legacyFile)

	assert.ErrorIs(t, err, ErrParseFailed)
	assert.Contains(t, out, "error: No matching pattern found")
	assert.Contains(t, out, "24:00 next-day")
}

func TestParse_JSON(t *testing.T) {
	out, err := execute(t, "parse", "--json", lateFile)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, lateFile, got["filename"])
	assert.Equal(t, true, got["parseSuccess"])
	assert.Equal(t, "2400", got["scheduledSlotRaw"])
	assert.Equal(t, float64(506), got["processingDelaySeconds"])
	assert.Equal(t, float64(1), got["slotDayOffset"])
	assert.Equal(t, "8.4min", got["delayText"])
}

func TestParse_RequiresArgument(t *testing.T) {
	_, err := execute(t, "parse")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	server := newFakeMMS(t, true)

	out, err := execute(t, "ping", "--url", server.URL, "--key", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "ops")
}

func TestPing_NotReady(t *testing.T) {
	server := newFakeMMS(t, false)

	out, err := execute(t, "ping", "--url", server.URL, "--key", "secret")

	assert.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, out, "starting")
}

func TestPing_Unauthorized(t *testing.T) {
	server := newFakeMMS(t, true)

	_, err := execute(t, "ping", "--url", server.URL, "--key", "wrong")

	require.Error(t, err)
	assert.NotErrorIs(t, err, errCheckFailed)
}

func TestPing_NoURL(t *testing.T) {
	_, err := execute(t, "ping")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server url is not configured")
}

func TestStatus(t *testing.T) {
	server := newFakeMMS(t, true)

	out, err := execute(t, "status", "--url", server.URL, "--key", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "Pending:")
	assert.Contains(t, out, "40")
	assert.Contains(t, out, "false")
}

func TestUpload_ShipsInboxToServerAndArchive(t *testing.T) {
	server := newFakeMMS(t, true)
	folder := t.TempDir()
	archive := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(folder, "inbox"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "inbox", lateFile), []byte("TDDF"), 0644))

	cfgPath := writeConfig(t, map[string]interface{}{
		"folder": folder,
		"server": map[string]interface{}{"url": server.URL, "api_key": "secret"},
		"storage": map[string]interface{}{
			"destinations": []map[string]interface{}{
				{"name": "mms", "type": "mms", "enabled": true},
				{"name": "archive", "type": "local", "enabled": true, "options": map[string]interface{}{"path": archive}},
			},
		},
	})

	out, err := execute(t, "upload", "-c", cfgPath, "--batch-size", "2")

	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded 1, duplicates 0, failed 0, skipped 0 of 1 files")
	assert.Contains(t, out, "max 8.4min")

	server.mu.Lock()
	assert.Equal(t, []string{lateFile}, server.uploaded)
	server.mu.Unlock()

	assert.FileExists(t, filepath.Join(archive, "2022", "11", "29", lateFile))
	assert.FileExists(t, filepath.Join(folder, "processed", lateFile))
	assert.NoFileExists(t, filepath.Join(folder, "inbox", lateFile))
	assert.FileExists(t, filepath.Join(folder, "logs", "tddf-uploader.log"))
}

func TestUpload_FlagsOnly(t *testing.T) {
	server := newFakeMMS(t, true)
	folder := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(folder, "inbox"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "inbox", lateFile), []byte("TDDF"), 0644))

	out, err := execute(t, "upload", "--folder", folder, "--url", server.URL, "--key", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded 1,")

	server.mu.Lock()
	assert.Equal(t, []string{lateFile}, server.uploaded)
	server.mu.Unlock()

	assert.FileExists(t, filepath.Join(folder, "processed", lateFile))
	assert.NoFileExists(t, filepath.Join(folder, "inbox", lateFile))
}

func TestUpload_NoDestinations(t *testing.T) {
	_, err := execute(t, "upload", "--folder", t.TempDir())

	assert.ErrorIs(t, err, storage.ErrInvalidConfig)
}

func TestUpload_InvalidConfig(t *testing.T) {
	cfgPath := writeConfig(t, map[string]interface{}{"batch_size": 0})

	_, err := execute(t, "upload", "-c", cfgPath)

	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	folder := t.TempDir()
	processed := filepath.Join(folder, "processed")
	require.NoError(t, os.MkdirAll(processed, 0755))

	names := []string{
		"VERMNTSB.6759_TDDF_0830_11282022_083000.TSYSO",
		"VERMNTSB.6759_TDDF_0830_11292022_083000.TSYSO",
		"VERMNTSB.6759_TDDF_0830_11302022_083000.TSYSO",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(processed, n), []byte("TDDF"), 0644))
	}

	out, err := execute(t, "prune", "--folder", folder, "--keep", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 of 3 processed files")
	assert.NoFileExists(t, filepath.Join(processed, names[0]))
	assert.NoFileExists(t, filepath.Join(processed, names[1]))
	assert.FileExists(t, filepath.Join(processed, names[2]))
}

func TestPrune_NoPolicy(t *testing.T) {
	out, err := execute(t, "prune", "--folder", t.TempDir())

	require.NoError(t, err)
	assert.Contains(t, out, "nothing to prune")
}

func TestMigrate_LedgerDisabled(t *testing.T) {
	_, err := execute(t, "migrate")

	assert.ErrorIs(t, err, ErrLedgerDisabled)
}

func TestReconcile_LedgerDisabled(t *testing.T) {
	_, err := execute(t, "reconcile")

	assert.ErrorIs(t, err, ErrLedgerDisabled)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "tddf-uploader 1.2.3")
	assert.Contains(t, out, "User-Agent: tddf-uploader/1.2.3")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "version", "-c", filepath.Join(t.TempDir(), "missing.json"))

	assert.Error(t, err)
}
