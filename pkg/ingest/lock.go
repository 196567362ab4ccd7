package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// ErrLocked is returned when another uploader instance holds the lock
var ErrLocked = errors.New("another uploader instance is running")

// LockInfo is the content of the instance lock file
type LockInfo struct {
	PID       int     `json:"pid"`
	Hostname  string  `json:"hostname"`
	StartedAt string  `json:"started_at"`
	Timestamp float64 `json:"timestamp"` // unix seconds
}

func (l LockInfo) age(now time.Time) time.Duration {
	sec := int64(l.Timestamp)
	nsec := int64((l.Timestamp - float64(sec)) * 1e9)
	return now.Sub(time.Unix(sec, nsec))
}

// Lock is a held instance lock
type Lock struct {
	path string
	info LockInfo
}

// pidAlive is swapped in tests
var pidAlive = func(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err != nil || ok
}

// AcquireLock takes the instance lock at path. A lock older than
// staleAfter, or one left by a dead process on this host, is taken over.
// The lock file appears atomically with its full content, so two instances
// starting together cannot both win.
func AcquireLock(path string, staleAfter time.Duration, logger zerolog.Logger) (*Lock, error) {
	hostname, _ := os.Hostname()
	now := time.Now()

	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: now.Format(time.RFC3339),
		Timestamp: float64(now.UnixNano()) / 1e9,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}

	err = createLock(path, data)
	if errors.Is(err, fs.ErrExist) {
		if err := checkExisting(path, hostname, staleAfter, now, logger); err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove old lock file: %w", err)
		}
		err = createLock(path, data)
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w (lock taken by another instance during takeover)", ErrLocked)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	logger.Info().Int("pid", info.PID).Str("lock", path).Msg("instance lock acquired")
	return &Lock{path: path, info: info}, nil
}

// checkExisting returns ErrLocked unless the lock at path may be taken over
func checkExisting(path, hostname string, staleAfter time.Duration, now time.Time, logger zerolog.Logger) error {
	existing, err := readLock(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		logger.Warn().Err(err).Str("lock", path).Msg("unreadable lock file, overriding")
		return nil
	}

	switch {
	case existing.age(now) > staleAfter:
		logger.Warn().
			Int("pid", existing.PID).
			Str("hostname", existing.Hostname).
			Str("started_at", existing.StartedAt).
			Dur("stale_after", staleAfter).
			Msg("overriding stale lock")
		return nil
	case existing.Hostname == hostname && !pidAlive(existing.PID):
		logger.Warn().
			Int("pid", existing.PID).
			Msg("overriding lock left by a process that is no longer running")
		return nil
	case existing.Hostname == hostname:
		return fmt.Errorf("%w (PID %d, started %s)", ErrLocked, existing.PID, existing.StartedAt)
	default:
		return fmt.Errorf("%w on %s (PID %d, started %s)", ErrLocked, existing.Hostname, existing.PID, existing.StartedAt)
	}
}

// createLock writes data to a temp file and hard-links it into place.
// The link fails with fs.ErrExist when path is already taken.
func createLock(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".uploader.lock-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Link(tmpPath, path)
}

// Release removes the lock file if it still belongs to this process
func (l *Lock) Release() error {
	current, err := readLock(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if current.PID != l.info.PID || current.Hostname != l.info.Hostname {
		return nil
	}
	return os.Remove(l.path)
}

func readLock(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt lock file %s: %w", path, err)
	}
	return &info, nil
}
