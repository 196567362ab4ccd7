package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MultiUploader ships one file to several backends in parallel
type MultiUploader struct {
	logger zerolog.Logger
}

// NewMultiUploader creates a new multi-uploader
func NewMultiUploader(logger zerolog.Logger) *MultiUploader {
	return &MultiUploader{logger: logger}
}

// Upload writes sourcePath to destPath on every backend concurrently.
// A backend answering ErrDuplicate already holds the file and counts as a success.
// Results come back in the order of backends.
func (m *MultiUploader) Upload(ctx context.Context, backends []Backend, sourcePath, destPath string) []Result {
	results := make([]Result, len(backends))

	var wg sync.WaitGroup
	for i, backend := range backends {
		wg.Add(1)

		go func(i int, b Backend) {
			defer wg.Done()

			log := m.logger.With().
				Str("backend", b.Name()).
				Str("type", b.Type()).
				Str("object_key", destPath).
				Logger()

			log.Debug().Msg("starting upload")

			start := time.Now()
			err := b.Write(ctx, sourcePath, destPath)
			duration := time.Since(start)

			result := Result{
				BackendName: b.Name(),
				BackendType: b.Type(),
				Success:     err == nil,
				Error:       err,
				Duration:    duration,
			}

			switch {
			case errors.Is(err, ErrDuplicate):
				result.Success = true
				result.Duplicate = true
				result.Error = nil
				log.Info().Dur("duration", duration).Msg("destination already has file")
			case err != nil:
				log.Error().Err(err).Dur("duration", duration).Msg("upload failed")
			default:
				log.Info().Dur("duration", duration).Msg("upload succeeded")
			}

			results[i] = result
		}(i, backend)
	}

	wg.Wait()

	return results
}
