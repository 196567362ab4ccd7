// Package rotation prunes the processed archive of ingested TDDF files.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/tddf_uploader/pkg/config"
	"github.com/williamokano/tddf_uploader/pkg/storage"
)

// Policy combines a flat limit with optional age tiers
type Policy struct {
	Keep  int // newest files kept overall, 0 = unlimited
	Tiers []config.RetentionTier
}

// PolicyFrom builds a Policy from configuration
func PolicyFrom(cfg config.RetentionConfig) Policy {
	return Policy{Keep: cfg.ProcessedKeep, Tiers: cfg.Tiers}
}

// Result reports what a prune did
type Result struct {
	Listed  int
	Deleted []string
	Failed  int
}

// Prune lists the backend and deletes whatever the policy does not keep
func Prune(ctx context.Context, backend storage.Backend, policy Policy, loc *time.Location, logger zerolog.Logger) (Result, error) {
	log := logger.With().Str("backend", backend.Name()).Logger()

	files, err := backend.List(ctx, "*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to list files: %w", err)
	}

	result := Result{Listed: len(files)}
	if len(files) == 0 {
		log.Debug().Msg("no files found, nothing to prune")
		return result, nil
	}

	selected := make(map[string]struct{})
	for _, f := range SelectForDeletion(files, policy.Keep, loc) {
		selected[f.Path] = struct{}{}
	}
	for _, p := range ApplyTiers(Classify(files, loc), policy.Tiers, time.Now(), log) {
		selected[p] = struct{}{}
	}

	if len(selected) == 0 {
		log.Info().Int("files", len(files)).Msg("within retention limits")
		return result, nil
	}

	paths := make([]string, 0, len(selected))
	for p := range selected {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	log.Info().Int("to_delete", len(paths)).Int("files", len(files)).Msg("applying retention policy")

	for _, p := range paths {
		if err := backend.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Error().Err(err).Str("file", p).Msg("failed to delete file")
			result.Failed++
			continue
		}
		log.Info().Str("file", p).Msg("deleted file")
		result.Deleted = append(result.Deleted, p)
	}

	if result.Failed > 0 {
		return result, fmt.Errorf("failed to delete %d out of %d files", result.Failed, len(paths))
	}

	log.Info().Int("deleted", len(result.Deleted)).Msg("prune completed")
	return result, nil
}
