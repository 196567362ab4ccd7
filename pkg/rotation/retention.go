package rotation

import (
	"path"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/tddf_uploader/pkg/config"
	"github.com/williamokano/tddf_uploader/pkg/storage"
	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

// ArchivedFile is a stored TDDF file with the time it was processed upstream
type ArchivedFile struct {
	storage.FileInfo
	Timestamp time.Time
	FromName  bool // Timestamp came from the filename rather than ModTime
}

// Classify dates every file by the actual processing time in its name,
// falling back to ModTime when the name does not parse
func Classify(files []storage.FileInfo, loc *time.Location) []ArchivedFile {
	out := make([]ArchivedFile, 0, len(files))
	for _, f := range files {
		a := ArchivedFile{FileInfo: f, Timestamp: f.ModTime}
		if parsed := tddf.ParseInLocation(path.Base(f.Path), loc); parsed.ParseSuccess && parsed.ActualDateTime != nil {
			a.Timestamp = *parsed.ActualDateTime
			a.FromName = true
		}
		out = append(out, a)
	}
	return out
}

// newestFirst sorts by timestamp, newest first, with path as tie breaker
func newestFirst(files []ArchivedFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Timestamp.Equal(files[j].Timestamp) {
			return files[i].Timestamp.After(files[j].Timestamp)
		}
		return files[i].Path < files[j].Path
	})
}

// SelectForDeletion returns every file beyond the newest keep.
// keep == 0 means unlimited.
func SelectForDeletion(files []storage.FileInfo, keep int, loc *time.Location) []storage.FileInfo {
	if keep <= 0 || len(files) <= keep {
		return nil
	}

	archived := Classify(files, loc)
	newestFirst(archived)

	out := make([]storage.FileInfo, 0, len(archived)-keep)
	for _, a := range archived[keep:] {
		out = append(out, a.FileInfo)
	}
	return out
}

// ApplyTiers groups files into age tiers and returns the paths beyond each
// tier's retention. Tiers without a policy, or with retention 0, keep everything.
func ApplyTiers(files []ArchivedFile, tiers []config.RetentionTier, now time.Time, logger zerolog.Logger) []string {
	if len(files) == 0 || len(tiers) == 0 {
		return nil
	}

	byTier := make(map[TierName][]ArchivedFile)
	for _, f := range files {
		t := CategorizeTier(f.Timestamp, now)
		byTier[t] = append(byTier[t], f)
	}

	retention := make(map[TierName]int)
	for _, rt := range tiers {
		t, err := ParseTier(rt.Tier)
		if err != nil {
			logger.Warn().Err(err).Msg("ignoring retention tier")
			continue
		}
		retention[t] = rt.Retention
	}

	var toDelete []string
	for _, tier := range tierOrder {
		group := byTier[tier]
		if len(group) == 0 {
			continue
		}

		limit, ok := retention[tier]
		if !ok || limit == 0 {
			logger.Debug().
				Str("tier", string(tier)).
				Int("count", len(group)).
				Msg("unlimited retention for tier, keeping all files")
			continue
		}

		if len(group) <= limit {
			continue
		}

		newestFirst(group)
		for _, f := range group[limit:] {
			logger.Info().
				Str("tier", string(tier)).
				Str("file", f.Path).
				Time("timestamp", f.Timestamp).
				Msg("marking file for deletion")
			toDelete = append(toDelete, f.Path)
		}
	}

	return toDelete
}
