// Package reconcile compares the ledger against what the storage backends hold.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/rs/zerolog"

	"github.com/williamokano/tddf_uploader/pkg/ledger"
	"github.com/williamokano/tddf_uploader/pkg/storage"
)

// Result is the comparison for one backend
type Result struct {
	Backend      string   `json:"backend"`
	Type         string   `json:"type"`
	Skipped      bool     `json:"skipped,omitempty"`
	LedgerCount  int      `json:"ledger_count"`
	BackendCount int      `json:"backend_count"`
	Missing      []string `json:"missing,omitempty"`
	Extra        []string `json:"extra,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Matched reports whether the backend holds exactly the ledger's files
func (r Result) Matched() bool {
	return r.Skipped || (r.Error == "" && len(r.Missing) == 0 && len(r.Extra) == 0)
}

// AllMatched reports whether every result matched
func AllMatched(results []Result) bool {
	for _, r := range results {
		if !r.Matched() {
			return false
		}
	}
	return true
}

// Run lists every backend and compares object names with the ledger.
// Backends that cannot list are reported as skipped.
func Run(ctx context.Context, store ledger.Store, backends []storage.Backend, logger zerolog.Logger) ([]Result, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}

	names, err := store.Filenames(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) != count {
		return nil, fmt.Errorf("ledger changed during reconcile: count %d, listed %d", count, len(names))
	}

	recorded := make(map[string]struct{}, len(names))
	for _, n := range names {
		recorded[n] = struct{}{}
	}

	results := make([]Result, 0, len(backends))
	for _, b := range backends {
		r := compare(ctx, b, recorded)
		r.LedgerCount = count

		log := logger.With().Str("backend", r.Backend).Str("type", r.Type).Logger()
		switch {
		case r.Skipped:
			log.Info().Msg("backend cannot list objects, skipped")
		case r.Error != "":
			log.Error().Str("error", r.Error).Msg("reconcile failed")
		case r.Matched():
			log.Info().Int("count", r.BackendCount).Msg("backend matches ledger")
		default:
			log.Warn().
				Int("ledger_count", r.LedgerCount).
				Int("backend_count", r.BackendCount).
				Int("missing", len(r.Missing)).
				Int("extra", len(r.Extra)).
				Msg("backend does not match ledger")
		}

		results = append(results, r)
	}

	return results, nil
}

func compare(ctx context.Context, b storage.Backend, recorded map[string]struct{}) Result {
	r := Result{Backend: b.Name(), Type: b.Type()}

	files, err := b.List(ctx, "*")
	if errors.Is(err, storage.ErrUnsupported) {
		r.Skipped = true
		return r
	}
	if err != nil {
		r.Error = err.Error()
		return r
	}

	stored := make(map[string]struct{}, len(files))
	for _, f := range files {
		stored[path.Base(f.Path)] = struct{}{}
	}
	r.BackendCount = len(stored)

	for name := range recorded {
		if _, ok := stored[name]; !ok {
			r.Missing = append(r.Missing, name)
		}
	}
	for name := range stored {
		if _, ok := recorded[name]; !ok {
			r.Extra = append(r.Extra, name)
		}
	}

	sort.Strings(r.Missing)
	sort.Strings(r.Extra)
	return r
}
