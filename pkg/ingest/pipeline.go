// Package ingest moves TDDF files from the inbox to every storage destination.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/williamokano/tddf_uploader/pkg/config"
	"github.com/williamokano/tddf_uploader/pkg/ledger"
	"github.com/williamokano/tddf_uploader/pkg/mmsapi"
	"github.com/williamokano/tddf_uploader/pkg/storage"
	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

// ErrServerUnavailable is returned when the MMS server never woke up
var ErrServerUnavailable = errors.New("server unavailable")

// ErrEmptyFile marks an inbox file with no content. Object stores do not
// list empty objects, so it would never reconcile.
var ErrEmptyFile = errors.New("file is empty")

// maxPollErrors is how many failed status calls in a row end the busy wait
const maxPollErrors = 5

// Server is the part of the MMS API the pipeline talks to
type Server interface {
	WakeUp(ctx context.Context, attempts int, interval time.Duration) (*mmsapi.PingResponse, error)
	Status(ctx context.Context) (*mmsapi.QueueStatus, error)
}

// Options wires a Pipeline. Ledger and Server are optional.
type Options struct {
	Config         *config.Config
	Backends       []storage.Backend
	Ledger         ledger.Store
	Server         Server
	WakeUpAttempts int
	WakeUpInterval time.Duration
	Logger         zerolog.Logger
}

// Pipeline runs one ingest pass over the inbox
type Pipeline struct {
	cfg      *config.Config
	backends []storage.Backend
	uploader *storage.MultiUploader
	ledger   ledger.Store
	server   Server
	loc      *time.Location
	attempts int
	interval time.Duration
	pollWait time.Duration
	logger   zerolog.Logger
}

// New validates options and builds a Pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if len(opts.Backends) == 0 {
		return nil, fmt.Errorf("no storage backends: %w", storage.ErrInvalidConfig)
	}

	loc, err := opts.Config.Location()
	if err != nil {
		return nil, err
	}

	attempts := opts.WakeUpAttempts
	if attempts <= 0 {
		attempts = mmsapi.DefaultWakeUpAttempts
	}
	interval := opts.WakeUpInterval
	if interval <= 0 {
		interval = mmsapi.DefaultWakeUpInterval
	}

	return &Pipeline{
		cfg:      opts.Config,
		backends: opts.Backends,
		uploader: storage.NewMultiUploader(opts.Logger),
		ledger:   opts.Ledger,
		server:   opts.Server,
		loc:      loc,
		attempts: attempts,
		interval: interval,
		pollWait: opts.Config.GetPollingInterval(),
		logger:   opts.Logger,
	}, nil
}

// Run claims every inbox file, ships it to all backends and files it under
// processed/. The report is saved to logs/ whenever files were found.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := newReport(uuid.New())
	log := p.logger.With().Str("run_id", report.RunID.String()).Logger()

	if err := EnsureLayout(p.cfg); err != nil {
		return nil, err
	}

	lock, err := AcquireLock(p.cfg.LockPath(), p.cfg.GetLockStaleAfter(), log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Msg("failed to release instance lock")
		}
	}()

	files, err := ScanInbox(p.cfg.InboxDir())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		log.Info().Str("inbox", p.cfg.InboxDir()).Msg("no files in inbox")
		report.finish()
		return report, nil
	}

	log.Info().
		Int("files", len(files)).
		Int("batch_size", p.cfg.GetBatchSize()).
		Int("max_concurrent", p.cfg.GetMaxConcurrentUploads()).
		Msg("starting ingest run")

	var runErr error
	if p.server != nil {
		if _, err := p.server.WakeUp(ctx, p.attempts, p.interval); err != nil {
			log.Error().Err(err).Msg("cannot proceed, server not responding")
			for _, f := range files {
				report.add(p.unprocessed(f, StatusFailed, err))
			}
			runErr = fmt.Errorf("%w: %w", ErrServerUnavailable, err)
		}
	}

	if runErr == nil {
		runErr = p.runBatches(ctx, files, report, log)
	}

	report.finish()
	if runErr != nil {
		report.Error = runErr.Error()
	}

	if path, err := report.Save(p.cfg.LogsDir()); err != nil {
		log.Error().Err(err).Msg("failed to save report")
	} else {
		log.Info().Str("report", path).Msg("report saved")
	}

	log.Info().
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("parsed", report.Delays.Parsed).
		Str("max_delay", report.Delays.MaxText).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("ingest run completed")

	return report, runErr
}

func (p *Pipeline) runBatches(ctx context.Context, files []string, report *Report, log zerolog.Logger) error {
	size := p.cfg.GetBatchSize()

	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		batch := files[start:end]

		if start > 0 {
			if err := p.waitUntilIdle(ctx, log); err != nil {
				for _, f := range files[start:] {
					report.add(p.unprocessed(f, StatusSkipped, err))
				}
				return err
			}
		}

		log.Info().
			Int("batch", start/size+1).
			Int("files", len(batch)).
			Msg("processing batch")

		report.add(p.processBatch(ctx, batch, report.RunID, log)...)

		if err := ctx.Err(); err != nil {
			for _, f := range files[end:] {
				report.add(p.unprocessed(f, StatusSkipped, err))
			}
			return err
		}
	}

	return nil
}

// processBatch uploads the files of one batch in parallel,
// bounded by max_concurrent_uploads
func (p *Pipeline) processBatch(ctx context.Context, batch []string, runID uuid.UUID, log zerolog.Logger) []FileResult {
	results := make([]FileResult, len(batch))

	sem := semaphore.NewWeighted(int64(p.cfg.GetMaxConcurrentUploads()))
	g, gCtx := errgroup.WithContext(ctx)

	for i, path := range batch {
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return fmt.Errorf("failed to acquire semaphore: %w", err)
			}
			defer sem.Release(1)

			results[i] = p.processFile(gCtx, path, runID, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("batch interrupted")
	}

	for i, r := range results {
		if r.Status == "" {
			results[i] = p.unprocessed(batch[i], StatusSkipped, ctx.Err())
		}
	}

	return results
}

func (p *Pipeline) processFile(ctx context.Context, path string, runID uuid.UUID, log zerolog.Logger) FileResult {
	result := p.unprocessed(path, "", nil)
	fileLog := log.With().Str("file", result.Name).Logger()

	claimed, err := claim(path)
	if err != nil {
		fileLog.Warn().Err(err).Msg("could not claim file, already being processed?")
		result.Status = StatusSkipped
		result.Error = err.Error()
		return result
	}

	if p.ledger != nil {
		seen, err := p.ledger.Has(ctx, result.Name)
		if err != nil {
			fileLog.Warn().Err(err).Msg("ledger lookup failed, uploading anyway")
		}
		if seen {
			fileLog.Info().Msg("already ingested, filing without upload")
			result.Status = StatusDuplicate
			p.file(claimed, &result, fileLog)
			return result
		}
	}

	info, err := os.Stat(claimed)
	if err == nil && info.Size() == 0 {
		err = ErrEmptyFile
	}
	if err != nil {
		fileLog.Warn().Err(err).Msg("cannot upload file, returning it to inbox")
		result.Status = StatusFailed
		result.Error = err.Error()
		p.release(claimed, fileLog)
		return result
	}

	uploads := p.uploader.Upload(ctx, p.backends, claimed, result.ObjectKey)

	var errs []error
	for _, u := range uploads {
		d := Destination{
			Name:      u.BackendName,
			Type:      u.BackendType,
			Success:   u.Success,
			Duplicate: u.Duplicate,
			Duration:  u.Duration.Round(time.Millisecond).String(),
		}
		if u.Error != nil {
			d.Error = u.Error.Error()
			errs = append(errs, u.Error)
		}
		result.Destinations = append(result.Destinations, d)
	}

	if !storage.AnySucceeded(uploads) {
		fileLog.Error().Err(errors.Join(errs...)).Msg("all destinations failed, returning file to inbox")
		result.Status = StatusFailed
		result.Error = errors.Join(errs...).Error()
		p.release(claimed, fileLog)
		return result
	}

	if p.ledger != nil {
		parsed := tddf.ParseInLocation(result.Name, p.loc)
		entry := ledger.EntryFromParsed(runID, result.Name, result.ObjectKey, info.Size(), parsed)
		if err := p.ledger.Record(ctx, entry); err != nil {
			fileLog.Warn().Err(err).Msg("failed to record file in ledger")
		}
	}

	result.Status = StatusSuccess
	p.file(claimed, &result, fileLog)

	fileLog.Info().
		Str("object_key", result.ObjectKey).
		Int64("size_bytes", info.Size()).
		Str("delay", result.DelayText).
		Msg("file ingested")

	return result
}

// unprocessed builds a result carrying the parse details of path
func (p *Pipeline) unprocessed(path, status string, err error) FileResult {
	name := filepath.Base(path)
	parsed := tddf.ParseInLocation(name, p.loc)

	result := FileResult{
		Name:         name,
		Status:       status,
		ParseSuccess: parsed.ParseSuccess,
		ObjectKey:    storage.ObjectKey(name, parsed),
		DelaySeconds: parsed.ProcessingDelaySeconds,
		DelayText:    tddf.FormatDelay(parsed.ProcessingDelaySeconds),
	}
	if parsed.ScheduledSlotLabel != nil {
		result.ScheduledSlot = *parsed.ScheduledSlotLabel
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// file moves a claimed file to processed/
func (p *Pipeline) file(claimed string, result *FileResult, log zerolog.Logger) {
	dest, err := moveToProcessed(claimed, p.cfg.ProcessedDir())
	if err != nil {
		log.Error().Err(err).Msg("uploaded but could not move to processed")
		return
	}
	result.ProcessedPath = dest
	if filepath.Base(dest) != result.Name {
		log.Info().Str("processed_as", filepath.Base(dest)).Msg("name taken in processed folder")
	}
}

// release returns a claimed file to the inbox for a later run
func (p *Pipeline) release(claimed string, log zerolog.Logger) {
	if _, err := unclaim(claimed); err != nil {
		log.Error().Err(err).Msg("failed to return file to inbox")
	}
}

// waitUntilIdle polls the server queue until it is no longer busy
func (p *Pipeline) waitUntilIdle(ctx context.Context, log zerolog.Logger) error {
	if p.server == nil {
		return nil
	}

	interval := p.pollWait
	failures := 0

	for {
		status, err := p.server.Status(ctx)
		switch {
		case err != nil:
			failures++
			log.Warn().Err(err).Int("failures", failures).Msg("status check failed")
			if failures >= maxPollErrors {
				log.Warn().Msg("giving up on status checks, continuing")
				return nil
			}
		case !status.IsBusy:
			return nil
		default:
			failures = 0
			log.Info().
				Int("pending", status.Pending).
				Int("processing", status.Processing).
				Dur("retry_in", interval).
				Msg("server busy, waiting before next batch")
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
