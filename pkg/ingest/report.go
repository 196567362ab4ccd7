package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

// File statuses in a Report
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusDuplicate = "duplicate"
)

// FileResult is the outcome for one inbox file
type FileResult struct {
	Name          string        `json:"name"`
	Status        string        `json:"status"`
	ParseSuccess  bool          `json:"parse_success"`
	ObjectKey     string        `json:"object_key,omitempty"`
	ProcessedPath string        `json:"processed_path,omitempty"`
	ScheduledSlot string        `json:"scheduled_slot,omitempty"`
	DelaySeconds  *int64        `json:"delay_seconds,omitempty"`
	DelayText     string        `json:"delay_text,omitempty"`
	Destinations  []Destination `json:"destinations,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Destination is the per-backend part of a FileResult
type Destination struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration"`
}

// DelaySummary aggregates processing delays of the parsed files in a run
type DelaySummary struct {
	Parsed     int     `json:"parsed"`
	Unparsed   int     `json:"unparsed"`
	Late       int     `json:"late"`
	Early      int     `json:"early"`
	OnTime     int     `json:"on_time"`
	MinSeconds int64   `json:"min_seconds"`
	MaxSeconds int64   `json:"max_seconds"`
	AvgSeconds float64 `json:"avg_seconds"`
	MinText    string  `json:"min"`
	MaxText    string  `json:"max"`
}

// Report summarises an ingest run. Files the ledger already held are
// counted under Duplicates, never under Skipped.
type Report struct {
	RunID      uuid.UUID    `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Duplicates int          `json:"duplicates"`
	Files      []FileResult `json:"files"`
	Delays     DelaySummary `json:"delays"`
	Error      string       `json:"error,omitempty"`
}

func newReport(runID uuid.UUID) *Report {
	return &Report{RunID: runID, StartedAt: time.Now(), Files: []FileResult{}}
}

func (r *Report) add(results ...FileResult) {
	for _, f := range results {
		switch f.Status {
		case StatusSuccess:
			r.Successful++
		case StatusFailed:
			r.Failed++
		case StatusDuplicate:
			r.Duplicates++
		default:
			r.Skipped++
		}
		r.Files = append(r.Files, f)
	}
}

func (r *Report) finish() {
	r.FinishedAt = time.Now()
	r.Delays = SummarizeDelays(r.Files)
}

// SummarizeDelays computes delay statistics over the parsed files
func SummarizeDelays(files []FileResult) DelaySummary {
	var s DelaySummary
	var total int64

	for _, f := range files {
		if !f.ParseSuccess || f.DelaySeconds == nil {
			s.Unparsed++
			continue
		}

		d := *f.DelaySeconds
		if s.Parsed == 0 || d < s.MinSeconds {
			s.MinSeconds = d
		}
		if s.Parsed == 0 || d > s.MaxSeconds {
			s.MaxSeconds = d
		}
		s.Parsed++
		total += d

		switch {
		case d > 0:
			s.Late++
		case d < 0:
			s.Early++
		default:
			s.OnTime++
		}
	}

	if s.Parsed > 0 {
		s.AvgSeconds = float64(total) / float64(s.Parsed)
		s.MinText = tddf.FormatDelay(&s.MinSeconds)
		s.MaxText = tddf.FormatDelay(&s.MaxSeconds)
	}
	return s
}

// Save writes the report as upload-report-YYYYMMDD-HHMMSS.json into dir
func (r *Report) Save(dir string) (string, error) {
	stamp := r.FinishedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	path := filepath.Join(dir, fmt.Sprintf("upload-report-%s.json", stamp.Format("20060102-150405")))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}
