package cli

import (
	"errors"
	"fmt"
)

// errCheckFailed marks a command that ran fine but whose outcome should exit non-zero.
// The check failures below wrap it.
var errCheckFailed = errors.New("check failed")

var (
	ErrParseFailed    = fmt.Errorf("one or more filenames did not parse: %w", errCheckFailed)
	ErrNotReady       = fmt.Errorf("server is not ready: %w", errCheckFailed)
	ErrUploadFailed   = fmt.Errorf("one or more files failed to upload: %w", errCheckFailed)
	ErrMismatch       = fmt.Errorf("ledger and storage disagree: %w", errCheckFailed)
	ErrLedgerDisabled = errors.New("ledger.dsn is not configured")
)
