package storage

import (
	"path"
	"path/filepath"

	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

// UnparsedPrefix holds files whose names carry no usable schedule
const UnparsedPrefix = "unparsed"

// ObjectKey returns the destination path of an ingested file:
// YYYY/MM/DD/<name> from the scheduled date, or unparsed/<name>.
func ObjectKey(filename string, parsed tddf.ParsedTimestamps) string {
	name := filepath.Base(filename)
	if !parsed.ParseSuccess || parsed.ScheduledDateTime == nil {
		return path.Join(UnparsedPrefix, name)
	}
	return path.Join(parsed.ScheduledDateTime.Format("2006/01/02"), name)
}
