package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/djherbis/times"
	"go.uber.org/zap"
)

// Metadata keys carrying a capture timestamp, in priority order
const (
	keyDateTimeOriginal = "DateTimeOriginal"
	keyDateTime         = "DateTime"
	keyCreationDate     = "CreationDate"
)

// exifDateFormats lists the known timestamp encodings, tried in order.
// The fractional-second variants are listed explicitly to match the formats
// seen in the wild even though time.Parse tolerates trailing fractions.
var exifDateFormats = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02 15:04:05.000000",
	"2006-01-02 15:04:05.000000",
}

// UnparseableDateError represents a metadata timestamp that matched no known
// format and defeated free-form parsing
type UnparseableDateError struct {
	Value string
}

func (e *UnparseableDateError) Error() string {
	return fmt.Sprintf("could not parse date string: %q", e.Value)
}

// DateResolver determines the authoritative capture timestamp for a file
type DateResolver struct {
	log *zap.SugaredLogger
}

// NewDateResolver creates a date resolver
func NewDateResolver(log *zap.SugaredLogger) *DateResolver {
	return &DateResolver{log: log}
}

// Resolve determines the capture timestamp for a file. It never fails:
// metadata timestamps are tried first, then filesystem timestamps, and as an
// absolute last resort the current time.
func (r *DateResolver) Resolve(path string, meta RawMetadata) time.Time {
	if t, err := r.fromMetadata(meta); err == nil {
		return t
	} else if !errors.Is(err, errNoDateField) {
		r.log.Debugw("no usable metadata timestamp", "file", path, "reason", err)
	}

	return r.fromFilesystem(path)
}

// errNoDateField signals that the metadata carried no timestamp field at all
var errNoDateField = errors.New("metadata carries no timestamp field")

// fromMetadata extracts and parses the embedded capture timestamp
func (r *DateResolver) fromMetadata(meta RawMetadata) (time.Time, error) {
	value := meta[keyDateTimeOriginal]
	if value == nil {
		value = meta[keyDateTime]
	}
	if value == nil {
		value = meta[keyCreationDate]
	}
	if value == nil {
		return time.Time{}, errNoDateField
	}

	// Video extractors hand over parsed timestamps directly
	if t, ok := value.(time.Time); ok && !t.IsZero() {
		return t, nil
	}

	dateStr := strings.TrimSpace(fmt.Sprintf("%v", value))
	if dateStr == "" {
		return time.Time{}, errNoDateField
	}

	return parseTimestamp(dateStr)
}

// parseTimestamp tries the fixed format list first, then a best-effort
// free-form parse
func parseTimestamp(dateStr string) (time.Time, error) {
	for _, format := range exifDateFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	if t, err := dateparse.ParseLocal(dateStr); err == nil {
		return t, nil
	}

	return time.Time{}, &UnparseableDateError{Value: dateStr}
}

// fromFilesystem falls back to file timestamps: the earlier of modification
// and status-change time, then creation time, then now
func (r *DateResolver) fromFilesystem(path string) time.Time {
	ts, err := times.Stat(path)
	if err != nil {
		r.log.Debugw("failed to stat file for timestamps", "file", path, "error", err)
		if info, statErr := os.Stat(path); statErr == nil {
			return info.ModTime()
		}
		return time.Now()
	}

	t := ts.ModTime()
	if ts.HasChangeTime() && ts.ChangeTime().Before(t) {
		t = ts.ChangeTime()
	}
	if !t.IsZero() {
		return t
	}

	if ts.HasBirthTime() {
		return ts.BirthTime()
	}
	return time.Now()
}
