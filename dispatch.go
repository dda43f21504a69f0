package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status is the per-file processing outcome. Exactly one applies to each file.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// WorkJob represents a single media file to process
type WorkJob struct {
	Path string
}

// WorkResult represents the outcome of processing one file
type WorkResult struct {
	Job      WorkJob
	Status   Status
	DestPath string
	Message  string
	Err      error
	Duration time.Duration
}

// Default extension sets for classification
var (
	defaultPhotoExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true,
		".heic": true, ".heif": true, ".gif": true,
		".tiff": true, ".tif": true,
	}
	defaultVideoExtensions = map[string]bool{
		".mov": true, ".mp4": true, ".m4v": true, ".3gp": true,
	}
)

// mediaKind classifies a file by extension
type mediaKind int

const (
	kindUnsupported mediaKind = iota
	kindPhoto
	kindVideo
)

// Dispatcher routes each file through metadata extraction, date and location
// resolution, destination building and the final copy
type Dispatcher struct {
	photoExts map[string]bool
	videoExts map[string]bool

	photos    MetadataExtractor
	videos    MetadataExtractor
	dates     *DateResolver
	locations *LocationResolver
	paths     *PathBuilder
	log       *zap.SugaredLogger
}

// NewDispatcher wires the processing pipeline together. fileTypes, when
// non-empty, narrows the supported extensions to the listed ones.
func NewDispatcher(photos, videos MetadataExtractor, dates *DateResolver,
	locations *LocationResolver, paths *PathBuilder, fileTypes []string,
	log *zap.SugaredLogger) *Dispatcher {

	d := &Dispatcher{
		photoExts: filterExtensions(defaultPhotoExtensions, fileTypes),
		videoExts: filterExtensions(defaultVideoExtensions, fileTypes),
		photos:    photos,
		videos:    videos,
		dates:     dates,
		locations: locations,
		paths:     paths,
		log:       log,
	}
	return d
}

// filterExtensions narrows an extension set to an allowlist. An empty
// allowlist keeps the full set.
func filterExtensions(exts map[string]bool, allowed []string) map[string]bool {
	if len(allowed) == 0 {
		return exts
	}
	out := make(map[string]bool)
	for _, a := range allowed {
		ext := strings.ToLower(strings.TrimSpace(a))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if exts[ext] {
			out[ext] = true
		}
	}
	return out
}

// classify determines whether a path is a photo, a video or unsupported
func (d *Dispatcher) classify(path string) mediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case d.photoExts[ext]:
		return kindPhoto
	case d.videoExts[ext]:
		return kindVideo
	default:
		return kindUnsupported
	}
}

// Process runs one file end-to-end and converts every failure into a
// per-file result. A single file never aborts the batch.
func (d *Dispatcher) Process(ctx context.Context, job WorkJob) WorkResult {
	started := time.Now()
	result := d.process(ctx, job)
	result.Duration = time.Since(started)
	return result
}

func (d *Dispatcher) process(ctx context.Context, job WorkJob) WorkResult {
	result := WorkResult{Job: job}

	var extractor MetadataExtractor
	switch d.classify(job.Path) {
	case kindPhoto:
		extractor = d.photos
	case kindVideo:
		extractor = d.videos
	default:
		result.Status = StatusSkipped
		result.Message = fmt.Sprintf("not a supported media file: %s", filepath.Base(job.Path))
		return result
	}

	meta, err := extractor.Extract(job.Path)
	if err != nil {
		// Metadata extraction trouble is not fatal to the file: the date
		// resolver falls back to filesystem timestamps and the location
		// resolver to the sentinel.
		d.log.Debugw("metadata extraction failed", "file", job.Path, "error", err)
		meta = RawMetadata{}
	}

	dateTaken := d.dates.Resolve(job.Path, meta)

	var coord *Coordinate
	if c, found, err := coordinateFromMetadata(meta); err != nil {
		d.log.Debugw("unusable GPS data", "file", job.Path, "error", err)
	} else if found {
		coord = &c
	}
	location := d.locations.Resolve(ctx, coord)

	destPath, err := d.paths.Build(dateTaken, location, job.Path)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		result.Message = fmt.Sprintf("failed to build destination for %s", filepath.Base(job.Path))
		return result
	}

	if err := copyFile(job.Path, destPath); err != nil {
		// Release the reserved slot so the name stays free for other files
		os.Remove(destPath)
		result.Status = StatusFailed
		result.Err = err
		result.Message = fmt.Sprintf("failed to copy %s", filepath.Base(job.Path))
		return result
	}

	result.Status = StatusProcessed
	result.DestPath = destPath
	result.Message = fmt.Sprintf("organized %s to %s", filepath.Base(job.Path), destPath)
	return result
}
