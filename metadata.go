package main

import (
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"
	"go.uber.org/zap"
)

// RawMetadata is the opaque key-value mapping produced by the format-specific
// extractors. The resolution pipeline only reads it.
type RawMetadata map[string]any

// MetadataExtractor extracts raw metadata from a media file
type MetadataExtractor interface {
	Extract(path string) (RawMetadata, error)
}

func init() {
	// Recognize maker-note tags from the common camera vendors
	exif.RegisterParsers(mknote.All...)
}

// PhotoExtractor reads EXIF metadata from image files
type PhotoExtractor struct {
	debug bool
	log   *zap.SugaredLogger
}

// NewPhotoExtractor creates a photo metadata extractor
func NewPhotoExtractor(debug bool, log *zap.SugaredLogger) *PhotoExtractor {
	return &PhotoExtractor{debug: debug, log: log}
}

// Extract decodes the EXIF block of an image into raw metadata. Files without
// EXIF data yield an empty mapping rather than an error, so the caller falls
// back to filesystem timestamps and the sentinel location.
func (e *PhotoExtractor) Extract(path string) (RawMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		e.log.Debugw("no EXIF data", "file", path, "error", err)
		return RawMetadata{}, nil
	}

	meta := RawMetadata{}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		if tag, err := x.Get(field); err == nil {
			if s, err := tag.StringVal(); err == nil && s != "" {
				meta[string(field)] = s
			}
		}
	}

	if lat, ok := rationalTriple(x, exif.GPSLatitude); ok {
		meta[keyGPSLatitude] = lat
	}
	if lon, ok := rationalTriple(x, exif.GPSLongitude); ok {
		meta[keyGPSLongitude] = lon
	}
	for _, field := range []exif.FieldName{exif.GPSLatitudeRef, exif.GPSLongitudeRef} {
		if tag, err := x.Get(field); err == nil {
			if s, err := tag.StringVal(); err == nil {
				meta[string(field)] = s
			}
		}
	}

	if e.debug {
		e.dumpTags(path, x)
	}

	return meta, nil
}

// rationalTriple reads a 3-component rational GPS tag. Short or absent tags
// yield ok=false; the converter reports them as malformed later only when a
// partial triple was present.
func rationalTriple(x *exif.Exif, field exif.FieldName) ([]Rational, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return nil, false
	}

	count := int(tag.Count)
	values := make([]Rational, 0, count)
	for i := 0; i < count; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			break
		}
		values = append(values, Rational{Num: num, Den: den})
	}

	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// dumpTags logs every EXIF tag of a file at debug level
func (e *PhotoExtractor) dumpTags(path string, x *exif.Exif) {
	e.log.Debugw("EXIF data analysis", "file", path)
	_ = x.Walk(tagDumper{log: e.log})
}

// tagDumper implements exif.Walker to dump tags through the logger
type tagDumper struct {
	log *zap.SugaredLogger
}

func (d tagDumper) Walk(name exif.FieldName, tag *tiff.Tag) error {
	d.log.Debugw("EXIF tag", "name", string(name), "value", tag.String())
	return nil
}
