package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	mp4 "github.com/abema/go-mp4"
	"github.com/barasher/go-exiftool"
	"go.uber.org/zap"
)

// appleEpochOffset is the number of seconds between the QuickTime/MP4 epoch
// (1904-01-01 00:00:00 UTC) and the Unix epoch (1970-01-01 00:00:00 UTC).
const appleEpochOffset = 2082844800

// VideoExtractorChain tries each extractor in priority order until one
// produces non-empty metadata
type VideoExtractorChain struct {
	extractors []MetadataExtractor
	log        *zap.SugaredLogger
}

// NewVideoExtractorChain creates a video extraction chain. Extractors are
// tried in the given priority order; the conventional chain is the native
// MP4 container reader first, exiftool as fallback.
func NewVideoExtractorChain(log *zap.SugaredLogger, extractors ...MetadataExtractor) *VideoExtractorChain {
	return &VideoExtractorChain{
		extractors: extractors,
		log:        log,
	}
}

// Extract returns the first non-empty metadata produced by the chain
func (c *VideoExtractorChain) Extract(path string) (RawMetadata, error) {
	var lastErr error
	for _, extractor := range c.extractors {
		meta, err := extractor.Extract(path)
		if err != nil {
			c.log.Debugw("video extractor failed, trying next",
				"file", path, "extractor", fmt.Sprintf("%T", extractor), "error", err)
			lastErr = err
			continue
		}
		if len(meta) > 0 {
			return meta, nil
		}
	}

	if lastErr != nil {
		return RawMetadata{}, lastErr
	}
	return RawMetadata{}, nil
}

// MP4Extractor reads creation time and GPS data from ISO BMFF containers
// (.mp4, .mov and friends) without external tooling
type MP4Extractor struct {
	log *zap.SugaredLogger
}

// NewMP4Extractor creates an MP4 container metadata extractor
func NewMP4Extractor(log *zap.SugaredLogger) *MP4Extractor {
	return &MP4Extractor{log: log}
}

// Extract reads the moov>mvhd box for the creation time and the
// moov>udta>©xyz box for an ISO 6709 GPS string
func (e *MP4Extractor) Extract(path string) (RawMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	meta := RawMetadata{}

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read MP4 structure: %v", err)
	}

	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		creation := mvhd.GetCreationTime()
		if creation == 0 {
			continue
		}
		t := time.Unix(int64(creation)-appleEpochOffset, 0).UTC()
		if t.Year() >= 1970 {
			meta[keyCreationDate] = t
		}
	}

	if lat, lon, ok := e.extractLocation(f); ok {
		// Decimal degrees with derived hemisphere references, matching the
		// shape the resolver expects from video metadata
		meta[keyGPSLatitude] = math.Abs(lat)
		meta[keyGPSLongitude] = math.Abs(lon)
		meta[keyGPSLatitudeRef] = hemisphere(lat, "N", "S")
		meta[keyGPSLongitudeRef] = hemisphere(lon, "E", "W")
	}

	return meta, nil
}

// iso6709Pattern matches the leading lat/lon of an ISO 6709 location string,
// e.g. "+48.8566+002.3522/"
var iso6709Pattern = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)`)

// extractLocation reads the signed decimal coordinates from the udta ©xyz box
func (e *MP4Extractor) extractLocation(f *os.File) (lat, lon float64, ok bool) {
	infos, err := mp4.ExtractBox(f, nil, mp4.BoxPath{
		mp4.BoxTypeMoov(), mp4.BoxTypeUdta(), mp4.StrToBoxType("\xa9xyz"),
	})
	if err != nil || len(infos) == 0 {
		return 0, 0, false
	}

	bi := infos[0]
	payload := make([]byte, bi.Size-bi.HeaderSize)
	if _, err := f.Seek(int64(bi.Offset+bi.HeaderSize), io.SeekStart); err != nil {
		return 0, 0, false
	}
	if _, err := io.ReadFull(f, payload); err != nil {
		return 0, 0, false
	}

	// Payload: 2-byte string length, 2-byte language code, then the string
	if len(payload) < 4 {
		return 0, 0, false
	}
	strLen := int(binary.BigEndian.Uint16(payload[0:2]))
	if strLen == 0 || 4+strLen > len(payload) {
		return 0, 0, false
	}
	location := string(payload[4 : 4+strLen])

	matches := iso6709Pattern.FindStringSubmatch(location)
	if matches == nil {
		return 0, 0, false
	}

	lat, errLat := strconv.ParseFloat(matches[1], 64)
	lon, errLon := strconv.ParseFloat(matches[2], 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// hemisphere picks the reference character for a signed coordinate value
func hemisphere(value float64, positive, negative string) string {
	if value >= 0 {
		return positive
	}
	return negative
}

// ExiftoolExtractor shells out to exiftool for formats the native readers
// cannot handle. The exiftool process is started lazily on first use and
// reused for the rest of the run.
type ExiftoolExtractor struct {
	once sync.Once
	et   *exiftool.Exiftool
	err  error
	log  *zap.SugaredLogger
}

// NewExiftoolExtractor creates an exiftool-backed metadata extractor
func NewExiftoolExtractor(log *zap.SugaredLogger) *ExiftoolExtractor {
	return &ExiftoolExtractor{log: log}
}

// tool returns the shared exiftool instance, starting it on first call
func (e *ExiftoolExtractor) tool() (*exiftool.Exiftool, error) {
	e.once.Do(func() {
		// -n output: GPS fields arrive as signed decimal numbers
		e.et, e.err = exiftool.NewExiftool(exiftool.NoPrintConversion())
	})
	return e.et, e.err
}

// Extract reads metadata via exiftool and maps the fields the pipeline needs
func (e *ExiftoolExtractor) Extract(path string) (RawMetadata, error) {
	et, err := e.tool()
	if err != nil {
		return nil, fmt.Errorf("exiftool unavailable: %v", err)
	}

	results := et.ExtractMetadata(path)
	if len(results) == 0 {
		return RawMetadata{}, nil
	}
	fm := results[0]
	if fm.Err != nil {
		return nil, fmt.Errorf("exiftool failed on %s: %v", path, fm.Err)
	}

	meta := RawMetadata{}

	if s, err := fm.GetString("DateTimeOriginal"); err == nil && s != "" {
		meta[keyDateTimeOriginal] = s
	}
	if s, err := fm.GetString("CreateDate"); err == nil && s != "" {
		meta[keyCreationDate] = s
	}

	lat, latOK := numericField(fm, "GPSLatitude")
	lon, lonOK := numericField(fm, "GPSLongitude")
	if latOK && lonOK {
		meta[keyGPSLatitude] = math.Abs(lat)
		meta[keyGPSLongitude] = math.Abs(lon)
		meta[keyGPSLatitudeRef] = hemisphere(lat, "N", "S")
		meta[keyGPSLongitudeRef] = hemisphere(lon, "E", "W")
	}

	return meta, nil
}

// numericField reads an exiftool field as a float, tolerating the string
// form older exiftool builds emit
func numericField(fm exiftool.FileMetadata, key string) (float64, bool) {
	raw, ok := fm.Fields[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Close shuts the exiftool process down if it was started
func (e *ExiftoolExtractor) Close() {
	if e.et != nil {
		_ = e.et.Close()
	}
}
