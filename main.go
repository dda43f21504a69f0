package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment variables configuring the geocoding collaborator
const (
	envGeocodingAPIKey   = "GEOCODING_API_KEY"
	envGeocodingProvider = "GEOCODING_PROVIDER"
)

func main() {
	var (
		inputFolder  string
		outputFolder string
		workers      int
		noCache      bool
		debug        bool
		noProgress   bool
		fileTypes    []string
	)

	flag.StringVar(&inputFolder, "input-folder", "", "Input folder containing photos and videos")
	flag.StringVar(&outputFolder, "output-folder", "", "Output folder for organized media")
	flag.IntVar(&workers, "workers", 0, "Number of worker goroutines (default: CPU count * 2, capped at 32)")
	flag.BoolVar(&noCache, "no-cache", false, "Disable the geocoding cache")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	flag.StringSliceVar(&fileTypes, "file-types", nil, "Restrict processing to these extensions (e.g. jpg,mp4)")
	flag.Parse()

	if inputFolder == "" || outputFolder == "" {
		fmt.Fprintln(os.Stderr, "Usage: photo-organizer --input-folder SRC --output-folder DST [--workers N] [--no-cache] [--debug] [--file-types jpg,mp4]")
		os.Exit(2)
	}

	log := newLogger(debug)
	defer log.Sync()
	sugar := log.Sugar()

	// Best-effort .env loading for the geocoding credential
	_ = godotenv.Load()

	info, err := os.Stat(inputFolder)
	if err != nil || !info.IsDir() {
		sugar.Errorw("invalid input folder", "path", inputFolder, "error", err)
		os.Exit(1)
	}

	var cache *GeocodeCache
	if !noCache {
		cachePath, err := defaultCachePath()
		if err == nil {
			cache, err = NewGeocodeCache(cachePath)
		}
		if err != nil {
			sugar.Warnw("geocoding cache disabled", "error", err)
			cache = nil
		}
	}
	if cache != nil {
		defer cache.Close()
	}

	geocoder := geocoderFromEnv(sugar)

	exiftoolExtractor := NewExiftoolExtractor(sugar)
	defer exiftoolExtractor.Close()

	videos := NewVideoExtractorChain(sugar, NewMP4Extractor(sugar), exiftoolExtractor)

	dispatcher := NewDispatcher(
		NewPhotoExtractor(debug, sugar),
		videos,
		NewDateResolver(sugar),
		NewLocationResolver(geocoder, cache, sugar),
		NewPathBuilder(outputFolder),
		fileTypes,
		sugar,
	)

	opts := Options{
		InputFolder:  inputFolder,
		OutputFolder: outputFolder,
		Workers:      workers,
		UseCache:     !noCache,
		Debug:        debug,
		ShowProgress: !noProgress && !debug,
		FileTypes:    fileTypes,
	}

	cancelMgr := NewCancellationManager()
	stop := cancelMgr.WatchSignals(sugar)
	defer stop()

	organizer := NewOrganizer(opts, dispatcher, cache, sugar)
	summary, err := organizer.Run(cancelMgr.Context())
	if err != nil {
		sugar.Errorw("organization failed", "error", err)
		os.Exit(1)
	}
	if summary.Cancelled {
		sugar.Warn("process interrupted by user")
		os.Exit(1)
	}
}

// newLogger builds the process logger; --debug switches to debug level with
// development formatting
func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// geocoderFromEnv selects and configures the reverse-geocoding backend.
// Without a credential, geocoding is disabled and every file gets the
// sentinel location.
func geocoderFromEnv(log *zap.SugaredLogger) Geocoder {
	apiKey := os.Getenv(envGeocodingAPIKey)
	if apiKey == "" {
		log.Infow("no geocoding credential configured, locations will be " + unknownLocation)
		return nil
	}

	switch provider := os.Getenv(envGeocodingProvider); provider {
	case "locationiq":
		return newLocationIQGeocoder(apiKey)
	case "", "nominatim":
		// Nominatim takes no API key; the credential doubles as the contact
		// address its usage policy asks for
		return newNominatimGeocoder(apiKey)
	default:
		log.Warnw("unknown geocoding provider, falling back to nominatim", "provider", provider)
		return newNominatimGeocoder(apiKey)
	}
}
