// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and working paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Version is the version of the application. It is set at link time.
var Version = "Dev"

const (
	// CmdName is the name of the command line tool.
	CmdName = "astro-ingester"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "astro-ingester"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultStoreEndpoint is the default object store endpoint.
	DefaultStoreEndpoint = "http://localhost:9000"

	// DefaultStoreRegion is the region used to sign object store requests.
	DefaultStoreRegion = "us-east-1"

	// DefaultBucket is the bucket raw frames are uploaded into.
	DefaultBucket = "astronomical-data"

	// DefaultArchiveURL is the frames endpoint of the science archive.
	DefaultArchiveURL = "http://localhost:9500/frames/"

	// DefaultArchiveTimeout is the default response timeout when registering with the archive.
	DefaultArchiveTimeout = 30 * time.Second

	// DefaultMetricsJob is the job label used when pushing metrics.
	DefaultMetricsJob = "astro-ingester"

	// DefaultExtension is the extension recorded for frames without one.
	DefaultExtension = ".fits"

	// DefaultListenPort is the port the web service listens on.
	DefaultListenPort = 3001

	// DefaultMaxUploadBytes bounds the size of a multipart ingest request.
	DefaultMaxUploadBytes = 1 << 30

	// UploadsFolder is the name of the folder receiving files posted to the web service.
	UploadsFolder = "uploads"
)

type options struct {
	cacheDir func() (string, error)
}

type option func(*options)

// GetDefaultUploadDir is the default directory the web service stores posted files in.
func GetDefaultUploadDir(opts ...option) string {
	o := options{cacheDir: os.UserCacheDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getCacheDir(o.cacheDir), DefaultAppFolder, UploadsFolder)
}

// getCacheDir returns the directory given by cacheDirFunc, or an empty string on error.
func getCacheDir(cacheDirFunc func() (string, error)) string {
	dir, err := cacheDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
