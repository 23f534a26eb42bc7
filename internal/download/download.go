// Package download streams accepted documents to the output directory.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/logger"
)

const (
	defaultChunkSize = 8192
	defaultExtension = ".pdf"
	partSuffix       = ".part"
)

// ErrorKind classifies a download failure.
type ErrorKind string

const (
	KindRequest    ErrorKind = "request"
	KindStatus     ErrorKind = "status"
	KindStream     ErrorKind = "stream"
	KindTooLarge   ErrorKind = "too_large"
	KindFilesystem ErrorKind = "filesystem"
)

// ErrTooLarge is wrapped by errors for bodies over the configured size limit.
var ErrTooLarge = errors.New("document exceeds size limit")

// DownloadError describes a failed download. No partial file is left behind.
type DownloadError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a download attempt that did not fail.
type Result struct {
	Status domain.DocumentStatus
	Path   string
	Size   int64
	SHA256 string
}

// Config configures a Downloader.
type Config struct {
	Dir       string
	Extension string
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	ChunkSize int
}

// Downloader writes documents into one directory. It is safe for concurrent use;
// concurrent downloads that map to the same file name run one at a time, and
// each later one sees the file the earlier one wrote.
type Downloader struct {
	client  *http.Client
	cfg     Config
	log     logger.Logger
	flights singleflight.Group
}

// New creates a Downloader.
func New(client *http.Client, cfg Config, log logger.Logger) *Downloader {
	if cfg.Extension == "" {
		cfg.Extension = defaultExtension
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Downloader{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// Download fetches rawURL into a file named after title. An existing file of
// that name yields StatusSkipped and no request. On failure the partial file
// is removed and a *DownloadError is returned.
func (d *Downloader) Download(ctx context.Context, rawURL, title string) (Result, error) {
	name := FileName(title, rawURL, d.cfg.Extension)
	target := filepath.Join(d.cfg.Dir, name)

	for {
		ran := false
		v, err, _ := d.flights.Do(name, func() (any, error) {
			ran = true
			return d.download(ctx, rawURL, target)
		})
		if ran {
			return v.(Result), err
		}
		// Joined another download of the same name; check the disk again.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, &DownloadError{Kind: KindRequest, URL: rawURL, Err: ctxErr}
		}
	}
}

func (d *Downloader) download(ctx context.Context, rawURL, target string) (Result, error) {
	if _, err := os.Stat(target); err == nil {
		d.log.Debug("Document already on disk", logger.String("path", target))
		return Result{Status: domain.StatusSkipped, Path: target}, nil
	}

	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return Result{}, &DownloadError{Kind: KindFilesystem, URL: rawURL, Err: err}
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return Result{}, &DownloadError{Kind: KindRequest, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req) //nolint:gosec // URL accepted by the document filter
	if err != nil {
		return Result{}, &DownloadError{Kind: KindRequest, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, &DownloadError{Kind: KindStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}
	if d.cfg.MaxBytes > 0 && resp.ContentLength > d.cfg.MaxBytes {
		return Result{}, &DownloadError{Kind: KindTooLarge, URL: rawURL, Err: ErrTooLarge}
	}

	size, sum, err := d.writeFile(resp.Body, target)
	if err != nil {
		var de *DownloadError
		if errors.As(err, &de) {
			de.URL = rawURL
			return Result{}, de
		}
		return Result{}, &DownloadError{Kind: KindFilesystem, URL: rawURL, Err: err}
	}

	d.log.Info("Downloaded document",
		logger.String("url", rawURL),
		logger.String("path", target),
		logger.Int64("bytes", size),
	)

	return Result{Status: domain.StatusDownloaded, Path: target, Size: size, SHA256: sum}, nil
}

// writeFile streams body into a temporary file next to target in fixed-size
// chunks and renames it into place once complete.
func (d *Downloader) writeFile(body io.Reader, target string) (size int64, sum string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*"+partSuffix)
	if err != nil {
		return 0, "", err
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	buf := make([]byte, d.cfg.ChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			size += int64(n)
			if d.cfg.MaxBytes > 0 && size > d.cfg.MaxBytes {
				return 0, "", &DownloadError{Kind: KindTooLarge, Err: ErrTooLarge}
			}
			if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
				return 0, "", &DownloadError{Kind: KindFilesystem, Err: writeErr}
			}
			_, _ = hasher.Write(buf[:n])
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return 0, "", &DownloadError{Kind: KindStream, Err: readErr}
		}
	}

	if err = tmp.Sync(); err != nil {
		return 0, "", err
	}
	if err = tmp.Close(); err != nil {
		return 0, "", err
	}
	if err = os.Rename(tmpPath, target); err != nil {
		return 0, "", err
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}
