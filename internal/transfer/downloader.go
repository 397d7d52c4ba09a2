// Package transfer downloads drive files to local disk. File URLs may point
// at the API host, at a pre-signed HTTP location, at S3 (s3://bucket/key) or
// at an Azure blob SAS URL.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mrd/ca-drive/internal/config"
	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/diskspace"
	"github.com/mrd/ca-drive/internal/http"
	"github.com/mrd/ca-drive/internal/logging"
	"github.com/mrd/ca-drive/internal/progress"
	"github.com/mrd/ca-drive/internal/util/buffers"
	"github.com/mrd/ca-drive/internal/validation"
)

// ErrExists is returned when the destination file exists and Overwrite is off.
var ErrExists = errors.New("destination already exists")

// Request describes one file to fetch.
type Request struct {
	URL       string
	DestDir   string
	FileName  string
	Size      int64 // expected size; 0 skips the disk space check
	Overwrite bool
}

// Result is a completed download.
type Result struct {
	Path   string
	Bytes  int64
	Source string // "http", "s3" or "azure"
}

// Downloader fetches files with retry and writes them atomically.
type Downloader struct {
	cfg        *config.Config
	httpClient *nethttp.Client
	apiHost    string
	token      string
	retry      http.Config
	timeout    time.Duration
	logger     *logging.Logger

	// s3Endpoint overrides the S3 endpoint; tests point it at httptest.
	s3Endpoint string
	s3Once     sync.Once
	s3         *s3Source
	s3Err      error
}

// NewDownloader builds a downloader sharing the proxy settings in cfg.
// The bearer token is only sent to the API host.
func NewDownloader(cfg *config.Config, logger *logging.Logger) (*Downloader, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	client, err := http.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer client: %w", err)
	}

	d := &Downloader{
		cfg:        cfg,
		httpClient: client,
		token:      cfg.Token,
		retry:      http.DefaultConfig(),
		timeout:    constants.DownloadTimeout,
		logger:     logger,
	}
	if u, err := url.Parse(cfg.APIBaseURL); err == nil {
		d.apiHost = u.Host
	}
	d.retry.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		logger.Warn().Err(err).Int("attempt", attempt).Str("type", http.ErrorTypeName(errType)).Msg("Retrying download")
	}
	return d, nil
}

// Download fetches req.URL into req.DestDir/req.FileName. Data is written to a
// temporary file in the destination directory and renamed on success, so a
// failed attempt never leaves a truncated file under the final name.
func (d *Downloader) Download(ctx context.Context, req Request, reporter progress.Reporter) (*Result, error) {
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}
	if err := validation.ValidateFilename(req.FileName); err != nil {
		return nil, err
	}
	destDir := req.DestDir
	if destDir == "" {
		destDir = "."
	}
	dest := filepath.Join(destDir, req.FileName)
	if err := validation.ValidatePathInDirectory(dest, destDir); err != nil {
		return nil, err
	}
	if !req.Overwrite {
		if _, err := os.Stat(dest); err == nil {
			return nil, fmt.Errorf("%s: %w", dest, ErrExists)
		}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	if req.Size > 0 {
		if err := diskspace.CheckForDownload(destDir, req.Size); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid download URL %q: %w", req.URL, err)
	}
	kind := sourceKind(u)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var written int64
	err = http.ExecuteWithRetry(ctx, d.retry, func() error {
		n, err := d.fetchOnce(ctx, kind, u, dest, req.FileName, reporter)
		written = n
		return err
	})
	if err != nil {
		reporter.Error(err)
		return nil, err
	}
	reporter.Finish()

	d.logger.Info().Str("file", dest).Int64("bytes", written).Str("source", kind).Msg("Download complete")
	return &Result{Path: dest, Bytes: written, Source: kind}, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, kind string, u *url.URL, dest, label string, reporter progress.Reporter) (int64, error) {
	body, size, err := d.open(ctx, kind, u)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	reporter.Start(size, label)
	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)
	// The wrapper hides (*os.File).ReadFrom so the pooled buffer is used.
	n, err := io.CopyBuffer(struct{ io.Writer }{tmp}, progress.NewProgressReader(body, reporter), *buf)
	if err != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	if size > 0 && n != size {
		return n, fmt.Errorf("short download: got %d of %d bytes (unexpected EOF)", n, size)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}
	committed = true
	return n, nil
}

func (d *Downloader) open(ctx context.Context, kind string, u *url.URL) (io.ReadCloser, int64, error) {
	switch kind {
	case sourceS3:
		src, err := d.s3Source(ctx)
		if err != nil {
			return nil, 0, err
		}
		return src.open(ctx, u)
	case sourceAzure:
		return openAzure(ctx, d.httpClient, u)
	default:
		return d.openHTTP(ctx, u)
	}
}

func (d *Downloader) openHTTP(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	if d.token != "" && u.Host == d.apiHost {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func (d *Downloader) s3Source(ctx context.Context) (*s3Source, error) {
	d.s3Once.Do(func() {
		d.s3, d.s3Err = newS3Source(ctx, d.cfg, d.httpClient, d.s3Endpoint)
	})
	return d.s3, d.s3Err
}

const (
	sourceHTTP  = "http"
	sourceS3    = "s3"
	sourceAzure = "azure"
)

func sourceKind(u *url.URL) string {
	switch {
	case strings.EqualFold(u.Scheme, "s3"):
		return sourceS3
	case strings.HasSuffix(strings.ToLower(u.Hostname()), ".blob.core.windows.net"):
		return sourceAzure
	default:
		return sourceHTTP
	}
}
