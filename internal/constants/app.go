package constants

import (
	"time"
)

// Backend defaults
const (
	// DefaultAPIURL - dashboard backend used when nothing else is configured
	DefaultAPIURL = "http://localhost:5001/api"

	// CALoginRole - role sent with every CA login
	CALoginRole = "CAADMIN"

	// UploadedByCA - value of the uploadedBy multipart field
	UploadedByCA = "CA"

	// DefaultUploadCategory - category attached to drive uploads
	DefaultUploadCategory = "GENERAL"
)

// Upload acceptance
const (
	// MaxUploadSize - largest file accepted for a drive upload (10 MB)
	MaxUploadSize = 10 * 1024 * 1024

	// DefaultUploadWorkers - concurrent uploads per batch
	DefaultUploadWorkers = 4

	// MaxUploadWorkers - upper bound on concurrent uploads
	MaxUploadWorkers = 10
)

// Retry configuration
const (
	// MaxRetries - maximum retries for transient download errors
	MaxRetries = 5

	// APIMaxRetries - retries for idempotent API GETs
	APIMaxRetries = 3

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second
)

// API pacing
const (
	// APIRatePerSec - sustained API calls per second per client
	APIRatePerSec = 10.0

	// APIBurstCapacity - calls allowed back to back before pacing starts
	APIBurstCapacity = 40.0
)

// Download streaming
const (
	// CopyBufferSize - buffer used to stream a download body to disk (256 KiB)
	CopyBufferSize = 256 * 1024
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond file size (15%)
	DiskSpaceBufferPercent = 0.15
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size per subscriber
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar updates (250ms)
	ProgressUpdateInterval = 250 * time.Millisecond

	// StatusMessageTTL - how long a status bar message stays before clearing
	StatusMessageTTL = 4 * time.Second
)

// API and Context Timeouts
const (
	// APIRequestTimeout - default timeout for a single API request (30 seconds)
	APIRequestTimeout = 30 * time.Second

	// UploadRequestTimeout - default timeout for one multipart upload (5 minutes)
	UploadRequestTimeout = 5 * time.Minute

	// DownloadTimeout - overall cap for one file download (30 minutes)
	DownloadTimeout = 30 * time.Minute
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)

// Drive navigation
const (
	// RootBreadcrumbName - label of the first breadcrumb
	RootBreadcrumbName = "Root"

	// FiscalYearPrefix - root folders named with this prefix sort newest first
	FiscalYearPrefix = "FY"
)

// DefaultFiscalYears is the year list offered when the backend supplies none.
var DefaultFiscalYears = []string{
	"FY - 2025-26",
	"FY - 2024-25",
	"FY - 2023-24",
	"FY - 2022-23",
}
