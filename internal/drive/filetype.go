package drive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mrd/ca-drive/internal/constants"
)

var (
	// ErrUnsupportedType is returned for files that are not images, PDFs or Excel workbooks.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned for files above the upload size cap.
	ErrTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-byte files.
	ErrEmptyFile = errors.New("file is empty")
)

// Accepted upload MIME types.
var acceptedTypes = map[string]bool{
	"image/png":     true,
	"image/gif":     true,
	"image/jpeg":    true,
	"image/svg+xml": true,
	"image/webp":    true,
	"image/avif":    true,
	"image/heic":    true,
	"image/heif":    true,

	"application/pdf": true,

	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// Bytes read for content sniffing. OOXML detection needs the first few zip
// entries, not just the signature.
const sniffLen = 3072

// Extensions resolved without consulting the host MIME database, which
// differs between platforms.
var extensionTypes = map[string]string{
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// LocalFile is a file queued for upload.
type LocalFile struct {
	Name        string
	Path        string
	Size        int64
	ContentType string

	data []byte
}

// NewLocalFile stats and sniffs a file on disk.
func NewLocalFile(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}

	f := LocalFile{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}

	head, err := readHead(path)
	if err != nil {
		return LocalFile{}, err
	}
	f.ContentType = DetectContentType(f.Name, head)
	return f, nil
}

// NewMemoryFile wraps in-memory content as an upload candidate.
func NewMemoryFile(name string, data []byte) LocalFile {
	return LocalFile{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: DetectContentType(name, data),
		data:        data,
	}
}

// Open returns a reader over the file content.
func (f LocalFile) Open() (io.ReadCloser, error) {
	if f.Path == "" {
		return io.NopCloser(bytes.NewReader(f.data)), nil
	}
	return os.Open(f.Path)
}

// Check reports why a file would be refused for upload, or nil.
func (f LocalFile) Check() error {
	if !acceptedTypes[f.ContentType] {
		return fmt.Errorf("%w: %s (%s); accepted: images, PDF, Excel", ErrUnsupportedType, f.Name, f.ContentType)
	}
	if f.Size == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, f.Name)
	}
	if f.Size > constants.MaxUploadSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, f.Name, f.Size, constants.MaxUploadSize)
	}
	return nil
}

// DetectContentType picks a MIME type from the extension, then from the content.
func DetectContentType(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(mimetype.Detect(head).String())
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

// AcceptedType reports whether contentType may be uploaded.
func AcceptedType(contentType string) bool {
	return acceptedTypes[contentType]
}

func readHead(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(fh, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf[:n], nil
}
