// Package models holds the wire types exchanged with the CA dashboard backend.
package models

import (
	"strings"
	"time"
)

// Folder is a drive folder. Root folders (ParentFolderID == nil) are fiscal-year containers.
type Folder struct {
	ID             string    `json:"_id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	ParentFolderID *string   `json:"parentFolderId" yaml:"parentFolderId"`
	ClientID       string    `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	CreatedAt      time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt      time.Time `json:"deletedAt,omitzero" yaml:"deletedAt,omitempty"`
}

// IsRoot reports whether the folder sits at the top of the tree.
func (f Folder) IsRoot() bool {
	return f.ParentFolderID == nil
}

// ModifiedAt returns UpdatedAt, falling back to CreatedAt.
func (f Folder) ModifiedAt() time.Time {
	if !f.UpdatedAt.IsZero() {
		return f.UpdatedAt
	}
	return f.CreatedAt
}

// File is a document stored in a client's drive.
type File struct {
	ID        string    `json:"_id" yaml:"id"`
	FileName  string    `json:"fileName" yaml:"fileName"`
	FileType  string    `json:"fileType" yaml:"fileType"`
	FolderID  *string   `json:"folderId" yaml:"folderId"`
	FileSize  int64     `json:"fileSize" yaml:"fileSize"`
	FileURL   string    `json:"fileUrl" yaml:"fileUrl"`
	Category  string    `json:"category,omitempty" yaml:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	DeletedAt time.Time `json:"deletedAt,omitzero" yaml:"deletedAt,omitempty"`
}

// FileKind groups MIME types by how the file is displayed and previewed.
type FileKind string

const (
	FileKindPDF         FileKind = "pdf"
	FileKindSpreadsheet FileKind = "spreadsheet"
	FileKindImage       FileKind = "image"
	FileKindOther       FileKind = "other"
)

// Kind classifies the file by its MIME type. PDF wins over spreadsheet, which wins over image.
func (f File) Kind() FileKind {
	mime := strings.ToLower(f.FileType)
	switch {
	case strings.Contains(mime, "pdf"):
		return FileKindPDF
	case strings.Contains(mime, "sheet"), strings.Contains(mime, "excel"):
		return FileKindSpreadsheet
	case strings.Contains(mime, "image"):
		return FileKindImage
	default:
		return FileKindOther
	}
}

// Previewable reports whether the file can be rendered inline (images and PDFs).
func (f File) Previewable() bool {
	k := f.Kind()
	return k == FileKindImage || k == FileKindPDF
}

// TypeLabel returns the upper-cased MIME subtype, or "FILE" when there is none.
func (f File) TypeLabel() string {
	_, sub, ok := strings.Cut(f.FileType, "/")
	if !ok || sub == "" {
		return "FILE"
	}
	return strings.ToUpper(sub)
}

// SizeKB returns the size in whole kilobytes, rounded to nearest.
func (f File) SizeKB() int64 {
	return (f.FileSize + 512) / 1024
}

// Snapshot is the complete folder and file set of one client at one point in time.
type Snapshot struct {
	Folders []Folder `json:"folders" yaml:"folders"`
	Files   []File   `json:"files" yaml:"files"`
}

// IsEmpty reports whether the snapshot holds no folders and no files.
func (s Snapshot) IsEmpty() bool {
	return len(s.Folders) == 0 && len(s.Files) == 0
}

// FolderByID looks up a folder in the snapshot.
func (s Snapshot) FolderByID(id string) (Folder, bool) {
	for _, f := range s.Folders {
		if f.ID == id {
			return f, true
		}
	}
	return Folder{}, false
}

// FileByID looks up a file in the snapshot.
func (s Snapshot) FileByID(id string) (File, bool) {
	for _, f := range s.Files {
		if f.ID == id {
			return f, true
		}
	}
	return File{}, false
}

// BinItems are the soft-deleted folders and files of a client.
type BinItems struct {
	Folders []Folder `json:"folders" yaml:"folders"`
	Files   []File   `json:"files" yaml:"files"`
}

// ItemType names the kind of a bin item in restore and purge routes.
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeFolder ItemType = "folder"
)

// ParseItemType validates a user-supplied item type.
func ParseItemType(s string) (ItemType, bool) {
	switch ItemType(strings.ToLower(s)) {
	case ItemTypeFile:
		return ItemTypeFile, true
	case ItemTypeFolder:
		return ItemTypeFolder, true
	}
	return "", false
}

// UploadMetadata accompanies a file upload.
type UploadMetadata struct {
	ClientID string
	FolderID string
	Category string
}

// CreateFolderRequest is the body of POST /drive/folders.
type CreateFolderRequest struct {
	Name           string  `json:"name"`
	ClientID       string  `json:"clientId"`
	ParentFolderID *string `json:"parentFolderId"`
}
