package models

import "time"

// UploadStatus is the outcome of one file in an upload batch.
type UploadStatus string

const (
	UploadStatusUploaded UploadStatus = "uploaded"
	UploadStatusRejected UploadStatus = "rejected"
	UploadStatusFailed   UploadStatus = "failed"
)

// UploadRecord is one journaled upload outcome.
type UploadRecord struct {
	ID          int64        `json:"id" yaml:"id"`
	BatchID     string       `json:"batchId" yaml:"batchId"`
	ClientID    string       `json:"clientId" yaml:"clientId"`
	FolderID    string       `json:"folderId" yaml:"folderId"`
	FolderPath  string       `json:"folderPath" yaml:"folderPath"`
	FileName    string       `json:"fileName" yaml:"fileName"`
	LocalPath   string       `json:"localPath,omitempty" yaml:"localPath,omitempty"`
	ContentType string       `json:"contentType" yaml:"contentType"`
	Size        int64        `json:"size" yaml:"size"`
	Status      UploadStatus `json:"status" yaml:"status"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
	FileID      string       `json:"fileId,omitempty" yaml:"fileId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt" yaml:"createdAt"`
}
