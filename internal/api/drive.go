package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/textproto"
	"strings"

	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/models"
)

// GetAllData fetches the complete folder and file snapshot of a client.
func (c *Client) GetAllData(ctx context.Context, clientID string) (models.Snapshot, error) {
	if clientID == "" {
		return models.Snapshot{}, invalid("get all data", fmt.Errorf("client id is required"))
	}

	var snap models.Snapshot
	if err := c.getJSON(ctx, "/drive/"+escape(clientID)+"/all-data", "get all data", &snap); err != nil {
		return models.Snapshot{}, err
	}
	if err := validateSnapshot(&snap); err != nil {
		return models.Snapshot{}, malformed("get all data", err)
	}
	if snap.Folders == nil {
		snap.Folders = []models.Folder{}
	}
	if snap.Files == nil {
		snap.Files = []models.File{}
	}
	return snap, nil
}

// UploadFile streams one file as multipart/form-data into a folder of a client's drive.
func (c *Client) UploadFile(ctx context.Context, fileName, contentType string, content io.Reader, meta models.UploadMetadata) (*models.File, error) {
	if err := validateUploadMetadata(&meta); err != nil {
		return nil, invalid("upload "+fileName, err)
	}
	if meta.Category == "" {
		meta.Category = constants.DefaultUploadCategory
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	writeErr := make(chan error, 1)
	go func() {
		err := writeUploadBody(mw, fileName, contentType, content, meta)
		pw.CloseWithError(err)
		writeErr <- err
	}()

	const path = "/drive/upload"
	status, data, err := c.doUpload(ctx, path, mw.FormDataContentType(), pr)
	// Unblocks the writer when the request ended before draining the body.
	pr.Close()
	if werr := <-writeErr; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		return nil, fmt.Errorf("upload %s: %w", fileName, werr)
	}
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}
	if status != nethttp.StatusOK && status != nethttp.StatusCreated {
		return nil, newStatusError(nethttp.MethodPost, path, status, data)
	}

	file, err := decodeWrapped[models.File](data, "file")
	if err != nil {
		return nil, malformed("upload "+fileName, err)
	}
	if file.ID == "" {
		// Some backends only acknowledge; the refetch that follows carries the real record.
		file.FileName = fileName
		file.FileType = contentType
		return &file, nil
	}
	if err := validateFile(&file); err != nil {
		return nil, malformed("upload "+fileName, err)
	}
	return &file, nil
}

func writeUploadBody(mw *multipart.Writer, fileName, contentType string, content io.Reader, meta models.UploadMetadata) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to read %s: %w", fileName, err)
	}

	fields := []struct{ k, v string }{
		{"clientId", meta.ClientID},
		{"folderId", meta.FolderID},
		{"uploadedBy", constants.UploadedByCA},
		{"category", meta.Category},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.k, f.v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f.k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return nil
}

// CreateFolder creates a folder under parentFolderID (nil for a root folder).
func (c *Client) CreateFolder(ctx context.Context, req models.CreateFolderRequest) (*models.Folder, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateCreateFolderRequest(&req); err != nil {
		return nil, invalid("create folder", err)
	}

	status, data, err := c.doRequest(ctx, nethttp.MethodPost, "/drive/folders", req)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	if status != nethttp.StatusOK && status != nethttp.StatusCreated {
		return nil, newStatusError(nethttp.MethodPost, "/drive/folders", status, data)
	}

	folder, err := decodeWrapped[models.Folder](data, "folder")
	if err != nil {
		return nil, malformed("create folder", err)
	}
	if err := validateFolder(&folder); err != nil {
		return nil, malformed("create folder", err)
	}
	return &folder, nil
}

// DeleteFile soft-deletes a file into the bin.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return invalid("delete file", fmt.Errorf("file id is required"))
	}
	return c.callJSON(ctx, nethttp.MethodDelete, "/drive/files/"+escape(fileID), nil, "delete file", nil)
}

// DeleteFolder soft-deletes a folder into the bin.
func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	if folderID == "" {
		return invalid("delete folder", fmt.Errorf("folder id is required"))
	}
	return c.callJSON(ctx, nethttp.MethodDelete, "/drive/folders/"+escape(folderID), nil, "delete folder", nil)
}

// GetBinItems lists a client's soft-deleted folders and files.
func (c *Client) GetBinItems(ctx context.Context, clientID string) (models.BinItems, error) {
	if clientID == "" {
		return models.BinItems{}, invalid("get bin", fmt.Errorf("client id is required"))
	}

	var bin models.BinItems
	if err := c.getJSON(ctx, "/drive/"+escape(clientID)+"/bin", "get bin", &bin); err != nil {
		return models.BinItems{}, err
	}
	if err := validateSnapshot(&models.Snapshot{Folders: bin.Folders, Files: bin.Files}); err != nil {
		return models.BinItems{}, malformed("get bin", err)
	}
	return bin, nil
}

// RestoreItem moves a file or folder out of the bin.
func (c *Client) RestoreItem(ctx context.Context, itemType models.ItemType, id string) error {
	if id == "" {
		return invalid("restore", fmt.Errorf("id is required"))
	}
	path := fmt.Sprintf("/drive/restore/%s/%s", itemType, escape(id))
	return c.callJSON(ctx, nethttp.MethodPut, path, nil, "restore "+string(itemType), nil)
}

// PermanentDelete removes a binned file or folder for good.
func (c *Client) PermanentDelete(ctx context.Context, itemType models.ItemType, id string) error {
	if id == "" {
		return invalid("permanent delete", fmt.Errorf("id is required"))
	}
	path := fmt.Sprintf("/drive/permanent/%s/%s", itemType, escape(id))
	return c.callJSON(ctx, nethttp.MethodDelete, path, nil, "permanent delete "+string(itemType), nil)
}

// decodeWrapped decodes T either directly or from a {"<key>": T} / {"data": T} envelope.
func decodeWrapped[T any](data []byte, key string) (T, error) {
	var zero T
	if len(bytes.TrimSpace(data)) == 0 {
		return zero, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return zero, err
	}
	for _, k := range []string{key, "data"} {
		if raw, ok := envelope[k]; ok && len(raw) > 0 && raw[0] == '{' {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return zero, err
			}
			return v, nil
		}
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, err
	}
	return v, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
