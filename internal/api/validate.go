package api

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/models"
)

// MaxFolderNameLength bounds names accepted by CreateFolder.
const MaxFolderNameLength = 120

var folderNamePattern = regexp.MustCompile(`^[^/\\]+$`)

// Every decoded response passes through one of these before it reaches callers.
// A failure is reported as ErrMalformedResponse.

func validateFolder(f *models.Folder) error {
	return validation.ValidateStruct(f,
		validation.Field(&f.ID, validation.Required),
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.ParentFolderID, validation.NilOrNotEmpty),
	)
}

func validateFile(f *models.File) error {
	return validation.ValidateStruct(f,
		validation.Field(&f.ID, validation.Required),
		validation.Field(&f.FileName, validation.Required),
		validation.Field(&f.FileSize, validation.Min(int64(0))),
	)
}

func validateSnapshot(s *models.Snapshot) error {
	for i := range s.Folders {
		if err := validateFolder(&s.Folders[i]); err != nil {
			return fmt.Errorf("folders[%d]: %w", i, err)
		}
	}
	for i := range s.Files {
		if err := validateFile(&s.Files[i]); err != nil {
			return fmt.Errorf("files[%d]: %w", i, err)
		}
	}
	return nil
}

func validateClient(c *models.Client) error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

func validateNotification(n *models.Notification) error {
	return validation.ValidateStruct(n,
		validation.Field(&n.ID, validation.Required),
		validation.Field(&n.Title, validation.Required.When(n.Message == "")),
	)
}

func validateActivity(a *models.ActivityEntry) error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.Action, validation.Required),
	)
}

func validateLoginResponse(r *models.LoginResponse) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required),
	)
}

// Requests are validated locally and rejected with ErrInvalidRequest before any I/O.

func validateLoginRequest(r *models.LoginRequest) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.Required, validation.In(constants.CALoginRole)),
	)
}

func validateCreateFolderRequest(r *models.CreateFolderRequest) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ClientID, validation.Required),
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, MaxFolderNameLength),
			validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
		),
		validation.Field(&r.ParentFolderID, validation.NilOrNotEmpty),
	)
}

func validateUploadMetadata(m *models.UploadMetadata) error {
	return validation.ValidateStruct(m,
		validation.Field(&m.ClientID, validation.Required),
		validation.Field(&m.FolderID, validation.Required.Error("uploads need a target folder")),
	)
}

func invalid(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidRequest, what, err)
}
