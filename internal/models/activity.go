package models

import "time"

// ActivityEntry is one line of the firm's audit log.
type ActivityEntry struct {
	ID         string    `json:"_id" yaml:"id"`
	Action     string    `json:"action" yaml:"action"`
	ClientName string    `json:"clientName,omitempty" yaml:"clientName,omitempty"`
	Details    string    `json:"details" yaml:"details"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

var actionLabels = map[string]string{
	"CREATE_CLIENT":           "Client Created",
	"UPDATE_CLIENT":           "Client Updated",
	"DELETE_CLIENT":           "Client Deleted",
	"GENERATE_FOLDERS":        "Folders Generated",
	"UPLOAD_FILE":             "File Uploaded",
	"DELETE_FILE":             "File Deleted",
	"RESTORE_FILE":            "File Restored",
	"PERMANENT_DELETE_FILE":   "File Permanently Deleted",
	"CREATE_FOLDER":           "Folder Created",
	"DELETE_FOLDER":           "Folder Deleted",
	"RESTORE_FOLDER":          "Folder Restored",
	"PERMANENT_DELETE_FOLDER": "Folder Permanently Deleted",
	"LOGIN":                   "Login",
	"CA_REGISTER":             "Registration",
	"UPDATE_PROFILE":          "Profile Updated",
	"APPROVE_DEVICE":          "Device Approved",
	"REJECT_DEVICE":           "Device Rejected",
}

// ActionLabel returns the human label for the entry's action code, or the code itself.
func (a ActivityEntry) ActionLabel() string {
	if l, ok := actionLabels[a.Action]; ok {
		return l
	}
	return a.Action
}
