package localfs

// ListOptions configures ListDirectory and UploadCandidates.
type ListOptions struct {
	// IncludeHidden includes dot files. Default is false.
	IncludeHidden bool
}
