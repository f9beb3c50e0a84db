package artifact

// CleanupResult contains information about intermediate files handled during cleanup
type CleanupResult struct {
	DeletedFiles  []DeletedFile
	RetainedFiles []string
	FailedFiles   []FailedDelete
	FreedBytes    int64
}

// DeletedFile represents a file that was deleted
type DeletedFile struct {
	Path string
	Size int64
}

// FailedDelete records a delete that could not be completed
type FailedDelete struct {
	Path string
	Err  error
}
