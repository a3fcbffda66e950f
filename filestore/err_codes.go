package filestore

// Error codes for filestore operations.
const (
	// CodeFileNotFound is returned when no blob exists at the requested path.
	CodeFileNotFound = "FILE_NOT_FOUND"

	// CodeInvalidPath is returned for keys that would escape the store root.
	CodeInvalidPath = "INVALID_BLOB_PATH"
)
