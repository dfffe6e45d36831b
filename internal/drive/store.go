// Package drive holds the remote object store the upload and retention
// managers talk to. The interface is the four operations the pipeline
// needs; Google Drive is the one production implementation.
package drive

import "context"

// File is a remote file reference.
type File struct {
	ID   string
	Name string
	Size int64
	URL  string
}

// Store is the remote store capability. Implementations must be safe for
// concurrent use; authentication and token refresh are their business.
type Store interface {
	// EnsureFolder returns the id of the named folder under parentID
	// (empty parentID means the store root), creating it if missing.
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	// ListFiles returns the files directly inside a folder.
	ListFiles(ctx context.Context, folderID string) ([]File, error)
	// UploadFile stores a local file under the given name in a folder and
	// returns the remote reference the store assigned.
	UploadFile(ctx context.Context, folderID, localPath, name string) (File, error)
	// DeleteFile removes a remote file.
	DeleteFile(ctx context.Context, fileID string) error
}
