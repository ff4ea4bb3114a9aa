package ports

import "context"

// RemoteTaskStatus is a remote drive's answer to GetTaskStatus.
type RemoteTaskStatus string

const (
	RemoteNotFound      RemoteTaskStatus = "not_found"
	RemoteNotDownloading RemoteTaskStatus = "not_downloading"
	RemoteDownloading   RemoteTaskStatus = "downloading"
	RemoteDone          RemoteTaskStatus = "done"
	RemoteError         RemoteTaskStatus = "error"
)

type RemoteFile struct {
	ID   string
	Name string
	Kind string // suffix "folder" distinguishes directories from files
}

type FileListPage struct {
	Files         []RemoteFile
	NextPageToken string
}

type CreatedFolder struct {
	ID   string
	Name string
}

type OfflineDownloadResult struct {
	TaskID string
	FileID string
	Name   string
}

type OfflineFileInfo struct {
	Kind     string
	ParentID string
	Name     string
}

type Credentials struct {
	Username     string
	Password     string
	AccessToken  string
	RefreshToken string
	UserID       string
}

// RemoteDrive is a thin adapter over a remote cloud drive's account and
// file operations. Every operation is a network round trip and is modeled
// here with a context for cancellation/timeout.
type RemoteDrive interface {
	Login(ctx context.Context, creds Credentials) (Credentials, error)
	FileList(ctx context.Context, parentID, continuationToken string) (FileListPage, error)
	CreateFolder(ctx context.Context, name, parentID string) (CreatedFolder, error)
	GetDownloadURL(ctx context.Context, fileID string) (string, error)
	OfflineDownload(ctx context.Context, torrentOrURL, parentID string) (OfflineDownloadResult, error)
	GetTaskStatus(ctx context.Context, taskID, fileID string) (RemoteTaskStatus, error)
	OfflineFileInfo(ctx context.Context, fileID string) (OfflineFileInfo, error)
	DeleteToTrash(ctx context.Context, fileIDs []string) error
}
