package domain

// FileStatus is the FileDownloadTask's inner state machine.
type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileDownloading FileStatus = "downloading"
	FileDone       FileStatus = "done"
)

// FileDownloadTask drives the local downloader for exactly one file and
// belongs to exactly one TorrentTask at creation time.
type FileDownloadTask struct {
	Header

	FileStatus FileStatus
	NodeID     string
	RemotePath string
	OwnerID    string // the owning TorrentTask's id
	GID        string // handle returned by the local downloader
	URL        string
}

func NewFileDownloadTask(nodeID, remotePath, ownerID string, maxConcurrent int) *FileDownloadTask {
	return &FileDownloadTask{
		Header: Header{
			ID:            NewID(),
			Tag:           TagFileDownload,
			Status:        StatusPending,
			MaxConcurrent: maxConcurrent,
		},
		FileStatus: FilePending,
		NodeID:     nodeID,
		RemotePath: remotePath,
		OwnerID:    ownerID,
	}
}
