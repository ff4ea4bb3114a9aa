package domain

// TorrentStatus is the TorrentTask's inner state machine.
type TorrentStatus string

const (
	TorrentPending           TorrentStatus = "pending"
	TorrentRemoteDownloading TorrentStatus = "remote_downloading"
	TorrentLocalDownloading  TorrentStatus = "local_downloading"
	TorrentDone              TorrentStatus = "done"
)

// TorrentTask is the supervisor task that owns the full pipeline from
// source submission to per-file download completion.
type TorrentTask struct {
	Header

	TorrentStatus  TorrentStatus
	Torrent        string // source URI / magnet / torrent content; empty for a "pull"
	RemoteBasePath string
	NodeID         string
	RemoteTaskID   string
	Name           string
	Info           string // progress summary, e.g. "2/3 (0|1)"; cleared on reload
}

func NewTorrentTask(torrent, remoteBasePath string, maxConcurrent int) *TorrentTask {
	return &TorrentTask{
		Header: Header{
			ID:            NewID(),
			Tag:           TagTorrent,
			Status:        StatusPending,
			MaxConcurrent: maxConcurrent,
		},
		TorrentStatus:  TorrentPending,
		Torrent:        torrent,
		RemoteBasePath: remoteBasePath,
	}
}

// NewPullTask constructs the "pull" variant of a TorrentTask: rooted
// directly in LocalDownloading with an empty source, for re-downloading an
// already-materialized node.
func NewPullTask(nodeID, name string, maxConcurrent int) *TorrentTask {
	return &TorrentTask{
		Header: Header{
			ID:            NewID(),
			Tag:           TagTorrent,
			Status:        StatusPending,
			MaxConcurrent: maxConcurrent,
		},
		TorrentStatus: TorrentLocalDownloading,
		NodeID:        nodeID,
		Name:          name,
	}
}
