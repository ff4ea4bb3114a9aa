package ports

import (
	"context"

	"torrentstream/internal/domain"
)

// Snapshot is everything persisted across restarts: the two task queues in
// insertion order. Transient fields (worker handle, handler,
// TorrentTask.Info) are the caller's responsibility to clear before Save
// and after Load — TaskStore itself is a dumb key/value round-trip.
type Snapshot struct {
	Torrents []domain.TorrentTask
	Files    []domain.FileDownloadTask
}

// TaskStore snapshots all task queues to durable storage on Save, and
// reconstructs them on Load. A missing snapshot is not an error — Load
// returns a zero Snapshot.
type TaskStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}
