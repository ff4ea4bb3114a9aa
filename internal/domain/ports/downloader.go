package ports

import "context"

// LocalStatus is a local downloader's answer to TellStatus.
type LocalStatus string

const (
	LocalActive   LocalStatus = "active"
	LocalWaiting  LocalStatus = "waiting"
	LocalPaused   LocalStatus = "paused"
	LocalError    LocalStatus = "error"
	LocalComplete LocalStatus = "complete"
	LocalRemoved  LocalStatus = "removed"
)

// LocalDownloader is a thin adapter over a local download daemon's
// operations. Downloaded files are placed under a gateway-configured base
// path; outputPath gives the relative destination, including
// subdirectories for torrent-pulled trees.
type LocalDownloader interface {
	AddURI(ctx context.Context, uri, outputPath string) (gid string, err error)
	TellStatus(ctx context.Context, gid string) (LocalStatus, error)
	Pause(ctx context.Context, gid string) error
	Unpause(ctx context.Context, gid string) error
	Remove(ctx context.Context, gid string) error
}
