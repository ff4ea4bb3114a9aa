package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
)

// NewFileDownloadHandler returns the scheduler.Handler for TagFileDownload:
// PENDING → DOWNLOADING → DONE, with the local downloader driven to
// completion by backoff-polled TellStatus calls.
func NewFileDownloadHandler(deps Deps) func(ctx context.Context, task domain.Task) error {
	return func(ctx context.Context, task domain.Task) error {
		f, ok := taskAsFileDownload(task)
		if !ok {
			return fmt.Errorf("file download handler invoked with non-file-download task %T", task)
		}
		return runFileDownload(ctx, deps, f)
	}
}

func runFileDownload(ctx context.Context, deps Deps, f *domain.FileDownloadTask) error {
	for {
		switch f.FileStatus {
		case domain.FilePending:
			if err := submitFileDownload(ctx, deps, f); err != nil {
				return err
			}
		case domain.FileDownloading:
			return pollFileDownload(ctx, deps, f)
		case domain.FileDone:
			return nil
		default:
			return fmt.Errorf("file download task %s: unknown sub-state %q", f.ID, f.FileStatus)
		}
	}
}

func submitFileDownload(ctx context.Context, deps Deps, f *domain.FileDownloadTask) error {
	url, err := deps.VFS.GetFileURLByID(ctx, f.NodeID)
	if err != nil {
		return err
	}
	f.URL = url

	gid, err := deps.Downloader.AddURI(ctx, url, localOutputPath(deps.DownloadBaseDir, f.RemotePath))
	if err != nil {
		return wrapDownloader(err)
	}

	f.GID = gid
	f.FileStatus = domain.FileDownloading
	return nil
}

// localOutputPath roots a VFS remote path (e.g. "/movies/foo.mkv") under
// baseDir so the local downloader never writes to a path shaped by the
// remote drive's own namespace. Empty baseDir yields a path relative to
// the downloader's working directory.
func localOutputPath(baseDir, remotePath string) string {
	rel := strings.TrimPrefix(remotePath, "/")
	if baseDir == "" {
		return rel
	}
	return filepath.Join(baseDir, rel)
}

func pollFileDownload(ctx context.Context, deps Deps, f *domain.FileDownloadTask) error {
	backoff := localBackoffInitial
	for {
		status, err := deps.Downloader.TellStatus(ctx, f.GID)
		if err != nil {
			return wrapDownloader(err)
		}

		switch status {
		case ports.LocalComplete:
			f.FileStatus = domain.FileDone
			return nil
		case ports.LocalError:
			return wrapDownloader(fmt.Errorf("download %s reported error status", f.GID))
		case ports.LocalPaused:
			if err := deps.Downloader.Unpause(ctx, f.GID); err != nil {
				return wrapDownloader(err)
			}
		case ports.LocalRemoved:
			return wrapDownloader(fmt.Errorf("download %s was removed externally", f.GID))
		}

		if err := deps.sleep(ctx, backoff); err != nil {
			if pauseErr := deps.Downloader.Pause(context.WithoutCancel(ctx), f.GID); pauseErr != nil {
				deps.Logger.Warn("file download: pause on cancellation failed", "taskId", f.ID, "gid", f.GID, "error", pauseErr)
			}
			return domain.ErrCancelled
		}
		backoff = nextBackoff(backoff, localBackoffFactor)
	}
}
