package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
)

// NewTorrentHandler returns the scheduler.Handler for TagTorrent: the full
// PENDING → REMOTE_DOWNLOADING → LOCAL_DOWNLOADING → DONE state machine.
func NewTorrentHandler(deps Deps) func(ctx context.Context, task domain.Task) error {
	return func(ctx context.Context, task domain.Task) error {
		t, ok := taskAsTorrent(task)
		if !ok {
			return fmt.Errorf("torrent handler invoked with non-torrent task %T", task)
		}
		return runTorrent(ctx, deps, t)
	}
}

func runTorrent(ctx context.Context, deps Deps, t *domain.TorrentTask) error {
	for {
		switch t.TorrentStatus {
		case domain.TorrentPending:
			if err := submitTorrent(ctx, deps, t); err != nil {
				return err
			}
		case domain.TorrentRemoteDownloading:
			if err := pollRemoteDownload(ctx, deps, t); err != nil {
				return err
			}
		case domain.TorrentLocalDownloading:
			return waitForLocalDownload(ctx, deps, t)
		case domain.TorrentDone:
			return nil
		default:
			return fmt.Errorf("torrent task %s: unknown sub-state %q", t.ID, t.TorrentStatus)
		}
	}
}

func submitTorrent(ctx context.Context, deps Deps, t *domain.TorrentTask) error {
	if t.Torrent != "" {
		if name, hash, ok := preParseLocalTorrent(t.Torrent); ok {
			if t.Name == "" {
				t.Name = name
			}
			deps.Logger.Debug("torrent: local metadata pre-parsed", slog.String("taskId", t.ID), slog.String("name", name), slog.String("infoHash", hash))
		} else if hash := magnetInfoHash(t.Torrent); hash != "" {
			deps.Logger.Debug("torrent: magnet info-hash parsed", slog.String("taskId", t.ID), slog.String("infoHash", hash))
			if t.Name == "" {
				t.Name = magnetDisplayName(t.Torrent)
			}
		}
	}

	parent, err := deps.VFS.Resolve(ctx, t.RemoteBasePath)
	if err != nil {
		return err
	}
	if parent == nil || !parent.IsDir() {
		return fmt.Errorf("torrent task %s: remote base path %q does not resolve to a directory", t.ID, t.RemoteBasePath)
	}

	result, err := deps.Gateway.OfflineDownload(ctx, t.Torrent, parent.ID)
	if err != nil {
		return wrapRemote(err)
	}

	t.RemoteTaskID = result.TaskID
	t.NodeID = result.FileID
	if t.Name == "" {
		t.Name = result.Name
	}
	t.TorrentStatus = domain.TorrentRemoteDownloading
	return nil
}

func pollRemoteDownload(ctx context.Context, deps Deps, t *domain.TorrentTask) error {
	backoff := remoteBackoffInitial
	for {
		status, err := deps.Gateway.GetTaskStatus(ctx, t.RemoteTaskID, t.NodeID)
		if err != nil {
			return wrapRemote(err)
		}
		switch status {
		case ports.RemoteDone:
			t.TorrentStatus = domain.TorrentLocalDownloading
			return nil
		case ports.RemoteNotFound, ports.RemoteNotDownloading, ports.RemoteError:
			t.TorrentStatus = domain.TorrentPending
			return wrapRemote(fmt.Errorf("remote task reported status %q", status))
		}

		if err := deps.sleep(ctx, backoff); err != nil {
			return domain.ErrCancelled
		}
		backoff = nextBackoff(backoff, remoteBackoffFactor)
	}
}

func waitForLocalDownload(ctx context.Context, deps Deps, t *domain.TorrentTask) error {
	node, err := deps.VFS.UpdateNode(ctx, t.NodeID)
	if err != nil {
		return wrapRemote(err)
	}

	if err := enqueueChildren(ctx, deps, t, node); err != nil {
		return err
	}

	for {
		total, running, notCompleted, paused, errored := scanChildren(deps, t.ID)
		t.Info = fmt.Sprintf("%d/%d (%d|%d)", running, total, paused, errored)

		switch {
		case notCompleted > 0:
			// keep waiting
		case errored > 0:
			return fmt.Errorf("torrent task %s: %d child file download(s) failed", t.ID, errored)
		case paused > 0:
			cancelChildren(deps, t.ID)
			return domain.ErrCancelled
		default:
			t.TorrentStatus = domain.TorrentDone
			return nil
		}

		if err := deps.sleep(ctx, waitLoopInterval); err != nil {
			cancelChildren(deps, t.ID)
			return domain.ErrCancelled
		}
	}
}

// enqueueChildren materializes the torrent's downloaded node into one
// FileDownloadTask per file. A single file enqueues itself directly; a
// directory is walked breadth-first (refreshing each level) and every
// file found enqueues with remote_path = torrent root name joined with
// its path relative to that root.
func enqueueChildren(ctx context.Context, deps Deps, t *domain.TorrentTask, node *domain.Node) error {
	if node.IsFile() {
		enqueueFileDownload(deps, t, node.ID, t.Name)
		return nil
	}

	type queued struct {
		id       string
		relative string
	}
	queue := []queued{{id: node.ID, relative: ""}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := deps.VFS.ListChildNodes(ctx, cur.id)
		if err != nil {
			return wrapRemote(err)
		}
		for _, child := range children {
			rel := child.Name
			if cur.relative != "" {
				rel = cur.relative + "/" + child.Name
			}
			if child.IsDir() {
				queue = append(queue, queued{id: child.ID, relative: rel})
				continue
			}
			remotePath := t.Name
			if rel != "" {
				remotePath = t.Name + "/" + rel
			}
			enqueueFileDownload(deps, t, child.ID, remotePath)
		}
	}
	return nil
}

// enqueueFileDownload is idempotent on (node_id, owner_id): if a matching
// task already exists, it is reset to PENDING when PAUSED or ERROR and no
// duplicate is created.
func enqueueFileDownload(deps Deps, t *domain.TorrentTask, nodeID, remotePath string) {
	tag := domain.TagFileDownload
	for _, existing := range deps.Scheduler.Query(domain.TaskFilter{Tag: &tag}) {
		f, ok := taskAsFileDownload(existing)
		if !ok || f.NodeID != nodeID || f.OwnerID != t.ID {
			continue
		}
		if domain.CanResume(f.GetStatus()) {
			deps.Scheduler.Resume(f.ID)
		}
		return
	}

	child := domain.NewFileDownloadTask(nodeID, remotePath, t.ID, t.MaxConcurrent)
	deps.Scheduler.Enqueue(child)
}

func scanChildren(deps Deps, ownerID string) (total, running, notCompleted, paused, errored int) {
	tag := domain.TagFileDownload
	for _, task := range deps.Scheduler.Query(domain.TaskFilter{Tag: &tag}) {
		f, ok := taskAsFileDownload(task)
		if !ok || f.OwnerID != ownerID {
			continue
		}
		total++
		switch f.GetStatus() {
		case domain.StatusPending:
			notCompleted++
		case domain.StatusRunning:
			notCompleted++
			running++
		case domain.StatusPaused:
			paused++
		case domain.StatusError:
			errored++
		}
	}
	return
}

func cancelChildren(deps Deps, ownerID string) {
	tag := domain.TagFileDownload
	for _, task := range deps.Scheduler.Query(domain.TaskFilter{Tag: &tag}) {
		f, ok := taskAsFileDownload(task)
		if !ok || f.OwnerID != ownerID {
			continue
		}
		deps.Scheduler.Stop(f.ID)
	}
}

// CreateTorrentTask constructs and enqueues a new TorrentTask rooted at
// remoteBasePath, returning its id.
func CreateTorrentTask(deps Deps, torrent, remoteBasePath string, maxConcurrent int) string {
	t := domain.NewTorrentTask(torrent, remoteBasePath, maxConcurrent)
	deps.Scheduler.Enqueue(t)
	return t.ID
}

// PullRemote constructs a "pull" TorrentTask for an already-materialized
// VFS node. If a TorrentTask already exists for that node id, its id is
// returned instead of creating a duplicate.
func PullRemote(ctx context.Context, deps Deps, path string, maxConcurrent int) (string, error) {
	node, err := deps.VFS.Resolve(ctx, path)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", domain.ErrNotFound
	}

	tag := domain.TagTorrent
	for _, existing := range deps.Scheduler.Query(domain.TaskFilter{Tag: &tag}) {
		e, ok := taskAsTorrent(existing)
		if ok && e.NodeID == node.ID {
			return e.ID, nil
		}
	}

	t := domain.NewPullTask(node.ID, node.Name, maxConcurrent)
	deps.Scheduler.Enqueue(t)
	return t.ID, nil
}
