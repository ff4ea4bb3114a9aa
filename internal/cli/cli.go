// Package cli is the thin command layer the external command shell drives:
// one method per command in the interface list, each a direct call into
// the VFS, pipeline, or scheduler with no I/O of its own. It renders
// nothing and reads no input — stdin/stdout, tab completion, and colored
// output are the external shell's job.
package cli

import (
	"context"
	"fmt"
	"sort"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
	"torrentstream/internal/pipeline"
)

// Service wires the VFS/scheduler/gateway/credentials collaborators a
// command shell drives. Construct once at startup, alongside the
// Scheduler's Run goroutine.
type Service struct {
	Deps        pipeline.Deps
	Credentials ports.CredentialCache

	// TorrentConcurrency is recorded onto each new torrent task's header
	// (informational — the Scheduler enforces the actual cap per tag, not
	// per task). FileDownloadConcurrency is not read by Service: child
	// file-download tasks copy their owning torrent task's value.
	TorrentConcurrency      int
	FileDownloadConcurrency int
}

// Login resolves credentials (explicit user/pass, falling back to the
// cached token bundle when either is empty per the "missing args reuse
// cached credentials" contract), calls the gateway, and writes the
// resulting token bundle back to the cache on success.
func (s Service) Login(ctx context.Context, user, pass string) error {
	creds := ports.Credentials{Username: user, Password: pass}
	if user == "" || pass == "" {
		cached, found, err := s.Credentials.Load()
		if err != nil {
			return fmt.Errorf("login: read cached credentials: %w", err)
		}
		if !found {
			return fmt.Errorf("login: no username/password given and no cached credentials found")
		}
		if user != "" {
			cached.Username = user
		}
		if pass != "" {
			cached.Password = pass
		}
		creds = cached
	}

	out, err := s.Deps.Gateway.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.Credentials.Save(out); err != nil {
		return fmt.Errorf("login: cache credentials: %w", err)
	}
	return nil
}

// Ls lists path's directory entries, directories and files together, in
// the gateway's listing order.
func (s Service) Ls(ctx context.Context, path string) ([]string, error) {
	return s.Deps.VFS.ListChildren(ctx, path, true)
}

// Cd moves cwd to path, failing if path does not resolve to a directory.
func (s Service) Cd(ctx context.Context, path string) error {
	return s.Deps.VFS.SetCwd(ctx, path)
}

// Cwd renders the current working directory as a full path.
func (s Service) Cwd() string {
	return s.Deps.VFS.GetCwd()
}

// Rm deletes every listed path to the remote trash in one call. Refuses
// if any path is cwd or an ancestor of cwd.
func (s Service) Rm(ctx context.Context, paths []string) error {
	return s.Deps.VFS.Delete(ctx, paths)
}

// Mkdir creates one directory at path.
func (s Service) Mkdir(ctx context.Context, path string) error {
	return s.Deps.VFS.MakeDir(ctx, path)
}

// Download constructs and enqueues a new TorrentTask for torrent, rooted
// at cwd, and returns its task id.
func (s Service) Download(torrent string) string {
	return pipeline.CreateTorrentTask(s.Deps, torrent, s.Deps.VFS.GetCwd(), s.TorrentConcurrency)
}

// Pull constructs (or, if one already exists for that node, finds) a
// "pull" TorrentTask re-downloading the already-materialized node at
// path, and returns its task id.
func (s Service) Pull(ctx context.Context, path string) (string, error) {
	return pipeline.PullRemote(ctx, s.Deps, path, s.TorrentConcurrency)
}

// QueryRow is one line of a query's tabular dump.
type QueryRow struct {
	ID     string
	Tag    domain.Tag
	Status domain.Status
	Name   string // TorrentTask.Name or FileDownloadTask.RemotePath
}

// Query lists tasks across both queues, optionally narrowed by tag and/or
// status, sorted by id for a stable tabular dump.
func (s Service) Query(tag *domain.Tag, status *domain.Status) []QueryRow {
	tasks := s.Deps.Scheduler.Query(domain.TaskFilter{Tag: tag, Status: status})
	rows := make([]QueryRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, queryRow(t))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func queryRow(t domain.Task) QueryRow {
	switch v := t.(type) {
	case *domain.TorrentTask:
		return QueryRow{ID: v.ID, Tag: v.Tag, Status: v.Status, Name: v.Name}
	case *domain.FileDownloadTask:
		return QueryRow{ID: v.ID, Tag: v.Tag, Status: v.Status, Name: v.RemotePath}
	default:
		return QueryRow{ID: t.GetID(), Tag: t.GetTag(), Status: t.GetStatus()}
	}
}

// Pause requests cancellation of taskID, or directly pauses it if it has
// not started running yet.
func (s Service) Pause(taskID string) {
	s.Deps.Scheduler.Stop(taskID)
}

// Resume flips a PAUSED or ERROR task back to PENDING.
func (s Service) Resume(taskID string) {
	s.Deps.Scheduler.Resume(taskID)
}
