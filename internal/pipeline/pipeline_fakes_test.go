package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"torrentstream/internal/domain/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway is a minimal hand-rolled ports.RemoteDrive for pipeline
// tests; each method reads from scripted fields under a mutex since
// handlers run on worker goroutines.
type fakeGateway struct {
	mu sync.Mutex

	offlineResult ports.OfflineDownloadResult
	offlineErr    error

	statusSequence []ports.RemoteTaskStatus
	statusIdx      int
	statusErr      error

	fileInfo map[string]ports.OfflineFileInfo
	listing  map[string][]ports.RemoteFile
	urls     map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		fileInfo: map[string]ports.OfflineFileInfo{},
		listing:  map[string][]ports.RemoteFile{},
		urls:     map[string]string{},
	}
}

func (f *fakeGateway) Login(ctx context.Context, creds ports.Credentials) (ports.Credentials, error) {
	return creds, nil
}

func (f *fakeGateway) FileList(ctx context.Context, parentID, token string) (ports.FileListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ports.FileListPage{Files: f.listing[parentID]}, nil
}

func (f *fakeGateway) CreateFolder(ctx context.Context, name, parentID string) (ports.CreatedFolder, error) {
	return ports.CreatedFolder{ID: name, Name: name}, nil
}

func (f *fakeGateway) GetDownloadURL(ctx context.Context, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url, ok := f.urls[fileID]; ok {
		return url, nil
	}
	return "https://example.invalid/" + fileID, nil
}

func (f *fakeGateway) OfflineDownload(ctx context.Context, torrentOrURL, parentID string) (ports.OfflineDownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offlineErr != nil {
		return ports.OfflineDownloadResult{}, f.offlineErr
	}
	return f.offlineResult, nil
}

func (f *fakeGateway) GetTaskStatus(ctx context.Context, taskID, fileID string) (ports.RemoteTaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if len(f.statusSequence) == 0 {
		return ports.RemoteDone, nil
	}
	idx := f.statusIdx
	if idx >= len(f.statusSequence) {
		idx = len(f.statusSequence) - 1
	} else {
		f.statusIdx++
	}
	return f.statusSequence[idx], nil
}

func (f *fakeGateway) OfflineFileInfo(ctx context.Context, fileID string) (ports.OfflineFileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.fileInfo[fileID]
	if !ok {
		return ports.OfflineFileInfo{}, nil
	}
	return info, nil
}

func (f *fakeGateway) DeleteToTrash(ctx context.Context, fileIDs []string) error { return nil }

// fakeDownloader is a minimal hand-rolled ports.LocalDownloader.
type fakeDownloader struct {
	mu sync.Mutex

	nextGID int
	added   []string // URLs passed to AddURI

	statusSequence map[string][]ports.LocalStatus
	statusIdx      map[string]int
	addErr         error
	unpauseCalls   int
	pauseCalls     int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		statusSequence: map[string][]ports.LocalStatus{},
		statusIdx:      map[string]int{},
	}
}

func (d *fakeDownloader) AddURI(ctx context.Context, uri, outputPath string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.addErr != nil {
		return "", d.addErr
	}
	d.nextGID++
	gid := "gid"
	d.added = append(d.added, uri)
	return gid, nil
}

func (d *fakeDownloader) TellStatus(ctx context.Context, gid string) (ports.LocalStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq := d.statusSequence[gid]
	if len(seq) == 0 {
		return ports.LocalComplete, nil
	}
	idx := d.statusIdx[gid]
	if idx >= len(seq) {
		idx = len(seq) - 1
	} else {
		d.statusIdx[gid] = idx + 1
	}
	return seq[idx], nil
}

func (d *fakeDownloader) Pause(ctx context.Context, gid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauseCalls++
	return nil
}

func (d *fakeDownloader) Unpause(ctx context.Context, gid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unpauseCalls++
	return nil
}

func (d *fakeDownloader) Remove(ctx context.Context, gid string) error { return nil }

func instantSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
