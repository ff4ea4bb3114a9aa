package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
	dlmemory "torrentstream/internal/downloader/memory"
	gwmemory "torrentstream/internal/gateway/memory"
	"torrentstream/internal/pipeline"
	"torrentstream/internal/scheduler"
	"torrentstream/internal/vfs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCredentialCache struct {
	creds ports.Credentials
	found bool
	saved ports.Credentials
}

func (f *fakeCredentialCache) Load() (ports.Credentials, bool, error) {
	return f.creds, f.found, nil
}

func (f *fakeCredentialCache) Save(creds ports.Credentials) error {
	f.saved = creds
	return nil
}

// blockingHandler runs until ctx is cancelled, reporting PAUSED — enough
// to drive Pause/Resume/Query without a handler that finishes on its own.
func blockingHandler(ctx context.Context, task domain.Task) error {
	<-ctx.Done()
	return domain.ErrCancelled
}

func newTestService(t *testing.T) (Service, *scheduler.Scheduler) {
	t.Helper()
	gateway := gwmemory.New()
	gateway.AddChildForTest("movies", "movies", domain.RootID, true)

	handlers := map[domain.Tag]scheduler.Handler{
		domain.TagTorrent:      blockingHandler,
		domain.TagFileDownload: blockingHandler,
	}
	sched := scheduler.New(testLogger(), handlers, scheduler.WithTick(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sched.Run(ctx)

	deps := pipeline.Deps{
		Gateway:    gateway,
		Downloader: dlmemory.New(),
		VFS:        vfs.New(gateway),
		Scheduler:  sched,
		Logger:     testLogger(),
	}

	return Service{
		Deps:                    deps,
		Credentials:             &fakeCredentialCache{},
		TorrentConcurrency:      3,
		FileDownloadConcurrency: 5,
	}, sched
}

func TestLoginWithExplicitCredentialsSavesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Login(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cache := svc.Credentials.(*fakeCredentialCache)
	if cache.saved.Username != "alice" {
		t.Fatalf("saved username = %q, want alice", cache.saved.Username)
	}
}

func TestLoginWithNoArgsAndNoCacheFails(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Login(context.Background(), "", ""); err == nil {
		t.Fatal("expected error when neither explicit nor cached credentials are available")
	}
}

func TestLoginWithNoArgsReusesCachedCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Credentials.(*fakeCredentialCache).creds = ports.Credentials{Username: "cached", Password: "secret"}
	svc.Credentials.(*fakeCredentialCache).found = true

	if err := svc.Login(context.Background(), "", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := svc.Credentials.(*fakeCredentialCache).saved.Username; got != "cached" {
		t.Fatalf("saved username = %q, want cached", got)
	}
}

func TestLsCdCwd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	names, err := svc.Ls(ctx, "/")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(names) != 1 || names[0] != "movies" {
		t.Fatalf("Ls(/) = %v, want [movies]", names)
	}

	if err := svc.Cd(ctx, "/movies"); err != nil {
		t.Fatalf("Cd: %v", err)
	}
	if got := svc.Cwd(); got != "/movies" {
		t.Fatalf("Cwd() = %q, want /movies", got)
	}
}

func TestMkdirThenLsShowsNewDirectory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Mkdir(ctx, "/shows"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	names, err := svc.Ls(ctx, "/")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "shows" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Ls(/) = %v, want to contain shows", names)
	}
}

func TestRmRefusesToDeleteCwd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Cd(ctx, "/movies"); err != nil {
		t.Fatalf("Cd: %v", err)
	}
	if err := svc.Rm(ctx, []string{"/movies"}); err == nil {
		t.Fatal("expected Rm to refuse deleting cwd")
	}
}

func TestDownloadEnqueuesTorrentTask(t *testing.T) {
	svc, _ := newTestService(t)

	id := svc.Download("magnet:?xt=urn:btih:abc")
	if id == "" {
		t.Fatal("Download returned empty task id")
	}

	deadline := time.After(time.Second)
	for {
		rows := svc.Query(nil, nil)
		for _, r := range rows {
			if r.ID == id && r.Tag == domain.TagTorrent {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never appeared in query results", id)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPullReturnsSameIDForAlreadyTrackedNode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id1, err := svc.Pull(ctx, "/movies")
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		rows := svc.Query(nil, nil)
		found := false
		for _, r := range rows {
			if r.ID == id1 {
				found = true
			}
		}
		if found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("pulled task never appeared in query results")
		case <-time.After(5 * time.Millisecond):
		}
	}

	id2, err := svc.Pull(ctx, "/movies")
	if err != nil {
		t.Fatalf("second Pull: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("second Pull returned %q, want %q (deduplicated)", id2, id1)
	}
}

func TestPauseThenResume(t *testing.T) {
	svc, _ := newTestService(t)

	id := svc.Download("magnet:?xt=urn:btih:def")

	deadline := time.After(time.Second)
	for {
		rows := svc.Query(nil, nil)
		done := false
		for _, r := range rows {
			if r.ID == id && r.Status == domain.StatusRunning {
				done = true
			}
		}
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("task never started running")
		case <-time.After(5 * time.Millisecond):
		}
	}

	svc.Pause(id)
	deadline = time.After(time.Second)
	for {
		rows := svc.Query(nil, nil)
		paused := false
		for _, r := range rows {
			if r.ID == id && r.Status == domain.StatusPaused {
				paused = true
			}
		}
		if paused {
			break
		}
		select {
		case <-deadline:
			t.Fatal("task never paused")
		case <-time.After(5 * time.Millisecond):
		}
	}

	svc.Resume(id)
	deadline = time.After(time.Second)
	for {
		rows := svc.Query(nil, nil)
		resumed := false
		for _, r := range rows {
			if r.ID == id && (r.Status == domain.StatusPending || r.Status == domain.StatusRunning) {
				resumed = true
			}
		}
		if resumed {
			return
		}
		select {
		case <-deadline:
			t.Fatal("resumed task never left PAUSED")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
