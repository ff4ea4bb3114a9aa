// Package memory is an in-process reference ports.RemoteDrive: an
// in-memory folder/file tree with configurable artificial latency and
// failure injection, standing in for a real cloud drive account in tests
// and the standalone demo binary.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"torrentstream/internal/domain/ports"
	"torrentstream/internal/metrics"
	"torrentstream/internal/telemetry"
)

type node struct {
	id       string
	name     string
	parentID string
	isDir    bool
	children []string // child ids, ordered
}

// Drive is the in-memory reference RemoteDrive.
type Drive struct {
	mu sync.Mutex

	nodes   map[string]*node
	nextID  int
	tasks   map[string]*offlineTask
	nextTID int

	Latency func() time.Duration // applied before every operation; nil = none
	FailOn  map[string]error     // operation name -> error to return instead of succeeding
	Limiter *rate.Limiter        // optional call-rate throttle
}

type offlineTask struct {
	status ports.RemoteTaskStatus
	fileID string
	name   string
}

// New constructs an empty Drive with a single root folder (id "").
func New() *Drive {
	return &Drive{
		nodes: map[string]*node{"": {id: "", name: "", isDir: true}},
		tasks: map[string]*offlineTask{},
	}
}

func (d *Drive) beginCall(ctx context.Context, op string) (func(err *error), error) {
	spanCtx, span := telemetry.Tracer().Start(ctx, "gateway.remote."+op)
	start := time.Now()

	if d.Limiter != nil {
		if err := d.Limiter.Wait(spanCtx); err != nil {
			span.End()
			return nil, err
		}
	}
	if d.Latency != nil {
		if lat := d.Latency(); lat > 0 {
			select {
			case <-time.After(lat):
			case <-spanCtx.Done():
				span.End()
				return nil, spanCtx.Err()
			}
		}
	}

	return func(errp *error) {
		outcome := "ok"
		if errp != nil && *errp != nil {
			outcome = "error"
		}
		metrics.GatewayCallsTotal.WithLabelValues(op, outcome).Inc()
		metrics.GatewayCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		span.End()
	}, nil
}

func (d *Drive) injected(op string) error {
	if d.FailOn == nil {
		return nil
	}
	return d.FailOn[op]
}

func (d *Drive) Login(ctx context.Context, creds ports.Credentials) (out ports.Credentials, err error) {
	end, err := d.beginCall(ctx, "Login")
	if err != nil {
		return ports.Credentials{}, err
	}
	defer func() { end(&err) }()

	if err = d.injected("Login"); err != nil {
		return ports.Credentials{}, err
	}
	out = creds
	out.AccessToken = "memory-access-token"
	out.RefreshToken = "memory-refresh-token"
	out.UserID = "memory-user"
	return out, nil
}

func (d *Drive) FileList(ctx context.Context, parentID, continuationToken string) (page ports.FileListPage, err error) {
	end, err := d.beginCall(ctx, "FileList")
	if err != nil {
		return ports.FileListPage{}, err
	}
	defer func() { end(&err) }()

	if err = d.injected("FileList"); err != nil {
		return ports.FileListPage{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	parent, ok := d.nodes[parentID]
	if !ok {
		return ports.FileListPage{}, fmt.Errorf("memory gateway: unknown parent %q", parentID)
	}
	files := make([]ports.RemoteFile, 0, len(parent.children))
	for _, cid := range parent.children {
		c := d.nodes[cid]
		kind := "file"
		if c.isDir {
			kind = "folder"
		}
		files = append(files, ports.RemoteFile{ID: c.id, Name: c.name, Kind: kind})
	}
	return ports.FileListPage{Files: files}, nil
}

func (d *Drive) CreateFolder(ctx context.Context, name, parentID string) (created ports.CreatedFolder, err error) {
	end, err := d.beginCall(ctx, "CreateFolder")
	if err != nil {
		return ports.CreatedFolder{}, err
	}
	defer func() { end(&err) }()

	if err = d.injected("CreateFolder"); err != nil {
		return ports.CreatedFolder{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[parentID]; !ok {
		return ports.CreatedFolder{}, fmt.Errorf("memory gateway: unknown parent %q", parentID)
	}
	id := d.newID()
	d.nodes[id] = &node{id: id, name: name, parentID: parentID, isDir: true}
	d.nodes[parentID].children = append(d.nodes[parentID].children, id)
	return ports.CreatedFolder{ID: id, Name: name}, nil
}

func (d *Drive) GetDownloadURL(ctx context.Context, fileID string) (url string, err error) {
	end, err := d.beginCall(ctx, "GetDownloadURL")
	if err != nil {
		return "", err
	}
	defer func() { end(&err) }()

	if err = d.injected("GetDownloadURL"); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[fileID]; !ok {
		return "", fmt.Errorf("memory gateway: unknown file %q", fileID)
	}
	return fmt.Sprintf("https://memory.invalid/download/%s", fileID), nil
}

// OfflineDownload simulates submitting a torrent/URL for server-side
// ingestion: it immediately creates the resulting node (as a single file
// named after the source) and a task that GetTaskStatus will report DONE
// for right away, since there is no real remote to poll.
func (d *Drive) OfflineDownload(ctx context.Context, torrentOrURL, parentID string) (result ports.OfflineDownloadResult, err error) {
	end, err := d.beginCall(ctx, "OfflineDownload")
	if err != nil {
		return ports.OfflineDownloadResult{}, err
	}
	defer func() { end(&err) }()

	if err = d.injected("OfflineDownload"); err != nil {
		return ports.OfflineDownloadResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[parentID]; !ok {
		return ports.OfflineDownloadResult{}, fmt.Errorf("memory gateway: unknown parent %q", parentID)
	}

	name := torrentOrURL
	if name == "" {
		name = "offline-download"
	}
	fileID := d.newID()
	d.nodes[fileID] = &node{id: fileID, name: name, parentID: parentID, isDir: false}
	d.nodes[parentID].children = append(d.nodes[parentID].children, fileID)

	taskID := d.newTaskID()
	d.tasks[taskID] = &offlineTask{status: ports.RemoteDone, fileID: fileID, name: name}

	return ports.OfflineDownloadResult{TaskID: taskID, FileID: fileID, Name: name}, nil
}

func (d *Drive) GetTaskStatus(ctx context.Context, taskID, fileID string) (status ports.RemoteTaskStatus, err error) {
	end, err := d.beginCall(ctx, "GetTaskStatus")
	if err != nil {
		return "", err
	}
	defer func() { end(&err) }()

	if err = d.injected("GetTaskStatus"); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[taskID]
	if !ok {
		return ports.RemoteNotFound, nil
	}
	return t.status, nil
}

func (d *Drive) OfflineFileInfo(ctx context.Context, fileID string) (info ports.OfflineFileInfo, err error) {
	end, err := d.beginCall(ctx, "OfflineFileInfo")
	if err != nil {
		return ports.OfflineFileInfo{}, err
	}
	defer func() { end(&err) }()

	if err = d.injected("OfflineFileInfo"); err != nil {
		return ports.OfflineFileInfo{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[fileID]
	if !ok {
		return ports.OfflineFileInfo{}, fmt.Errorf("memory gateway: unknown file %q", fileID)
	}
	kind := "file"
	if n.isDir {
		kind = "folder"
	}
	return ports.OfflineFileInfo{Kind: kind, ParentID: n.parentID, Name: n.name}, nil
}

func (d *Drive) DeleteToTrash(ctx context.Context, fileIDs []string) (err error) {
	end, err := d.beginCall(ctx, "DeleteToTrash")
	if err != nil {
		return err
	}
	defer func() { end(&err) }()

	if err = d.injected("DeleteToTrash"); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range fileIDs {
		n, ok := d.nodes[id]
		if !ok {
			continue
		}
		if parent, ok := d.nodes[n.parentID]; ok {
			parent.children = removeID(parent.children, id)
		}
		delete(d.nodes, id)
	}
	return nil
}

// AddChildForTest inserts a pre-existing node directly, bypassing
// CreateFolder/OfflineDownload — used to seed a tree's initial state in
// tests without an extra round trip.
func (d *Drive) AddChildForTest(id, name, parentID string, isDir bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[id] = &node{id: id, name: name, parentID: parentID, isDir: isDir}
	if parent, ok := d.nodes[parentID]; ok {
		parent.children = append(parent.children, id)
	}
}

func (d *Drive) newID() string {
	d.nextID++
	return fmt.Sprintf("node-%d", d.nextID)
}

func (d *Drive) newTaskID() string {
	d.nextTID++
	return fmt.Sprintf("task-%d", d.nextTID)
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
