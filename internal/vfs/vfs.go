package vfs

import (
	"context"
	"strings"
	"time"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
	"torrentstream/internal/metrics"
)

// VFS is an in-memory node graph (directory/file), lazily refreshed
// against a RemoteDrive gateway. It is driven entirely from one goroutine —
// no mutex guards the node map, the task queues live elsewhere, and cwd is
// a plain field. Constructing more than one VFS over the same gateway, or
// calling its methods concurrently, is not supported.
type VFS struct {
	gateway ports.RemoteDrive
	nodes   map[string]*domain.Node
	root    *domain.Node
	cwd     *domain.Node
	Now     func() time.Time
}

func New(gateway ports.RemoteDrive) *VFS {
	root := domain.NewRoot()
	return &VFS{
		gateway: gateway,
		nodes:   map[string]*domain.Node{root.ID: root},
		root:    root,
		cwd:     root,
		Now:     time.Now,
	}
}

func (v *VFS) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Resolve interprets path POSIX-style and returns the node matched by the
// final segment, or nil if any intermediate segment is missing or a
// non-final segment resolves to a file. It refreshes any traversed
// directory whose listing is stale before descending into it.
func (v *VFS) Resolve(ctx context.Context, path string) (*domain.Node, error) {
	spots := segments(path)
	current := v.cwd
	if isAbsolute(spots) {
		current = v.root
	}

	for _, spot := range spots {
		switch spot {
		case "", ".":
			continue
		case "..":
			current = v.parentOrRoot(current)
		default:
			if !current.IsDir() {
				return nil, nil
			}
			if current.Stale() {
				if err := v.refreshDirectory(ctx, current); err != nil {
					return nil, err
				}
			}
			child := v.childByName(current, spot)
			if child == nil {
				return nil, nil
			}
			current = child
		}
	}
	return current, nil
}

func (v *VFS) parentOrRoot(n *domain.Node) *domain.Node {
	if !n.HasFather {
		return v.root
	}
	parent, ok := v.nodes[n.FatherID]
	if !ok {
		return v.root
	}
	return parent
}

func (v *VFS) childByName(dir *domain.Node, name string) *domain.Node {
	for _, id := range dir.ChildrenIDs {
		if child, ok := v.nodes[id]; ok && child.Name == name {
			return child
		}
	}
	return nil
}

// Split returns the directory path that would contain path's final segment
// and that segment's name. For root, leaf is empty. This is pure string
// manipulation — it does not touch the tree.
func Split(path string) (parentPath, leaf string) {
	trimmed := strings.TrimRight(path, sep)
	if trimmed == "" {
		return sep, ""
	}
	idx := strings.LastIndex(trimmed, sep)
	if idx < 0 {
		return ".", trimmed
	}
	if idx == 0 {
		return sep, trimmed[1:]
	}
	return trimmed[:idx], trimmed[idx+1:]
}

// ListChildren refreshes the target directory and returns child names in
// the order returned by the gateway's most recent listing. It fails
// silently (empty result, nil error) if path does not resolve to a
// directory.
func (v *VFS) ListChildren(ctx context.Context, path string, includeFiles bool) ([]string, error) {
	node, err := v.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if node == nil || !node.IsDir() {
		return nil, nil
	}
	if err := v.refreshDirectory(ctx, node); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(node.ChildrenIDs))
	for _, id := range node.ChildrenIDs {
		child, ok := v.nodes[id]
		if !ok {
			continue
		}
		if !includeFiles && child.IsFile() {
			continue
		}
		names = append(names, child.Name)
	}
	return names, nil
}

func (v *VFS) IsDir(ctx context.Context, path string) (bool, error) {
	node, err := v.Resolve(ctx, path)
	if err != nil {
		return false, err
	}
	if node == nil {
		return false, nil
	}
	return node.IsDir(), nil
}

// GetFileURL refreshes the file (a fresh get-download-url call) and
// returns the resulting short-lived URL.
func (v *VFS) GetFileURL(ctx context.Context, path string) (string, error) {
	node, err := v.Resolve(ctx, path)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", domain.ErrNotFound
	}
	if !node.IsFile() {
		return "", domain.ErrInvalidPath
	}
	if err := v.refreshFile(ctx, node); err != nil {
		return "", err
	}
	return node.DownloadURL, nil
}

// GetFileURLByID is GetFileURL addressed directly by node id instead of a
// path — the File Download Pipeline only ever has the VFS id of the file
// it owns, never a path to re-resolve.
func (v *VFS) GetFileURLByID(ctx context.Context, id string) (string, error) {
	node, ok := v.nodes[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if !node.IsFile() {
		return "", domain.ErrInvalidPath
	}
	if err := v.refreshFile(ctx, node); err != nil {
		return "", err
	}
	return node.DownloadURL, nil
}

// MakeDir splits path into (parent, leaf), requires the parent to resolve
// to a directory and leaf to be non-empty, issues create-folder, and
// inserts the returned node into the parent's children without
// invalidating other entries.
func (v *VFS) MakeDir(ctx context.Context, path string) error {
	parentPath, leaf := Split(path)
	if leaf == "" {
		return domain.ErrInvalidPath
	}
	parent, err := v.Resolve(ctx, parentPath)
	if err != nil {
		return err
	}
	if parent == nil || !parent.IsDir() {
		return domain.ErrNotDirectory
	}

	created, err := v.gateway.CreateFolder(ctx, leaf, parent.ID)
	if err != nil {
		return err
	}
	node := domain.NewDirectory(created.ID, created.Name, parent.ID)
	v.nodes[node.ID] = node
	parent.ChildrenIDs = append(parent.ChildrenIDs, node.ID)
	return nil
}

// Delete resolves each path to a node, aborting without touching the
// gateway if any resolved node is cwd or an ancestor of cwd. On success it
// submits every id in a single trash call and removes each node from its
// parent's children and from the node map.
func (v *VFS) Delete(ctx context.Context, paths []string) error {
	nodesToDelete := make([]*domain.Node, 0, len(paths))
	for _, p := range paths {
		node, err := v.Resolve(ctx, p)
		if err != nil {
			return err
		}
		if node == nil {
			return domain.ErrNotFound
		}
		if v.isAncestorOrSelf(node, v.cwd) {
			return domain.ErrAncestor
		}
		nodesToDelete = append(nodesToDelete, node)
	}

	ids := make([]string, len(nodesToDelete))
	for i, n := range nodesToDelete {
		ids[i] = n.ID
	}
	if err := v.gateway.DeleteToTrash(ctx, ids); err != nil {
		return err
	}

	for _, n := range nodesToDelete {
		if parent, ok := v.nodes[n.FatherID]; ok {
			parent.ChildrenIDs = removeID(parent.ChildrenIDs, n.ID)
		}
		delete(v.nodes, n.ID)
	}
	return nil
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

// isAncestorOrSelf reports whether node is cwd or an ancestor of cwd.
func (v *VFS) isAncestorOrSelf(node, cwd *domain.Node) bool {
	current := cwd
	for {
		if current.ID == node.ID {
			return true
		}
		if !current.HasFather {
			return false
		}
		parent, ok := v.nodes[current.FatherID]
		if !ok {
			return false
		}
		current = parent
	}
}

func (v *VFS) SetCwd(ctx context.Context, path string) error {
	node, err := v.Resolve(ctx, path)
	if err != nil {
		return err
	}
	if node == nil || !node.IsDir() {
		return domain.ErrNotDirectory
	}
	v.cwd = node
	return nil
}

// GetCwd renders cwd's full path by walking up the father chain to root.
func (v *VFS) GetCwd() string {
	return v.pathOf(v.cwd)
}

func (v *VFS) pathOf(node *domain.Node) string {
	if node.IsRoot() {
		return sep
	}
	parts := make([]string, 0, 4)
	current := node
	for !current.IsRoot() {
		parts = append(parts, current.Name)
		parent, ok := v.nodes[current.FatherID]
		if !ok {
			break
		}
		current = parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return sep + strings.Join(parts, sep)
}

// NodeByID returns the node with the given id, if it is known to the VFS.
func (v *VFS) NodeByID(id string) (*domain.Node, bool) {
	n, ok := v.nodes[id]
	return n, ok
}

// ListChildNodes refreshes the directory addressed by id and returns its
// children as nodes (rather than names) for callers that need to walk the
// subtree, such as the Torrent Pipeline's post-download BFS.
func (v *VFS) ListChildNodes(ctx context.Context, id string) ([]*domain.Node, error) {
	dir, ok := v.nodes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !dir.IsDir() {
		return nil, domain.ErrNotDirectory
	}
	if err := v.refreshDirectory(ctx, dir); err != nil {
		return nil, err
	}
	children := make([]*domain.Node, 0, len(dir.ChildrenIDs))
	for _, cid := range dir.ChildrenIDs {
		if c, ok := v.nodes[cid]; ok {
			children = append(children, c)
		}
	}
	return children, nil
}

// UpdateNode materializes the result of a completed remote offline
// download. If the node is unknown it fetches metadata and inserts it into
// the tree; if known, it clears LastRefresh so the next traversal re-fetches
// it, and returns the node as-is.
func (v *VFS) UpdateNode(ctx context.Context, id string) (*domain.Node, error) {
	if existing, ok := v.nodes[id]; ok {
		existing.LastRefresh = time.Time{}
		return existing, nil
	}

	info, err := v.gateway.OfflineFileInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	var node *domain.Node
	if strings.HasSuffix(info.Kind, "folder") {
		node = domain.NewDirectory(id, info.Name, info.ParentID)
	} else {
		node = domain.NewFile(id, info.Name, info.ParentID)
	}
	v.nodes[id] = node

	if parent, ok := v.nodes[info.ParentID]; ok {
		parent.ChildrenIDs = append(parent.ChildrenIDs, id)
	}
	return node, nil
}

// refreshDirectory repeatedly calls FileList until the continuation token
// is empty, concatenates pages, then clears and repopulates ChildrenIDs in
// the returned order, reconciling existing nodes in place.
func (v *VFS) refreshDirectory(ctx context.Context, dir *domain.Node) error {
	var (
		children []string
		token    string
	)
	for {
		page, err := v.gateway.FileList(ctx, dir.ID, token)
		if err != nil {
			return err
		}
		for _, f := range page.Files {
			v.reconcileChild(f, dir.ID)
			children = append(children, f.ID)
		}
		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	dir.ChildrenIDs = children
	dir.LastRefresh = v.now()
	metrics.VFSRefreshesTotal.WithLabelValues("directory").Inc()
	return nil
}

func (v *VFS) reconcileChild(f ports.RemoteFile, parentID string) {
	if existing, ok := v.nodes[f.ID]; ok {
		existing.Name = f.Name
		existing.FatherID = parentID
		existing.HasFather = true
		return
	}
	var node *domain.Node
	if strings.HasSuffix(f.Kind, "folder") {
		node = domain.NewDirectory(f.ID, f.Name, parentID)
	} else {
		node = domain.NewFile(f.ID, f.Name, parentID)
	}
	v.nodes[f.ID] = node
}

func (v *VFS) refreshFile(ctx context.Context, file *domain.Node) error {
	url, err := v.gateway.GetDownloadURL(ctx, file.ID)
	if err != nil {
		return err
	}
	file.DownloadURL = url
	file.LastRefresh = v.now()
	metrics.VFSRefreshesTotal.WithLabelValues("file").Inc()
	return nil
}
