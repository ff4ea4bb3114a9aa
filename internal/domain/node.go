package domain

import "time"

// NodeKind discriminates the two variants of Node. Directory vs. File is a
// tagged sum, not an inheritance hierarchy: callers dispatch on Kind.
type NodeKind string

const (
	KindDirectory NodeKind = "directory"
	KindFile      NodeKind = "file"
)

// Node is a VFS entry, either a Directory or a File, identified by an
// opaque id assigned by the remote drive. FatherID is absent (empty) only
// for the root.
type Node struct {
	ID       string
	Name     string
	FatherID string
	HasFather bool
	Kind     NodeKind

	// Directory fields. ChildrenIDs is the ordered listing as of the most
	// recent refresh; LastRefresh zero means the listing is stale and must
	// be re-fetched before it is trusted.
	ChildrenIDs []string
	LastRefresh time.Time

	// File fields. DownloadURL is valid only immediately after a refresh;
	// the remote issues short-lived URLs.
	DownloadURL string
}

// RootID is the sentinel id of the distinguished root directory.
const RootID = ""

// NewRoot constructs the VFS root: empty name, no father, stale listing.
func NewRoot() *Node {
	return &Node{
		ID:        RootID,
		Name:      "",
		HasFather: false,
		Kind:      KindDirectory,
	}
}

func NewDirectory(id, name, fatherID string) *Node {
	return &Node{ID: id, Name: name, FatherID: fatherID, HasFather: true, Kind: KindDirectory}
}

func NewFile(id, name, fatherID string) *Node {
	return &Node{ID: id, Name: name, FatherID: fatherID, HasFather: true, Kind: KindFile}
}

func (n *Node) IsDir() bool  { return n.Kind == KindDirectory }
func (n *Node) IsFile() bool { return n.Kind == KindFile }
func (n *Node) IsRoot() bool { return n.ID == RootID && !n.HasFather }

// Stale reports whether a directory's ChildrenIDs must be re-fetched before
// being trusted. Always true for a node that has never been refreshed.
func (n *Node) Stale() bool {
	return n.LastRefresh.IsZero()
}
