// Package mongo is an optional networked ports.TaskStore backend: one
// collection per task tag, replaced wholesale on every Save.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
)

// Store is a ports.TaskStore backed by two Mongo collections.
type Store struct {
	torrents *mongo.Collection
	files    *mongo.Collection
}

func NewStore(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		torrents: db.Collection("torrent_tasks"),
		files:    db.Collection("file_download_tasks"),
	}
}

// Connect dials Mongo with the driver's standard ApplyURI/extra-options
// pattern, accepting extra *options.ClientOptions so a caller can layer
// on e.g. otelmongo's monitor without this package needing to know about it.
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

type torrentDoc struct {
	ID             string `bson:"_id"`
	Status         string `bson:"status"`
	MaxConcurrent  int    `bson:"maxConcurrent"`
	TorrentStatus  string `bson:"torrentStatus"`
	Torrent        string `bson:"torrent"`
	RemoteBasePath string `bson:"remoteBasePath"`
	NodeID         string `bson:"nodeId"`
	RemoteTaskID   string `bson:"remoteTaskId"`
	Name           string `bson:"name"`
}

type fileDoc struct {
	ID            string `bson:"_id"`
	Status        string `bson:"status"`
	MaxConcurrent int    `bson:"maxConcurrent"`
	FileStatus    string `bson:"fileStatus"`
	NodeID        string `bson:"nodeId"`
	RemotePath    string `bson:"remotePath"`
	OwnerID       string `bson:"ownerId"`
	GID           string `bson:"gid"`
	URL           string `bson:"url"`
}

func toTorrentDoc(t domain.TorrentTask) torrentDoc {
	return torrentDoc{
		ID:             t.ID,
		Status:         string(t.Status),
		MaxConcurrent:  t.MaxConcurrent,
		TorrentStatus:  string(t.TorrentStatus),
		Torrent:        t.Torrent,
		RemoteBasePath: t.RemoteBasePath,
		NodeID:         t.NodeID,
		RemoteTaskID:   t.RemoteTaskID,
		Name:           t.Name,
	}
}

func fromTorrentDoc(doc torrentDoc) domain.TorrentTask {
	return domain.TorrentTask{
		Header: domain.Header{
			ID:            doc.ID,
			Tag:           domain.TagTorrent,
			Status:        domain.Status(doc.Status),
			MaxConcurrent: doc.MaxConcurrent,
		},
		TorrentStatus:  domain.TorrentStatus(doc.TorrentStatus),
		Torrent:        doc.Torrent,
		RemoteBasePath: doc.RemoteBasePath,
		NodeID:         doc.NodeID,
		RemoteTaskID:   doc.RemoteTaskID,
		Name:           doc.Name,
	}
}

func toFileDoc(f domain.FileDownloadTask) fileDoc {
	return fileDoc{
		ID:            f.ID,
		Status:        string(f.Status),
		MaxConcurrent: f.MaxConcurrent,
		FileStatus:    string(f.FileStatus),
		NodeID:        f.NodeID,
		RemotePath:    f.RemotePath,
		OwnerID:       f.OwnerID,
		GID:           f.GID,
		URL:           f.URL,
	}
}

func fromFileDoc(doc fileDoc) domain.FileDownloadTask {
	return domain.FileDownloadTask{
		Header: domain.Header{
			ID:            doc.ID,
			Tag:           domain.TagFileDownload,
			Status:        domain.Status(doc.Status),
			MaxConcurrent: doc.MaxConcurrent,
		},
		FileStatus: domain.FileStatus(doc.FileStatus),
		NodeID:     doc.NodeID,
		RemotePath: doc.RemotePath,
		OwnerID:    doc.OwnerID,
		GID:        doc.GID,
		URL:        doc.URL,
	}
}

// Save replaces the full contents of both collections with snap's
// records. Mongo has no cross-collection transaction here (a standalone
// deployment may not support them), so this is eventually-consistent by
// collection rather than atomic the way store/bolt's single-file
// transaction is — acceptable for this backend since it's the optional,
// not default, choice.
func (s *Store) Save(ctx context.Context, snap ports.Snapshot) error {
	if err := replaceCollection(ctx, s.torrents, snap.Torrents, toTorrentDoc); err != nil {
		return fmt.Errorf("mongo store: save torrents: %w", err)
	}
	if err := replaceCollection(ctx, s.files, snap.Files, toFileDoc); err != nil {
		return fmt.Errorf("mongo store: save files: %w", err)
	}
	return nil
}

func replaceCollection[T, D any](ctx context.Context, coll *mongo.Collection, records []T, toDoc func(T) D) error {
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, 0, len(records))
	for _, rec := range records {
		docs = append(docs, toDoc(rec))
	}
	_, err := coll.InsertMany(ctx, docs)
	return err
}

func (s *Store) Load(ctx context.Context) (ports.Snapshot, error) {
	var snap ports.Snapshot

	torrentCursor, err := s.torrents.Find(ctx, bson.M{})
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("mongo store: load torrents: %w", err)
	}
	defer torrentCursor.Close(ctx)
	var torrentDocs []torrentDoc
	if err := torrentCursor.All(ctx, &torrentDocs); err != nil {
		return ports.Snapshot{}, fmt.Errorf("mongo store: decode torrents: %w", err)
	}
	for _, doc := range torrentDocs {
		snap.Torrents = append(snap.Torrents, fromTorrentDoc(doc))
	}

	fileCursor, err := s.files.Find(ctx, bson.M{})
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("mongo store: load files: %w", err)
	}
	defer fileCursor.Close(ctx)
	var fileDocs []fileDoc
	if err := fileCursor.All(ctx, &fileDocs); err != nil {
		return ports.Snapshot{}, fmt.Errorf("mongo store: decode files: %w", err)
	}
	for _, doc := range fileDocs {
		snap.Files = append(snap.Files, fromFileDoc(doc))
	}

	return snap, nil
}
