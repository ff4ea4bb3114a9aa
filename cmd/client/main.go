package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"golang.org/x/time/rate"

	"torrentstream/internal/app"
	"torrentstream/internal/cli"
	"torrentstream/internal/credentials"
	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
	aria2dl "torrentstream/internal/downloader/aria2"
	memorydl "torrentstream/internal/downloader/memory"
	httpgw "torrentstream/internal/gateway/http"
	memorygw "torrentstream/internal/gateway/memory"
	"torrentstream/internal/metrics"
	"torrentstream/internal/pipeline"
	"torrentstream/internal/scheduler"
	boltstore "torrentstream/internal/store/bolt"
	mongostore "torrentstream/internal/store/mongo"
	"torrentstream/internal/telemetry"
	"torrentstream/internal/vfs"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "torrent-client")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("gatewayKind", cfg.GatewayKind),
		slog.String("downloaderKind", cfg.DownloaderKind),
		slog.Bool("mongoStore", cfg.TaskStoreMongoURI != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := newGateway(cfg)
	if err != nil {
		logger.Error("gateway init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	downloader := newDownloader(cfg)

	store, closeStore, err := newTaskStore(rootCtx, cfg)
	if err != nil {
		logger.Error("task store init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// handlers is populated after Deps exists, but must be passed to
	// scheduler.New by reference now: New stores the map, not a copy, so
	// entries added later are visible to the supervisor goroutine the
	// first time it dispatches them. This is what breaks the otherwise
	// circular Scheduler-needs-handlers / handlers-need-Scheduler
	// construction order.
	handlers := map[domain.Tag]scheduler.Handler{}
	schedOpts := []scheduler.Option{
		scheduler.WithTick(cfg.SchedulerTick),
		scheduler.WithConcurrency(domain.TagTorrent, cfg.TorrentConcurrency),
		scheduler.WithConcurrency(domain.TagFileDownload, cfg.FileDownloadConcurrency),
	}
	if cfg.SchedulerPromotionRateLimit > 0 {
		limit := rate.Limit(cfg.SchedulerPromotionRateLimit)
		schedOpts = append(schedOpts,
			scheduler.WithRateLimit(domain.TagTorrent, limit, 1),
			scheduler.WithRateLimit(domain.TagFileDownload, limit, 1),
		)
	}
	sched := scheduler.New(logger, handlers, schedOpts...)

	deps := pipeline.Deps{
		Gateway:         gateway,
		Downloader:      downloader,
		VFS:             vfs.New(gateway),
		Scheduler:       sched,
		Logger:          logger,
		DownloadBaseDir: cfg.DownloadBaseDir,
	}
	handlers[domain.TagTorrent] = pipeline.NewTorrentHandler(deps)
	handlers[domain.TagFileDownload] = pipeline.NewFileDownloadHandler(deps)

	loadCtx, loadCancel := context.WithTimeout(rootCtx, 10*time.Second)
	snap, err := store.Load(loadCtx)
	loadCancel()
	if err != nil {
		logger.Warn("task snapshot load failed, starting with empty queues", slog.String("error", err.Error()))
	} else {
		torrentTasks, fileTasks := restoreSnapshot(snap)
		sched.Load(torrentTasks, fileTasks)
		logger.Info("task snapshot restored",
			slog.Int("torrents", len(torrentTasks)),
			slog.Int("fileDownloads", len(fileTasks)),
		)
	}

	// svc is the engine's command surface: every operation an external
	// command shell drives (login, ls, cd, download, query, ...) per
	// spec.md §6. This binary does not read stdin itself — the shell,
	// tab completion, and colored output it would wrap are out of scope —
	// it only keeps svc constructed and reachable for an in-process
	// caller (e.g. a test harness or an embedding program) alongside the
	// engine loop below.
	svc := cli.Service{
		Deps:                    deps,
		Credentials:             credentials.NewFileCache(cfg.CredentialsPath),
		TorrentConcurrency:      cfg.TorrentConcurrency,
		FileDownloadConcurrency: cfg.FileDownloadConcurrency,
	}
	logger.Info("command surface ready", slog.String("cwd", svc.Cwd()))

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		sched.Run(schedCtx)
	}()

	logger.Info("client started")
	<-rootCtx.Done()
	logger.Info("shutdown signal received")
	// Snapshot is served by Run's goroutine, so it is taken before Run is
	// stopped; the tasks are serialized only after every worker has exited.
	torrent, fileDownload := sched.Snapshot()
	stopScheduler()
	<-schedulerDone

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := store.Save(saveCtx, snapshotFor(torrent, fileDownload)); err != nil {
		logger.Error("task snapshot save failed", slog.String("error", err.Error()))
	}

	logger.Info("client stopped")
}

func newGateway(cfg app.Config) (ports.RemoteDrive, error) {
	switch cfg.GatewayKind {
	case "", "memory":
		return memorygw.New(), nil
	case "http":
		if cfg.GatewayURL == "" {
			return nil, fmt.Errorf("GATEWAY_URL must be set when GATEWAY_KIND=http")
		}
		return httpgw.NewClient(httpgw.Config{BaseURL: cfg.GatewayURL, AccessToken: cfg.GatewayToken}), nil
	default:
		return nil, fmt.Errorf("unknown GATEWAY_KIND %q", cfg.GatewayKind)
	}
}

func newDownloader(cfg app.Config) ports.LocalDownloader {
	switch cfg.DownloaderKind {
	case "aria2":
		return aria2dl.NewClient(aria2dl.Config{RPCURL: cfg.Aria2RPCURL, Secret: cfg.Aria2Secret})
	default:
		return memorydl.New()
	}
}

func newTaskStore(ctx context.Context, cfg app.Config) (ports.TaskStore, func(), error) {
	if cfg.TaskStoreMongoURI == "" {
		store, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store at %s: %w", cfg.BoltPath, err)
		}
		return store, func() { _ = store.Close() }, nil
	}

	client, err := mongostore.Connect(ctx, cfg.TaskStoreMongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo task store: %w", err)
	}
	store := mongostore.NewStore(client, cfg.MongoDatabase)
	return store, func() { _ = client.Disconnect(context.Background()) }, nil
}

// restoreSnapshot converts a loaded ports.Snapshot into the scheduler's
// queue shape, coercing any task left RUNNING at the last snapshot back
// to PENDING (the process that was running it no longer exists) and
// clearing the transient progress-summary field, per the persistence
// contract in SPEC_FULL.md's C9.
func restoreSnapshot(snap ports.Snapshot) (torrent, fileDownload []domain.Task) {
	torrent = make([]domain.Task, 0, len(snap.Torrents))
	for i := range snap.Torrents {
		t := snap.Torrents[i]
		if t.Status == domain.StatusRunning {
			t.Status = domain.StatusPending
		}
		t.Info = ""
		torrent = append(torrent, &t)
	}
	fileDownload = make([]domain.Task, 0, len(snap.Files))
	for i := range snap.Files {
		f := snap.Files[i]
		if f.Status == domain.StatusRunning {
			f.Status = domain.StatusPending
		}
		fileDownload = append(fileDownload, &f)
	}
	return torrent, fileDownload
}

// snapshotFor converts the scheduler's live queues back into the
// persistence layer's storage shape.
func snapshotFor(torrent, fileDownload []domain.Task) ports.Snapshot {
	snap := ports.Snapshot{
		Torrents: make([]domain.TorrentTask, 0, len(torrent)),
		Files:    make([]domain.FileDownloadTask, 0, len(fileDownload)),
	}
	for _, task := range torrent {
		if t, ok := task.(*domain.TorrentTask); ok {
			snap.Torrents = append(snap.Torrents, *t)
		}
	}
	for _, task := range fileDownload {
		if f, ok := task.(*domain.FileDownloadTask); ok {
			snap.Files = append(snap.Files, *f)
		}
	}
	return snap
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
