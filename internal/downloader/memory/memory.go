// Package memory is an in-process reference ports.LocalDownloader:
// every AddURI immediately "completes" unless the caller configures a
// multi-step status sequence, standing in for a real local download
// daemon in tests and the standalone demo binary.
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

type download struct {
	uri        string
	outputPath string
	sequence   []ports.LocalStatus
	idx        int
}

// Downloader is the in-memory reference LocalDownloader.
type Downloader struct {
	mu sync.Mutex

	downloads map[string]*download
	nextID    int

	// Sequence, when set, supplies the status sequence every new
	// download reports through on successive TellStatus calls, looping on
	// the final entry once exhausted. Defaults to a single LocalComplete.
	Sequence []ports.LocalStatus

	Latency func() time.Duration
	FailOn  map[string]error
	Limiter *rate.Limiter
}

func New() *Downloader {
	return &Downloader{downloads: map[string]*download{}}
}

func (d *Downloader) beginCall(ctx context.Context, op string) (func(err *error), error) {
	spanCtx, span := telemetry.Tracer().Start(ctx, "downloader.local."+op)

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
		metrics.DownloaderCallsTotal.WithLabelValues(op, outcome).Inc()
		span.End()
	}, nil
}

func (d *Downloader) injected(op string) error {
	if d.FailOn == nil {
		return nil
	}
	return d.FailOn[op]
}

func (d *Downloader) AddURI(ctx context.Context, uri, outputPath string) (gid string, err error) {
	end, err := d.beginCall(ctx, "AddURI")
	if err != nil {
		return "", err
	}
	defer func() { end(&err) }()

	if err = d.injected("AddURI"); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	seq := d.Sequence
	if len(seq) == 0 {
		seq = []ports.LocalStatus{ports.LocalComplete}
	}
	d.nextID++
	gid = fmt.Sprintf("gid-%d", d.nextID)
	d.downloads[gid] = &download{uri: uri, outputPath: outputPath, sequence: seq}
	return gid, nil
}

func (d *Downloader) TellStatus(ctx context.Context, gid string) (status ports.LocalStatus, err error) {
	end, err := d.beginCall(ctx, "TellStatus")
	if err != nil {
		return "", err
	}
	defer func() { end(&err) }()

	if err = d.injected("TellStatus"); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.downloads[gid]
	if !ok {
		return ports.LocalRemoved, nil
	}
	status = dl.sequence[dl.idx]
	if dl.idx < len(dl.sequence)-1 {
		dl.idx++
	}
	return status, nil
}

func (d *Downloader) Pause(ctx context.Context, gid string) (err error) {
	end, err := d.beginCall(ctx, "Pause")
	if err != nil {
		return err
	}
	defer func() { end(&err) }()

	if err = d.injected("Pause"); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.downloads[gid]
	if !ok {
		return fmt.Errorf("memory downloader: unknown gid %q", gid)
	}
	dl.sequence = []ports.LocalStatus{ports.LocalPaused}
	dl.idx = 0
	return nil
}

func (d *Downloader) Unpause(ctx context.Context, gid string) (err error) {
	end, err := d.beginCall(ctx, "Unpause")
	if err != nil {
		return err
	}
	defer func() { end(&err) }()

	if err = d.injected("Unpause"); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.downloads[gid]
	if !ok {
		return fmt.Errorf("memory downloader: unknown gid %q", gid)
	}
	dl.sequence = []ports.LocalStatus{ports.LocalComplete}
	dl.idx = 0
	return nil
}

func (d *Downloader) Remove(ctx context.Context, gid string) (err error) {
	end, err := d.beginCall(ctx, "Remove")
	if err != nil {
		return err
	}
	defer func() { end(&err) }()

	if err = d.injected("Remove"); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.downloads, gid)
	return nil
}
