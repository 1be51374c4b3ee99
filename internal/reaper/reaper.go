// Package reaper enforces the retention window: expired job files are
// deleted from disk and their records flagged, on a sweep interval much
// shorter than the window itself.
package reaper

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// Remover deletes mirrored artifacts for a reaped job. Optional.
type Remover interface {
	Remove(ctx context.Context, jobID string) error
}

type Reaper struct {
	store     *job.Store
	uploadDir string
	outputDir string
	interval  time.Duration
	retention time.Duration
	mirror    Remover
}

func New(store *job.Store, uploadDir, outputDir string, interval, retention time.Duration, mirror Remover) *Reaper {
	return &Reaper{
		store:     store,
		uploadDir: uploadDir,
		outputDir: outputDir,
		interval:  interval,
		retention: retention,
		mirror:    mirror,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("reaper sweeping every %s (retention %s)", r.interval, r.retention)
	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// Sweep deletes files belonging to jobs past their expiry and then clears
// orphaned staging files. Deletion is idempotent, a missing file just means
// an earlier sweep or an error path already cleaned it up.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) {
	reaped := 0
	for _, j := range r.store.Expirable(now) {
		for _, f := range j.Inputs {
			removeQuiet(f.Path)
		}
		for _, f := range j.Outputs {
			removeQuiet(f.Path)
		}
		if j.ArchivePath != "" {
			removeQuiet(j.ArchivePath)
		}
		removeQuiet(filepath.Join(r.outputDir, j.ID))

		if r.mirror != nil {
			if err := r.mirror.Remove(ctx, j.ID); err != nil {
				log.Printf("mirror cleanup failed for job %s: %v", j.ID, err)
			}
		}

		if err := r.store.MarkExpired(j.ID, now); err != nil {
			log.Printf("failed to expire job %s: %v", j.ID, err)
			continue
		}
		reaped++
	}

	orphans := r.sweepOrphans(now)

	if reaped > 0 || orphans > 0 {
		log.Printf("reaper: expired %d job(s), removed %d orphaned upload(s)", reaped, orphans)
	}
}

// sweepOrphans removes staging files that no live job references and that
// are older than one retention window. These appear only when intake
// succeeded but the request died before dispatch.
func (r *Reaper) sweepOrphans(now time.Time) int {
	entries, err := os.ReadDir(r.uploadDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("reaper: cannot read upload dir: %v", err)
		}
		return 0
	}

	live := r.store.LivePaths()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.uploadDir, entry.Name())
		if live[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < r.retention {
			continue
		}
		removeQuiet(path)
		removed++
	}
	return removed
}

func removeQuiet(path string) {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("reaper: failed to remove %s: %v", path, err)
	}
}
