// Package dispatch runs validated jobs through their converter strategy
// under a bounded concurrency limit.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mani-django09/smallpdf.us-sub000/internal/archive"
	"github.com/mani-django09/smallpdf.us-sub000/internal/convert"
	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// Mirror replicates final artifacts to object storage. Optional.
type Mirror interface {
	Upload(ctx context.Context, jobID string, f job.StoredFile) error
}

type Dispatcher struct {
	store     *job.Store
	registry  *convert.Registry
	slots     *semaphore.Weighted
	outputDir string
	mirror    Mirror
}

func New(store *job.Store, registry *convert.Registry, outputDir string, slots int64, mirror Mirror) (*Dispatcher, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Dispatcher{
		store:     store,
		registry:  registry,
		slots:     semaphore.NewWeighted(slots),
		outputDir: outputDir,
		mirror:    mirror,
	}, nil
}

// Run executes the job to completion and returns its terminal snapshot.
// The call blocks until conversion finishes, fails, or times out; the heavy
// work occupies worker slots, so many requests can wait while few run.
func (d *Dispatcher) Run(ctx context.Context, id string) (job.Job, error) {
	j, err := d.store.Get(id)
	if err != nil {
		return job.Job{}, err
	}

	strategy, err := d.registry.Get(j.Operation)
	if err != nil {
		return j, err
	}

	if err := d.store.MarkRunning(id); err != nil {
		return j, err
	}

	// Every job owns a disjoint output subtree, no cross-job locking needed.
	jobDir := filepath.Join(d.outputDir, id)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return d.fail(id, errs.Wrap(errs.CodeStorage, err, "failed to create job directory"))
	}

	outputs, pages, convErr := d.execute(ctx, strategy, j, jobDir)
	if convErr != nil {
		// Partial outputs must not wait for the reaper.
		os.RemoveAll(jobDir)
		return d.fail(id, convErr)
	}

	archivePath := ""
	if len(outputs) > 1 {
		archivePath = filepath.Join(jobDir, "bundle.zip")
		if err := archive.Build(archivePath, outputs); err != nil {
			os.RemoveAll(jobDir)
			return d.fail(id, err)
		}
	}

	if err := d.store.MarkSucceeded(id, outputs, archivePath, pages); err != nil {
		os.RemoveAll(jobDir)
		return job.Job{}, err
	}

	final, err := d.store.Get(id)
	if err != nil {
		return job.Job{}, err
	}
	d.replicate(ctx, final)
	return final, nil
}

func (d *Dispatcher) execute(ctx context.Context, strategy convert.Strategy, j job.Job, jobDir string) ([]job.StoredFile, int, error) {
	switch s := strategy.(type) {
	case convert.Combiner:
		if err := d.slots.Acquire(ctx, 1); err != nil {
			return nil, 0, errs.Wrap(errs.CodeStorage, err, "worker pool unavailable")
		}
		defer d.slots.Release(1)

		res, err := s.Combine(ctx, j.Inputs, j.Options, jobDir)
		if err != nil {
			return nil, 0, err
		}
		return res.Files, res.Pages, nil

	case convert.FileConverter:
		return d.fanOut(ctx, s, j, jobDir)

	default:
		return nil, 0, fmt.Errorf("strategy %s implements no conversion capability", strategy.Operation())
	}
}

// fanOut converts each input on its own worker slot. A failing input never
// aborts its siblings: every file gets processed, then the job succeeds only
// if all of them did. Each input writes into its own subdirectory so that
// two uploads sharing a client filename can never race on one output path.
func (d *Dispatcher) fanOut(ctx context.Context, s convert.FileConverter, j job.Job, jobDir string) ([]job.StoredFile, int, error) {
	results := make([]convert.Result, len(j.Inputs))
	failures := make([]error, len(j.Inputs))

	var wg sync.WaitGroup
	for i, input := range j.Inputs {
		wg.Add(1)
		go func(seq int, in job.StoredFile) {
			defer wg.Done()
			if err := d.slots.Acquire(ctx, 1); err != nil {
				failures[seq] = errs.Wrap(errs.CodeStorage, err, "worker pool unavailable")
				return
			}
			defer d.slots.Release(1)

			seqDir := filepath.Join(jobDir, fmt.Sprintf("%02d", seq))
			if err := os.MkdirAll(seqDir, 0o755); err != nil {
				failures[seq] = errs.Wrap(errs.CodeStorage, err, "failed to create output directory")
				return
			}
			results[seq], failures[seq] = s.ConvertFile(ctx, in, seq, j.Options, seqDir)
		}(i, input)
	}
	wg.Wait()

	succeeded := 0
	firstFailure := -1
	for i := range j.Inputs {
		if failures[i] == nil {
			succeeded++
		} else if firstFailure < 0 {
			firstFailure = i
		}
	}

	if firstFailure >= 0 {
		cause := failures[firstFailure]
		name := j.Inputs[firstFailure].Name
		if len(j.Inputs) == 1 {
			return nil, 0, cause
		}
		return nil, 0, errs.Wrap(errs.CodeOf(cause), cause,
			"%s failed (%d of %d files converted)", name, succeeded, len(j.Inputs))
	}

	// Reassemble in input order regardless of completion order.
	var outputs []job.StoredFile
	pages := 0
	for _, res := range results {
		outputs = append(outputs, res.Files...)
		pages += res.Pages
	}
	return outputs, pages, nil
}

func (d *Dispatcher) fail(id string, cause error) (job.Job, error) {
	code := errs.CodeOf(cause)
	if err := d.store.MarkFailed(id, code, errs.MessageOf(cause)); err != nil {
		log.Printf("failed to record failure for job %s: %v", id, err)
	}
	if code == errs.CodeStorage {
		log.Printf("job %s storage failure: %v", id, cause)
	}
	j, err := d.store.Get(id)
	if err != nil {
		return job.Job{}, err
	}
	return j, cause
}

// replicate mirrors the downloadable artifact to object storage when a
// mirror is configured. Best effort, a miss never fails the job.
func (d *Dispatcher) replicate(ctx context.Context, j job.Job) {
	if d.mirror == nil {
		return
	}
	path, name, ok := j.DownloadPath()
	if !ok {
		return
	}
	f := job.StoredFile{Name: name, Path: path}
	if len(j.Outputs) == 1 && j.ArchivePath == "" {
		f = j.Outputs[0]
	}
	if err := d.mirror.Upload(ctx, j.ID, f); err != nil {
		log.Printf("mirror upload failed for job %s: %v", j.ID, err)
	}
}
