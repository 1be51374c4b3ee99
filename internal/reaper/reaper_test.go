package reaper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

type fakeRemover struct {
	removed []string
}

func (m *fakeRemover) Remove(ctx context.Context, jobID string) error {
	m.removed = append(m.removed, jobID)
	return nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func finishedJob(t *testing.T, store *job.Store, uploadDir, outputDir string, retention time.Duration) *job.Job {
	t.Helper()

	input := filepath.Join(uploadDir, "in.pdf")
	writeFile(t, input)

	j := job.New(job.OpCompressPDF, job.Options{}, []job.StoredFile{{Name: "in.pdf", Path: input}}, retention)
	if err := store.Put(j); err != nil {
		t.Fatal(err)
	}

	jobDir := filepath.Join(outputDir, j.ID)
	output := filepath.Join(jobDir, "compressed-in.pdf")
	writeFile(t, output)

	store.MarkRunning(j.ID)
	if err := store.MarkSucceeded(j.ID, []job.StoredFile{{Name: "compressed-in.pdf", Path: output}}, "", 2); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestSweepExpiresOldJobs(t *testing.T) {
	uploadDir, outputDir := t.TempDir(), t.TempDir()
	store, err := job.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mirror := &fakeRemover{}
	r := New(store, uploadDir, outputDir, time.Minute, time.Hour, mirror)

	j := finishedJob(t, store, uploadDir, outputDir, time.Hour)

	// Before expiry nothing is touched.
	r.Sweep(context.Background(), time.Now())
	got, _ := store.Get(j.ID)
	if got.Status != job.StatusSucceeded {
		t.Fatalf("status after early sweep = %s", got.Status)
	}
	if _, err := os.Stat(j.Inputs[0].Path); err != nil {
		t.Error("input removed before expiry")
	}

	// After the window, inputs, outputs and the job directory go away.
	later := time.Now().Add(2 * time.Hour)
	r.Sweep(context.Background(), later)

	got, _ = store.Get(j.ID)
	if got.Status != job.StatusExpired {
		t.Fatalf("status after sweep = %s", got.Status)
	}
	if _, err := os.Stat(j.Inputs[0].Path); !os.IsNotExist(err) {
		t.Error("input survived the sweep")
	}
	if _, err := os.Stat(filepath.Join(outputDir, j.ID)); !os.IsNotExist(err) {
		t.Error("job output directory survived the sweep")
	}
	if len(mirror.removed) != 1 || mirror.removed[0] != j.ID {
		t.Errorf("mirror removals = %v", mirror.removed)
	}

	// A second sweep is a no-op, not an error.
	r.Sweep(context.Background(), later.Add(time.Minute))
	if len(mirror.removed) != 1 {
		t.Error("expired job reaped twice")
	}
}

func TestSweepRemovesOrphanedUploads(t *testing.T) {
	uploadDir, outputDir := t.TempDir(), t.TempDir()
	store, err := job.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := New(store, uploadDir, outputDir, time.Minute, time.Hour, nil)

	// Orphan: staged but never attached to a job.
	orphan := filepath.Join(uploadDir, "abandoned.png")
	writeFile(t, orphan)
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatal(err)
	}

	// Fresh orphan: too young to collect.
	fresh := filepath.Join(uploadDir, "fresh.png")
	writeFile(t, fresh)

	// Live: referenced by an unexpired job.
	live := filepath.Join(uploadDir, "live.pdf")
	writeFile(t, live)
	if err := os.Chtimes(live, old, old); err != nil {
		t.Fatal(err)
	}
	j := job.New(job.OpSplitPDF, job.Options{Pages: []int{1}}, []job.StoredFile{{Name: "live.pdf", Path: live}}, time.Hour)
	if err := store.Put(j); err != nil {
		t.Fatal(err)
	}

	r.Sweep(context.Background(), time.Now())

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("old orphan survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh upload removed")
	}
	if _, err := os.Stat(live); err != nil {
		t.Error("live job input removed")
	}
}
