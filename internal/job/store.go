package job

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
)

// Store holds all job records behind a single mutex. Records are mirrored as
// JSON files under dataDir so a restart within the retention window does not
// strand artifacts on disk without metadata.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	dataDir string
	notify  func(Job)
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		jobs:    make(map[string]*Job),
		dataDir: dataDir,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetNotifier registers a callback invoked after every status transition.
// The callback receives a copy and must not block for long.
func (s *Store) SetNotifier(fn func(Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

func (s *Store) Put(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	s.jobs[j.ID] = j
	return s.persist(j)
}

// Get returns a consistent snapshot of the job. Safe to call concurrently
// with reaper deletions, the caller never sees a half-updated record.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, errs.New(errs.CodeNotFound, "job %s not found", id)
	}
	return j.clone(), nil
}

// MarkRunning transitions queued → running.
func (s *Store) MarkRunning(id string) error {
	return s.transition(id, func(j *Job) error {
		if j.Status != StatusQueued {
			return fmt.Errorf("job %s is %s, cannot start", id, j.Status)
		}
		j.Status = StatusRunning
		return nil
	})
}

// MarkSucceeded records outputs and the optional archive path.
func (s *Store) MarkSucceeded(id string, outputs []StoredFile, archivePath string, pageCount int) error {
	return s.transition(id, func(j *Job) error {
		if j.Status != StatusRunning {
			return fmt.Errorf("job %s is %s, cannot succeed", id, j.Status)
		}
		j.Status = StatusSucceeded
		j.Outputs = outputs
		j.ArchivePath = archivePath
		j.PageCount = pageCount
		return nil
	})
}

func (s *Store) MarkFailed(id string, code errs.Code, message string) error {
	return s.transition(id, func(j *Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("job %s is %s, cannot fail", id, j.Status)
		}
		j.Status = StatusFailed
		j.Error = &Failure{Code: code, Message: message}
		return nil
	})
}

// MarkExpired is reserved for the reaper and only applies after ExpiresAt.
func (s *Store) MarkExpired(id string, now time.Time) error {
	return s.transition(id, func(j *Job) error {
		if j.Status == StatusExpired {
			return nil
		}
		if !j.Expired(now) {
			return fmt.Errorf("job %s has not reached its expiry", id)
		}
		j.Status = StatusExpired
		j.Outputs = nil
		j.ArchivePath = ""
		return nil
	})
}

// Expirable lists jobs whose retention window has passed and that have not
// been reaped yet.
func (s *Store) Expirable(now time.Time) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Job
	for _, j := range s.jobs {
		if j.Status != StatusExpired && j.Expired(now) {
			out = append(out, j.clone())
		}
	}
	return out
}

// LivePaths returns every staging path still owned by a non-expired job.
// The reaper uses it to tell orphaned uploads from in-flight ones.
func (s *Store) LivePaths() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make(map[string]bool)
	for _, j := range s.jobs {
		if j.Status == StatusExpired {
			continue
		}
		for _, f := range j.Inputs {
			paths[f.Path] = true
		}
	}
	return paths
}

func (s *Store) transition(id string, mutate func(*Job) error) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errs.New(errs.CodeNotFound, "job %s not found", id)
	}
	if err := mutate(j); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.persist(j); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := j.clone()
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return nil
}

// persist writes the job record to disk. Caller holds the lock.
func (s *Store) persist(j *Job) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", j.ID, err)
	}
	path := filepath.Join(s.dataDir, j.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.CodeStorage, err, "failed to persist job %s", j.ID)
	}
	return nil
}

// load restores persisted records. Jobs caught mid-run by a restart are
// marked failed, their outputs were never recorded.
func (s *Store) load() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dataDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("skipping unreadable job record %s: %v", path, err)
			continue
		}
		var j Job
		if err := json.Unmarshal(data, &j); err != nil {
			log.Printf("skipping corrupt job record %s: %v", path, err)
			continue
		}
		if j.Status == StatusQueued || j.Status == StatusRunning {
			j.Status = StatusFailed
			j.Error = &Failure{Code: errs.CodeConversion, Message: "interrupted by restart"}
		}
		s.jobs[j.ID] = &j
	}

	if len(s.jobs) > 0 {
		log.Printf("restored %d job records from %s", len(s.jobs), s.dataDir)
	}
	return nil
}
