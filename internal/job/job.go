package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
)

// Operation identifies one conversion tool.
type Operation string

const (
	OpMergePDF      Operation = "merge-pdf"
	OpSplitPDF      Operation = "split-pdf"
	OpCompressPDF   Operation = "compress-pdf"
	OpCompressImage Operation = "compress-image"
	OpPDFToJPG      Operation = "pdf-to-jpg"
	OpJPGToPDF      Operation = "jpg-to-pdf"
	OpPNGToPDF      Operation = "png-to-pdf"
	OpPDFToPNG      Operation = "pdf-to-png"
	OpWebpToPNG     Operation = "webp-to-png"
	OpPNGToWebp     Operation = "png-to-webp"
	OpWordToPDF     Operation = "word-to-pdf"
)

// Status represents the current state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further dispatcher transition may occur.
// Expiry is the only transition out of a terminal state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusExpired
}

// StoredFile describes one staged or generated file on disk.
type StoredFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
	Path string `json:"path"`
}

// Options carries operation-specific settings taken from the request form.
// Each strategy validates the subset it understands and rejects the rest.
type Options struct {
	Quality     string `json:"quality,omitempty"`
	Level       string `json:"level,omitempty"`
	Pages       []int  `json:"pages,omitempty"`
	PageSize    string `json:"pageSize,omitempty"`
	Orientation string `json:"orientation,omitempty"`
}

// Failure is the terminal error recorded on a failed job.
type Failure struct {
	Code    errs.Code `json:"code"`
	Message string    `json:"message"`
}

// Job is the full lifecycle record of one conversion request.
type Job struct {
	ID          string       `json:"id"`
	Operation   Operation    `json:"operation"`
	Options     Options      `json:"options"`
	Inputs      []StoredFile `json:"inputs"`
	Outputs     []StoredFile `json:"outputs,omitempty"`
	ArchivePath string       `json:"archive_path,omitempty"`
	PageCount   int          `json:"page_count,omitempty"`
	Status      Status       `json:"status"`
	Error       *Failure     `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// New creates a queued job. ExpiresAt is fixed here and never changes.
func New(op Operation, opts Options, inputs []StoredFile, retention time.Duration) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Operation: op,
		Options:   opts,
		Inputs:    inputs,
		Status:    StatusQueued,
		CreatedAt: now,
		ExpiresAt: now.Add(retention),
	}
}

// Expired reports whether the retention window has passed.
func (j *Job) Expired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}

// DownloadPath resolves the artifact to serve: the archive when outputs were
// bundled, otherwise the single output file.
func (j *Job) DownloadPath() (path, filename string, ok bool) {
	if j.Status != StatusSucceeded {
		return "", "", false
	}
	if j.ArchivePath != "" {
		return j.ArchivePath, string(j.Operation) + "-" + j.ID[:8] + ".zip", true
	}
	if len(j.Outputs) == 1 {
		return j.Outputs[0].Path, j.Outputs[0].Name, true
	}
	return "", "", false
}

// clone returns a deep copy so callers never observe store-internal state.
func (j *Job) clone() Job {
	c := *j
	c.Inputs = append([]StoredFile(nil), j.Inputs...)
	c.Outputs = append([]StoredFile(nil), j.Outputs...)
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return c
}
