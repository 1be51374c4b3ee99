package convert

import (
	"context"

	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// Result is what a strategy produced for one invocation. Pages is the page
// count of the generated document where that is meaningful, zero otherwise.
type Result struct {
	Files []job.StoredFile
	Pages int
}

// Strategy is the base capability every converter implements.
type Strategy interface {
	Operation() job.Operation

	// ValidateOptions normalizes defaults in place and rejects unknown or
	// out-of-range values before any work starts.
	ValidateOptions(o *job.Options) error
}

// Combiner consumes the whole input set in one call and yields a single
// document (merge, image→PDF import). Input order is significant.
type Combiner interface {
	Strategy
	Combine(ctx context.Context, inputs []job.StoredFile, o job.Options, outDir string) (Result, error)
}

// FileConverter processes one input independently of its batch siblings.
// seq is the zero-based position of the input within the job, used for
// stable output ordering. A single input may yield several files
// (PDF rasterization emits one image per page).
type FileConverter interface {
	Strategy
	ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error)
}

// Tools locates the external converter binaries.
type Tools struct {
	Ghostscript string
	LibreOffice string
}
