package convert

import (
	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// Registry maps an operation to its converter strategy.
type Registry struct {
	strategies map[job.Operation]Strategy
}

func NewRegistry(tools Tools) *Registry {
	r := &Registry{
		strategies: make(map[job.Operation]Strategy),
	}

	r.Register(&mergePDF{})
	r.Register(&splitPDF{})
	r.Register(&imageToPDF{op: job.OpJPGToPDF})
	r.Register(&imageToPDF{op: job.OpPNGToPDF})
	r.Register(&compressImage{})
	r.Register(&convertImage{op: job.OpWebpToPNG})
	r.Register(&convertImage{op: job.OpPNGToWebp})
	r.Register(&compressPDF{gs: tools.Ghostscript})
	r.Register(&rasterizePDF{op: job.OpPDFToJPG, gs: tools.Ghostscript})
	r.Register(&rasterizePDF{op: job.OpPDFToPNG, gs: tools.Ghostscript})
	r.Register(&wordToPDF{soffice: tools.LibreOffice})

	return r
}

func (r *Registry) Register(s Strategy) {
	r.strategies[s.Operation()] = s
}

func (r *Registry) Get(op job.Operation) (Strategy, error) {
	s, ok := r.strategies[op]
	if !ok {
		return nil, errs.New(errs.CodeValidation, "unsupported operation: %s", op)
	}
	return s, nil
}

// Operations lists every registered operation, used to build routes.
func (r *Registry) Operations() []job.Operation {
	ops := make([]job.Operation, 0, len(r.strategies))
	for op := range r.strategies {
		ops = append(ops, op)
	}
	return ops
}
