package convert

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// pdfConfig returns a pdfcpu configuration lenient enough for the PDFs
// people actually upload.
func pdfConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

func pdfPageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

func storedPDF(path, name string) (job.StoredFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "generated PDF missing")
	}
	return job.StoredFile{Name: name, Size: info.Size(), MIME: "application/pdf", Path: path}, nil
}

// mergePDF concatenates the input PDFs in upload order.
type mergePDF struct{}

func (s *mergePDF) Operation() job.Operation { return job.OpMergePDF }

func (s *mergePDF) ValidateOptions(o *job.Options) error {
	return noOptions(o)
}

func (s *mergePDF) Combine(ctx context.Context, inputs []job.StoredFile, o job.Options, outDir string) (Result, error) {
	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = in.Path
	}

	out := filepath.Join(outDir, "merged.pdf")
	if err := api.MergeCreateFile(paths, out, false, pdfConfig()); err != nil {
		return Result{}, errs.Wrap(errs.CodeConversion, err, "failed to merge PDFs")
	}

	pages, err := api.PageCountFile(out)
	if err != nil {
		return Result{}, errs.Wrap(errs.CodeConversion, err, "merged PDF is unreadable")
	}

	f, err := storedPDF(out, "merged.pdf")
	if err != nil {
		return Result{}, err
	}
	return Result{Files: []job.StoredFile{f}, Pages: pages}, nil
}

// splitPDF extracts the selected pages into a new document.
type splitPDF struct{}

func (s *splitPDF) Operation() job.Operation { return job.OpSplitPDF }

func (s *splitPDF) ValidateOptions(o *job.Options) error {
	if len(o.Pages) == 0 {
		return errs.New(errs.CodeValidation, "no pages selected for extraction")
	}
	for _, p := range o.Pages {
		if p < 1 {
			return errs.New(errs.CodeValidation, "invalid page number: %d", p)
		}
	}
	if o.Quality != "" || o.Level != "" || o.PageSize != "" || o.Orientation != "" {
		return errs.New(errs.CodeValidation, "unexpected option for %s", s.Operation())
	}
	return nil
}

func (s *splitPDF) ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error) {
	total, err := api.PageCountFile(input.Path)
	if err != nil {
		return Result{}, errs.Wrap(errs.CodeConversion, err, "failed to read %s", input.Name)
	}

	// Silently drop out-of-range selections, matching the preview UI which
	// may reference pages from a stale upload.
	var selected []string
	for _, p := range o.Pages {
		if p <= total {
			selected = append(selected, strconv.Itoa(p))
		}
	}
	if len(selected) == 0 {
		return Result{}, errs.New(errs.CodeValidation, "no valid pages to extract from %s (%d pages)", input.Name, total)
	}

	base := strings.TrimSuffix(input.Name, filepath.Ext(input.Name))
	name := "split-" + base + ".pdf"
	out := filepath.Join(outDir, name)
	if err := api.TrimFile(input.Path, out, selected, pdfConfig()); err != nil {
		return Result{}, errs.Wrap(errs.CodeConversion, err, "failed to extract pages from %s", input.Name)
	}

	f, err := storedPDF(out, name)
	if err != nil {
		return Result{}, err
	}
	return Result{Files: []job.StoredFile{f}, Pages: len(selected)}, nil
}

// imageToPDF places each image on its own page, preserving upload order.
// Image data is embedded as-is, pdfcpu does not recompress JPEG streams.
type imageToPDF struct {
	op job.Operation
}

var pdfPageForms = map[string]string{
	"a4":     "A4",
	"letter": "Letter",
	"legal":  "Legal",
}

func (s *imageToPDF) Operation() job.Operation { return s.op }

func (s *imageToPDF) ValidateOptions(o *job.Options) error {
	if o.PageSize == "" {
		o.PageSize = "a4"
	}
	if o.Orientation == "" {
		o.Orientation = "portrait"
	}
	if _, ok := pdfPageForms[o.PageSize]; !ok && o.PageSize != "fit" {
		return errs.New(errs.CodeValidation, "invalid page size: %s", o.PageSize)
	}
	switch o.Orientation {
	case "portrait", "landscape", "auto":
	default:
		return errs.New(errs.CodeValidation, "invalid orientation: %s", o.Orientation)
	}
	if o.Quality != "" || o.Level != "" || len(o.Pages) > 0 {
		return errs.New(errs.CodeValidation, "unexpected option for %s", s.op)
	}
	return nil
}

func (s *imageToPDF) Combine(ctx context.Context, inputs []job.StoredFile, o job.Options, outDir string) (Result, error) {
	desc := "pos:c, scalefactor:1.0 rel"
	if o.PageSize != "fit" {
		form := pdfPageForms[o.PageSize]
		landscape := o.Orientation == "landscape"
		if o.Orientation == "auto" {
			landscape = firstImageIsLandscape(inputs)
		}
		if landscape {
			form += "L"
		}
		desc = fmt.Sprintf("formsize:%s, pos:c, scalefactor:1.0 rel", form)
	}

	imp, err := api.Import(desc, types.POINTS)
	if err != nil {
		return Result{}, errs.Wrap(errs.CodeConversion, err, "invalid page layout")
	}

	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = in.Path
	}

	out := filepath.Join(outDir, "images-combined.pdf")
	if err := api.ImportImagesFile(paths, out, imp, pdfConfig()); err != nil {
		return Result{}, errs.Wrap(errs.CodeConversion, err, "failed to build PDF from images")
	}

	f, err := storedPDF(out, "images-combined.pdf")
	if err != nil {
		return Result{}, err
	}
	return Result{Files: []job.StoredFile{f}, Pages: len(inputs)}, nil
}

func firstImageIsLandscape(inputs []job.StoredFile) bool {
	if len(inputs) == 0 {
		return false
	}
	f, err := os.Open(inputs[0].Path)
	if err != nil {
		return false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false
	}
	return cfg.Width > cfg.Height
}

func noOptions(o *job.Options) error {
	if o.Quality != "" || o.Level != "" || len(o.Pages) > 0 || o.PageSize != "" || o.Orientation != "" {
		return errs.New(errs.CodeValidation, "operation accepts no options")
	}
	return nil
}
