package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

const gsTimeout = 120 * time.Second

// gsCompressionSettings maps a compression level to Ghostscript presets.
var gsCompressionSettings = map[string]struct {
	preset string
	dpi    int
}{
	"maximum":  {"/screen", 300},
	"balanced": {"/ebook", 150},
	"extreme":  {"/screen", 72},
}

// compressPDF rewrites a PDF through Ghostscript with downsampled images.
type compressPDF struct {
	gs string
}

func (s *compressPDF) Operation() job.Operation { return job.OpCompressPDF }

func (s *compressPDF) ValidateOptions(o *job.Options) error {
	if o.Level == "" {
		o.Level = "balanced"
	}
	if _, ok := gsCompressionSettings[o.Level]; !ok {
		return errs.New(errs.CodeValidation, "invalid compression level: %s", o.Level)
	}
	if o.Quality != "" || len(o.Pages) > 0 || o.PageSize != "" || o.Orientation != "" {
		return errs.New(errs.CodeValidation, "unexpected option for %s", s.Operation())
	}
	return nil
}

func (s *compressPDF) ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error) {
	settings := gsCompressionSettings[o.Level]
	name := "compressed-" + input.Name
	out := filepath.Join(outDir, name)

	res := strconv.Itoa(settings.dpi)
	err := runTool(ctx, gsTimeout, s.gs,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS="+settings.preset,
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-dDownsampleColorImages=true", "-dColorImageResolution="+res,
		"-dDownsampleGrayImages=true", "-dGrayImageResolution="+res,
		"-dDownsampleMonoImages=true", "-dMonoImageResolution="+res,
		"-sOutputFile="+out,
		input.Path,
	)
	if err != nil {
		os.Remove(out)
		return Result{}, err
	}

	f, err := storedPDF(out, name)
	if err != nil {
		return Result{}, err
	}
	return Result{Files: []job.StoredFile{f}}, nil
}

// rasterizePDF renders each page to an image via Ghostscript.
type rasterizePDF struct {
	op job.Operation
	gs string
}

var rasterDPI = map[string]int{
	"standard": 150,
	"high":     300,
	"maximum":  600,
}

func (s *rasterizePDF) Operation() job.Operation { return s.op }

func (s *rasterizePDF) ValidateOptions(o *job.Options) error {
	if o.Quality == "" {
		o.Quality = "standard"
	}
	if _, ok := rasterDPI[o.Quality]; !ok {
		return errs.New(errs.CodeValidation, "invalid quality: %s", o.Quality)
	}
	if o.Level != "" || len(o.Pages) > 0 || o.PageSize != "" || o.Orientation != "" {
		return errs.New(errs.CodeValidation, "unexpected option for %s", s.op)
	}
	return nil
}

func (s *rasterizePDF) ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error) {
	device, ext, mime := "png16m", ".png", "image/png"
	extraArgs := []string{}
	if s.op == job.OpPDFToJPG {
		device, ext, mime = "jpeg", ".jpg", "image/jpeg"
		extraArgs = append(extraArgs, "-dJPEGQ=95")
	}

	// The on-disk template comes from the staged basename: a client name
	// like "report[1].pdf" would poison the glob below, and a "%" would
	// corrupt Ghostscript's %d expansion. The client name only surfaces in
	// the user-facing output names.
	diskBase := strings.TrimSuffix(filepath.Base(input.Path), filepath.Ext(input.Path))
	userBase := strings.TrimSuffix(input.Name, filepath.Ext(input.Name))
	pattern := filepath.Join(outDir, diskBase+"-page-%d"+ext)

	args := []string{
		"-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=" + device,
		"-r" + strconv.Itoa(rasterDPI[o.Quality]),
	}
	args = append(args, extraArgs...)
	args = append(args, "-sOutputFile="+pattern, input.Path)

	if err := runTool(ctx, gsTimeout, s.gs, args...); err != nil {
		removePages(outDir, diskBase, ext)
		return Result{}, err
	}

	files, err := collectPages(outDir, diskBase, userBase, ext, mime)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, errs.New(errs.CodeConversion, "%s produced no pages", input.Name)
	}
	return Result{Files: files, Pages: len(files)}, nil
}

var pageNumRe = regexp.MustCompile(`-page-(\d+)\.[a-z]+$`)

// collectPages gathers the numbered page images Ghostscript wrote under the
// diskBase template and returns them in page order regardless of directory
// listing order, renamed after the client's file for download.
func collectPages(dir, diskBase, userBase, ext, mime string) ([]job.StoredFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, diskBase+"-page-*"+ext))
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, err, "failed to list rendered pages")
	}

	sort.Slice(matches, func(i, j int) bool {
		return pageNum(matches[i]) < pageNum(matches[j])
	})

	var files []job.StoredFile
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, errs.Wrap(errs.CodeStorage, err, "rendered page missing")
		}
		files = append(files, job.StoredFile{
			Name: fmt.Sprintf("%s-page-%d%s", userBase, pageNum(m), ext),
			Size: info.Size(),
			MIME: mime,
			Path: m,
		})
	}
	return files, nil
}

func pageNum(path string) int {
	m := pageNumRe.FindStringSubmatch(path)
	if len(m) != 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func removePages(dir, base, ext string) {
	matches, _ := filepath.Glob(filepath.Join(dir, base+"-page-*"+ext))
	for _, m := range matches {
		os.Remove(m)
	}
}

// wordToPDF shells out to LibreOffice in headless mode.
type wordToPDF struct {
	soffice string
}

const sofficeTimeout = 60 * time.Second

func (s *wordToPDF) Operation() job.Operation { return job.OpWordToPDF }

func (s *wordToPDF) ValidateOptions(o *job.Options) error {
	return noOptions(o)
}

func (s *wordToPDF) ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error) {
	err := runTool(ctx, sofficeTimeout, s.soffice,
		"--headless",
		"--convert-to", "pdf:writer_pdf_Export",
		"--outdir", outDir,
		input.Path,
	)
	if err != nil {
		return Result{}, err
	}

	// LibreOffice names the output after the input file.
	stem := strings.TrimSuffix(filepath.Base(input.Path), filepath.Ext(input.Path))
	produced := filepath.Join(outDir, stem+".pdf")
	if _, statErr := os.Stat(produced); statErr != nil {
		return Result{}, errs.New(errs.CodeConversion, "PDF was not produced for %s, the document may be corrupt", input.Name)
	}

	name := strings.TrimSuffix(input.Name, filepath.Ext(input.Name)) + ".pdf"
	final := filepath.Join(outDir, name)
	if produced != final {
		if err := os.Rename(produced, final); err != nil {
			return Result{}, errs.Wrap(errs.CodeStorage, err, "failed to move converted PDF")
		}
	}

	f, err := storedPDF(final, name)
	if err != nil {
		return Result{}, err
	}

	pages, err := pdfPageCount(final)
	if err != nil {
		pages = 0
	}
	return Result{Files: []job.StoredFile{f}, Pages: pages}, nil
}
