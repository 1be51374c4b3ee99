package pdfinfo

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
)

func imagePDF(t *testing.T, pages int) string {
	t.Helper()
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "page.png")
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 40, 40))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	imp, err := api.Import("formsize:A4, pos:c", types.POINTS)
	if err != nil {
		t.Fatal(err)
	}
	paths := make([]string, pages)
	for i := range paths {
		paths[i] = imgPath
	}
	out := filepath.Join(dir, "doc.pdf")
	if err := api.ImportImagesFile(paths, out, imp, nil); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestAnalyzeImagePDF(t *testing.T) {
	report, err := Analyze(imagePDF(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if report.PageCount != 2 {
		t.Errorf("page count = %d, want 2", report.PageCount)
	}
	if report.HasText {
		t.Error("image-only PDF reported as having text")
	}
}

func TestAnalyzeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Analyze(path)
	if err == nil {
		t.Fatal("garbage analyzed")
	}
	if errs.CodeOf(err) != errs.CodeConversion {
		t.Errorf("code = %s, want %s", errs.CodeOf(err), errs.CodeConversion)
	}
}
