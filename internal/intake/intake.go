// Package intake validates and stages uploaded files before a job exists.
package intake

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

const MB = int64(1 << 20)

// Limits define per-operation upload constraints.
type Limits struct {
	MinFiles int
	MaxFiles int
	MaxBytes int64
	Exts     []string
}

var opLimits = map[job.Operation]Limits{
	job.OpMergePDF:      {MinFiles: 2, MaxFiles: 20, MaxBytes: 100 * MB, Exts: []string{".pdf"}},
	job.OpSplitPDF:      {MinFiles: 1, MaxFiles: 1, MaxBytes: 100 * MB, Exts: []string{".pdf"}},
	job.OpCompressPDF:   {MinFiles: 1, MaxFiles: 10, MaxBytes: 100 * MB, Exts: []string{".pdf"}},
	job.OpCompressImage: {MinFiles: 1, MaxFiles: 50, MaxBytes: 50 * MB, Exts: []string{".jpg", ".jpeg", ".png", ".webp"}},
	job.OpPDFToJPG:      {MinFiles: 1, MaxFiles: 1, MaxBytes: 100 * MB, Exts: []string{".pdf"}},
	job.OpPDFToPNG:      {MinFiles: 1, MaxFiles: 1, MaxBytes: 100 * MB, Exts: []string{".pdf"}},
	job.OpJPGToPDF:      {MinFiles: 1, MaxFiles: 20, MaxBytes: 50 * MB, Exts: []string{".jpg", ".jpeg"}},
	job.OpPNGToPDF:      {MinFiles: 1, MaxFiles: 50, MaxBytes: 50 * MB, Exts: []string{".png"}},
	job.OpWebpToPNG:     {MinFiles: 1, MaxFiles: 20, MaxBytes: 50 * MB, Exts: []string{".webp"}},
	job.OpPNGToWebp:     {MinFiles: 1, MaxFiles: 20, MaxBytes: 50 * MB, Exts: []string{".png"}},
	job.OpWordToPDF:     {MinFiles: 1, MaxFiles: 1, MaxBytes: 50 * MB, Exts: []string{".doc", ".docx"}},
}

// extMIMEs lists the sniffed content types acceptable for each extension.
// DOCX detects as a zip container on some generators, DOC as OLE storage.
var extMIMEs = map[string][]string{
	".pdf":  {"application/pdf"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".webp": {"image/webp"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
}

// executableMagic blocks binaries renamed to an allowed extension.
var executableMagic = [][]byte{
	{0x4D, 0x5A},             // PE
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O 32
	{0xFE, 0xED, 0xFA, 0xCF}, // Mach-O 64
	{0xCA, 0xFE, 0xBA, 0xBE}, // Mach-O fat
}

// LimitsFor returns the constraints for op, or false for unknown operations.
func LimitsFor(op job.Operation) (Limits, bool) {
	l, ok := opLimits[op]
	return l, ok
}

type Intake struct {
	uploadDir string
}

func New(uploadDir string) (*Intake, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Intake{uploadDir: uploadDir}, nil
}

// Accept validates every file against the operation's limits and stages the
// batch under collision-free paths. Either all files are staged or none:
// on any rejection the already-written files are removed before returning.
func (in *Intake) Accept(headers []*multipart.FileHeader, op job.Operation) ([]job.StoredFile, error) {
	limits, ok := LimitsFor(op)
	if !ok {
		return nil, errs.New(errs.CodeValidation, "unsupported operation: %s", op)
	}

	if len(headers) < limits.MinFiles {
		if limits.MinFiles == 1 {
			return nil, errs.New(errs.CodeValidation, "no files uploaded")
		}
		return nil, errs.New(errs.CodeValidation, "at least %d files required for %s", limits.MinFiles, op)
	}
	if len(headers) > limits.MaxFiles {
		return nil, errs.New(errs.CodeValidation, "too many files: %d exceeds the %d file limit for %s", len(headers), limits.MaxFiles, op)
	}

	stored := make([]job.StoredFile, 0, len(headers))
	for _, h := range headers {
		sf, err := in.acceptOne(h, limits)
		if err != nil {
			discard(stored)
			return nil, err
		}
		stored = append(stored, sf)
	}
	return stored, nil
}

func (in *Intake) acceptOne(h *multipart.FileHeader, limits Limits) (job.StoredFile, error) {
	name := filepath.Base(h.Filename)

	if h.Size > limits.MaxBytes {
		return job.StoredFile{}, errs.New(errs.CodeValidation, "%s exceeds the %d MB size limit", name, limits.MaxBytes/MB)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !contains(limits.Exts, ext) {
		return job.StoredFile{}, errs.New(errs.CodeValidation, "invalid file type for this operation: %s", ext)
	}

	src, err := h.Open()
	if err != nil {
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "failed to read upload %s", name)
	}
	defer src.Close()

	header := make([]byte, 512)
	n, err := io.ReadFull(src, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "failed to read upload %s", name)
	}
	header = header[:n]

	for _, magic := range executableMagic {
		if bytes.HasPrefix(header, magic) {
			return job.StoredFile{}, errs.New(errs.CodeValidation, "%s looks like an executable and was blocked", name)
		}
	}

	sniffed := mimetype.Detect(header)
	if !matchesExt(sniffed, ext) {
		return job.StoredFile{}, errs.New(errs.CodeValidation,
			"%s claims to be %s but its content is %s", name, ext, sniffed.String())
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "failed to rewind upload %s", name)
	}

	path := filepath.Join(in.uploadDir, uuid.New().String()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "failed to stage upload")
	}
	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "failed to stage upload")
	}

	return job.StoredFile{
		Name: name,
		Size: written,
		MIME: sniffed.String(),
		Path: path,
	}, nil
}

func matchesExt(m *mimetype.MIME, ext string) bool {
	for _, accepted := range extMIMEs[ext] {
		if m.Is(accepted) {
			return true
		}
	}
	// mimetype resolves container formats to their most specific type, so
	// also walk the parents (docx → zip, doc → ole).
	for p := m.Parent(); p != nil; p = p.Parent() {
		for _, accepted := range extMIMEs[ext] {
			if p.Is(accepted) {
				return true
			}
		}
	}
	return false
}

func discard(files []job.StoredFile) {
	for _, f := range files {
		os.Remove(f.Path)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
