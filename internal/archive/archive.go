// Package archive bundles multi-file job outputs into a single zip.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// Build writes files into a zip at path, prefixing each member with its
// position so extraction order matches input order. Callers must only
// invoke this once every per-file conversion has succeeded.
func Build(path string, files []job.StoredFile) error {
	out, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, err, "failed to create archive")
	}

	zw := zip.NewWriter(out)
	for i, f := range files {
		if err := addMember(zw, fmt.Sprintf("%03d-%s", i+1, f.Name), f.Path); err != nil {
			zw.Close()
			out.Close()
			os.Remove(path)
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(path)
		return errs.Wrap(errs.CodeStorage, err, "failed to finalize archive")
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return errs.Wrap(errs.CodeStorage, err, "failed to flush archive")
	}
	return nil
}

func addMember(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, err, "failed to read output %s", name)
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, err, "failed to add %s to archive", name)
	}
	if _, err := io.Copy(w, src); err != nil {
		return errs.Wrap(errs.CodeStorage, err, "failed to write %s to archive", name)
	}
	return nil
}
