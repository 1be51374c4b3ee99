package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

func stage(t *testing.T, dir, name, content string) job.StoredFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return job.StoredFile{Name: name, Path: path, Size: int64(len(content))}
}

func TestBuildPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	files := []job.StoredFile{
		stage(t, dir, "zeta.jpg", "first uploaded"),
		stage(t, dir, "alpha.jpg", "second uploaded"),
		stage(t, dir, "mid.jpg", "third uploaded"),
	}

	path := filepath.Join(dir, "bundle.zip")
	if err := Build(path, files); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	want := []string{"001-zeta.jpg", "002-alpha.jpg", "003-mid.jpg"}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d members, want %d", len(zr.File), len(want))
	}
	for i, member := range zr.File {
		if member.Name != want[i] {
			t.Errorf("member %d = %s, want %s", i, member.Name, want[i])
		}
	}

	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "second uploaded" {
		t.Errorf("member content = %q", data)
	}
}

func TestBuildCleansUpOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	files := []job.StoredFile{
		stage(t, dir, "ok.png", "fine"),
		{Name: "gone.png", Path: filepath.Join(dir, "gone.png")},
	}

	path := filepath.Join(dir, "bundle.zip")
	if err := Build(path, files); err == nil {
		t.Fatal("archive built from missing file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("partial archive left on disk")
	}
}
