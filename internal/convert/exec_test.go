package convert

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

func TestRunToolSuccess(t *testing.T) {
	requireTool(t, "true")
	if err := runTool(context.Background(), time.Second, "true"); err != nil {
		t.Fatal(err)
	}
}

func TestRunToolTimeout(t *testing.T) {
	requireTool(t, "sleep")
	err := runTool(context.Background(), 50*time.Millisecond, "sleep", "10")
	if err == nil {
		t.Fatal("runaway tool returned no error")
	}
	if errs.CodeOf(err) != errs.CodeTimeout {
		t.Errorf("code = %s, want %s", errs.CodeOf(err), errs.CodeTimeout)
	}
}

func TestRunToolFailure(t *testing.T) {
	requireTool(t, "false")
	err := runTool(context.Background(), time.Second, "false")
	if err == nil {
		t.Fatal("failing tool returned no error")
	}
	if errs.CodeOf(err) != errs.CodeConversion {
		t.Errorf("code = %s, want %s", errs.CodeOf(err), errs.CodeConversion)
	}
}

func TestRunToolTruncatesStderr(t *testing.T) {
	requireTool(t, "sh")
	err := runTool(context.Background(), time.Second, "sh", "-c",
		`head -c 2000 /dev/zero | tr '\0' 'x' >&2; exit 1`)
	if err == nil {
		t.Fatal("failing tool returned no error")
	}
	if msg := errs.MessageOf(err); len(msg) > 600 {
		t.Errorf("stderr not truncated, message is %d bytes", len(msg))
	}
	if !strings.Contains(errs.MessageOf(err), "sh failed") {
		t.Errorf("message does not name the tool: %q", errs.MessageOf(err))
	}
}
