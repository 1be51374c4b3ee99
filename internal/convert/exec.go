package convert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
)

// runTool executes an external converter with a hard wall-clock budget.
// Arguments are always passed as an argv array, never through a shell, so
// file names cannot inject options or commands. On deadline the process is
// killed and the caller is expected to discard partial output.
func runTool(ctx context.Context, timeout time.Duration, name string, args ...string) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if err == nil {
		return nil
	}

	tool := filepath.Base(name)
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return errs.New(errs.CodeTimeout, "%s exceeded %s time budget", tool, timeout)
	}

	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = err.Error()
	}
	if len(detail) > 500 {
		detail = detail[:500]
	}
	return errs.Wrap(errs.CodeConversion, err, "%s failed: %s", tool, detail)
}
