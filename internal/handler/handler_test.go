package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mani-django09/smallpdf.us-sub000/internal/activity"
	"github.com/mani-django09/smallpdf.us-sub000/internal/convert"
	"github.com/mani-django09/smallpdf.us-sub000/internal/dispatch"
	"github.com/mani-django09/smallpdf.us-sub000/internal/handler"
	"github.com/mani-django09/smallpdf.us-sub000/internal/intake"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
	"github.com/mani-django09/smallpdf.us-sub000/internal/server"
	"github.com/mani-django09/smallpdf.us-sub000/internal/ws"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := job.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	in, err := intake.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	registry := convert.NewRegistry(convert.Tools{Ghostscript: "gs", LibreOffice: "soffice"})
	dispatcher, err := dispatch.New(store, registry, t.TempDir(), 2, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	hub.Start(ctx)
	store.SetNotifier(hub.BroadcastJobUpdate)

	h := handler.New(in, registry, dispatcher, store, activity.Nop{}, hub, time.Hour)
	return server.NewServer(h, registry.Operations())
}

func multipartBody(t *testing.T, field string, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 30, 20))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func doJSON(t *testing.T, g *gin.Engine, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("non-JSON response (%d): %s", rec.Code, rec.Body.String())
	}
	return rec.Code, payload
}

func TestConvertEndToEnd(t *testing.T) {
	g := newTestServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"a.png": pngFile(t),
		"b.png": pngFile(t),
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/png-to-webp", body)
	req.Header.Set("Content-Type", contentType)

	code, payload := doJSON(t, g, req)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, payload)
	}
	if payload["success"] != true {
		t.Fatalf("success = %v", payload["success"])
	}
	if payload["fileCount"].(float64) != 2 {
		t.Errorf("fileCount = %v, want 2", payload["fileCount"])
	}

	downloadURL, _ := payload["downloadUrl"].(string)
	if downloadURL == "" {
		t.Fatal("no download URL returned")
	}

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, downloadURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" {
		t.Error("download served without attachment disposition")
	}
	// Two outputs are bundled, the artifact must be a zip.
	if got := rec.Body.Bytes(); len(got) < 4 || string(got[:2]) != "PK" {
		t.Error("bundled download is not a zip archive")
	}

	jobID, _ := payload["jobId"].(string)
	code, status := doJSON(t, g, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
	if code != http.StatusOK {
		t.Fatalf("job status = %d", code)
	}
	if status["status"] != string(job.StatusSucceeded) {
		t.Errorf("job state = %v", status["status"])
	}
}

func TestConvertRejectsBadOptions(t *testing.T) {
	g := newTestServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"a.png": pngFile(t),
	}, map[string]string{"quality": "light"})
	req := httptest.NewRequest(http.MethodPost, "/api/png-to-webp", body)
	req.Header.Set("Content-Type", contentType)

	code, payload := doJSON(t, g, req)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if payload["success"] != false {
		t.Errorf("success = %v", payload["success"])
	}
}

func TestConvertRejectsEmptyForm(t *testing.T) {
	g := newTestServer(t)

	body, contentType := multipartBody(t, "files", nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/merge-pdf", body)
	req.Header.Set("Content-Type", contentType)

	code, _ := doJSON(t, g, req)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestDownloadUnknownJob(t *testing.T) {
	g := newTestServer(t)
	code, _ := doJSON(t, g, httptest.NewRequest(http.MethodGet, "/api/download/nope", nil))
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestSingleFileFieldFallback(t *testing.T) {
	g := newTestServer(t)

	body, contentType := multipartBody(t, "file", map[string][]byte{
		"only.png": pngFile(t),
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/png-to-webp", body)
	req.Header.Set("Content-Type", contentType)

	code, payload := doJSON(t, g, req)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, payload)
	}
	if payload["fileCount"].(float64) != 1 {
		t.Errorf("fileCount = %v", payload["fileCount"])
	}
}

func TestHealth(t *testing.T) {
	g := newTestServer(t)
	code, payload := doJSON(t, g, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if code != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("health = %d %v", code, payload)
	}
}
