package handler

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
	"github.com/mani-django09/smallpdf.us-sub000/internal/pdfinfo"
)

// Download streams the finished artifact as an attachment. Expired jobs
// answer 410 so the frontend can distinguish "gone" from "never existed".
func (h *Handler) Download(c *gin.Context) {
	id := c.Param("jobId")

	j, err := h.store.Get(id)
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	if j.Status == job.StatusExpired || j.Expired(time.Now()) {
		h.respondError(c, j.ID, errs.New(errs.CodeExpired, "this download has expired"))
		return
	}

	path, filename, ok := j.DownloadPath()
	if !ok {
		h.respondError(c, j.ID, errs.New(errs.CodeNotFound, "no downloadable result for this job"))
		return
	}

	h.logEvent(c, "download", string(j.Operation)+"_downloaded", "success", map[string]string{
		"jobId": j.ID,
		"file":  filename,
	})
	c.FileAttachment(path, filename)
}

// JobStatus reports the persisted state of a job for polling clients.
func (h *Handler) JobStatus(c *gin.Context) {
	j, err := h.store.Get(c.Param("jobId"))
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	resp := gin.H{
		"jobId":     j.ID,
		"operation": j.Operation,
		"status":    j.Status,
		"fileCount": len(j.Outputs),
		"createdAt": j.CreatedAt,
		"expiresAt": j.ExpiresAt,
	}
	if j.PageCount > 0 {
		resp["pageCount"] = j.PageCount
	}
	if j.Status == job.StatusSucceeded {
		resp["downloadUrl"] = "/api/download/" + j.ID
	}
	if j.Error != nil {
		resp["error"] = j.Error.Message
	}
	c.JSON(http.StatusOK, resp)
}

// AnalyzePDF inspects an uploaded PDF (page count, extractable text)
// without creating a job. The staged file is removed before responding.
func (h *Handler) AnalyzePDF(c *gin.Context) {
	headers, err := formFiles(c)
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	// Same constraints as the single-PDF tools: one file, 100 MB.
	inputs, err := h.intake.Accept(headers, job.OpSplitPDF)
	if err != nil {
		h.respondError(c, "", err)
		return
	}
	defer func() {
		for _, f := range inputs {
			os.Remove(f.Path)
		}
	}()

	report, err := pdfinfo.Analyze(inputs[0].Path)
	if err != nil {
		h.respondError(c, "", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"fileName":  inputs[0].Name,
		"pageCount": report.PageCount,
		"hasText":   report.HasText,
		"wordCount": report.WordCount,
	})
}

// WebSocket upgrades the connection and parks it on the hub until the
// client goes away. Clients only listen; inbound frames are drained to
// detect disconnects.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	h.hub.RegisterClient(conn)
	go func() {
		defer h.hub.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
