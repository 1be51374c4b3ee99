package handler

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mani-django09/smallpdf.us-sub000/internal/activity"
	"github.com/mani-django09/smallpdf.us-sub000/internal/convert"
	"github.com/mani-django09/smallpdf.us-sub000/internal/dispatch"
	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/intake"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
	"github.com/mani-django09/smallpdf.us-sub000/internal/ws"
)

type Handler struct {
	intake     *intake.Intake
	registry   *convert.Registry
	dispatcher *dispatch.Dispatcher
	store      *job.Store
	activity   activity.Logger
	hub        *ws.Hub
	retention  time.Duration
	upgrader   websocket.Upgrader
}

func New(in *intake.Intake, registry *convert.Registry, dispatcher *dispatch.Dispatcher, store *job.Store, logger activity.Logger, hub *ws.Hub, retention time.Duration) *Handler {
	return &Handler{
		intake:     in,
		registry:   registry,
		dispatcher: dispatcher,
		store:      store,
		activity:   logger,
		hub:        hub,
		retention:  retention,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Convert returns the handler for one operation route. The request blocks
// until the job reaches a terminal state; heavy work runs on dispatcher
// worker slots, not on this goroutine's account.
func (h *Handler) Convert(op job.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		strategy, err := h.registry.Get(op)
		if err != nil {
			h.respondError(c, "", err)
			return
		}

		opts, err := parseOptions(c)
		if err != nil {
			h.respondError(c, "", err)
			return
		}
		if err := strategy.ValidateOptions(&opts); err != nil {
			h.respondError(c, "", err)
			return
		}

		headers, err := formFiles(c)
		if err != nil {
			h.respondError(c, "", err)
			return
		}

		inputs, err := h.intake.Accept(headers, op)
		if err != nil {
			h.logEvent(c, "security", string(op)+"_validation_failed", "blocked", map[string]string{
				"error": errs.MessageOf(err),
			})
			h.respondError(c, "", err)
			return
		}

		j := job.New(op, opts, inputs, h.retention)
		if err := h.store.Put(j); err != nil {
			h.respondError(c, "", err)
			return
		}

		h.logEvent(c, "upload", string(op)+"_uploaded", "processing", map[string]string{
			"jobId":     j.ID,
			"fileCount": strconv.Itoa(len(inputs)),
		})

		final, err := h.dispatcher.Run(c.Request.Context(), j.ID)
		if err != nil {
			h.logEvent(c, "conversion", string(op)+"_failed", "error", map[string]string{
				"jobId": j.ID,
				"error": errs.MessageOf(err),
			})
			h.respondError(c, j.ID, err)
			return
		}

		h.logEvent(c, "conversion", string(op)+"_complete", "success", map[string]string{
			"jobId":     final.ID,
			"fileCount": strconv.Itoa(len(final.Outputs)),
		})

		resp := gin.H{
			"success":     true,
			"jobId":       final.ID,
			"downloadUrl": "/api/download/" + final.ID,
			"fileCount":   len(final.Outputs),
		}
		if final.PageCount > 0 {
			resp["pageCount"] = final.PageCount
		}
		if path, _, ok := final.DownloadPath(); ok {
			if size := fileSize(path); size > 0 {
				resp["fileSize"] = size
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// formFiles accepts the batch field "files" and falls back to the
// single-file field "file" used by the one-document tools.
func formFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errs.New(errs.CodeValidation, "invalid multipart request")
	}
	if files := form.File["files"]; len(files) > 0 {
		return files, nil
	}
	if files := form.File["file"]; len(files) > 0 {
		return files, nil
	}
	return nil, errs.New(errs.CodeValidation, "no files uploaded")
}

func parseOptions(c *gin.Context) (job.Options, error) {
	opts := job.Options{
		Quality:     c.PostForm("quality"),
		Level:       c.PostForm("level"),
		PageSize:    c.PostForm("pageSize"),
		Orientation: c.PostForm("orientation"),
	}
	if raw := c.PostForm("pages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Pages); err != nil {
			return opts, errs.New(errs.CodeValidation, "invalid pages parameter")
		}
	}
	return opts, nil
}

func (h *Handler) respondError(c *gin.Context, jobID string, err error) {
	body := gin.H{
		"success": false,
		"error":   errs.MessageOf(err),
	}
	if jobID != "" {
		body["jobId"] = jobID
	}
	c.JSON(statusFor(errs.CodeOf(err)), body)
}

func statusFor(code errs.Code) int {
	switch code {
	case errs.CodeValidation:
		return http.StatusBadRequest
	case errs.CodeConversion, errs.CodeTimeout:
		return http.StatusUnprocessableEntity
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) logEvent(c *gin.Context, eventType, action, status string, metadata map[string]string) {
	h.activity.Log(activity.Event{
		Type:      eventType,
		Action:    action,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Status:    status,
		Metadata:  metadata,
		At:        time.Now(),
	})
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
