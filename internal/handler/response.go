package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/apperrors"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

// DebugKey is the JSON envelope field carrying the request trace.
const DebugKey = "__DEBUG__"

// WantsJSON reports whether the client asked for JSON instead of a page.
func WantsJSON(c *gin.Context) bool {
	if c.Query("format") == "json" || c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// Presenter writes pages and JSON envelopes. Pages record their template
// data as the view snapshot; envelopes carry the trace recorded so far.
type Presenter struct {
	embedTrace bool
}

func NewPresenter(cfg config.TracingConfig) Presenter {
	return Presenter{embedTrace: cfg.Enabled && cfg.EmbedJSON}
}

// Render executes the named template with data.
func (p Presenter) Render(c *gin.Context, status int, name string, data gin.H) {
	tracing.RecordView(c.Request.Context(), data)
	c.HTML(status, name, data)
}

// JSON writes {"success": true, "data": data}.
func (p Presenter) JSON(c *gin.Context, status int, data any) {
	body := gin.H{"success": true, "data": data}
	p.attachTrace(c, status, body)
	c.JSON(status, body)
}

// Done finishes a mutating request. JSON clients get the envelope with the
// follow-up location; browsers are sent there with 303 See Other.
func (p Presenter) Done(c *gin.Context, status int, data any, location string) {
	if !WantsJSON(c) {
		c.Redirect(http.StatusSeeOther, location)
		return
	}
	body := gin.H{"success": true, "data": data, "redirect": location}
	p.attachTrace(c, status, body)
	c.JSON(status, body)
}

// Fail is the error responder installed in middleware.ErrorHandler.
func (p Presenter) Fail(c *gin.Context, appErr *apperrors.AppError) {
	if WantsJSON(c) {
		body := gin.H{"success": false, "error": appErr}
		p.attachTrace(c, appErr.HTTPStatus, body)
		c.JSON(appErr.HTTPStatus, body)
		return
	}
	p.Render(c, appErr.HTTPStatus, "error.html", gin.H{
		"title":  http.StatusText(appErr.HTTPStatus),
		"status": appErr.HTTPStatus,
		"error":  appErr,
	})
}

func (p Presenter) attachTrace(c *gin.Context, status int, body gin.H) {
	if !p.embedTrace {
		return
	}
	rc, ok := tracing.Current(c.Request.Context())
	if !ok {
		return
	}
	info := rc.Info()
	info.StatusCode = status
	info.ContentType = gin.MIMEJSON + "; charset=utf-8"
	body[DebugKey] = tracing.Snapshot(rc, info)
}

// paramID parses the :id route parameter. On failure it attaches an
// invalid-request error to c and returns false.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.NewInvalidRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindError(c *gin.Context, err error) {
	_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, "malformed request body", err))
}
