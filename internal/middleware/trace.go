package middleware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/apperrors"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/logger"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/metrics"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

const HeaderRequestID = "X-Request-ID"

// bufferedWriter holds the response back until the handler chain is done,
// so the trace can be embedded into HTML pages. Flush or Hijack switch it
// to pass-through; a streamed response is never modified.
type bufferedWriter struct {
	gin.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
	passthrough bool
}

func newBufferedWriter(w gin.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.passthrough {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	if code > 0 && !w.wroteHeader {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {
	if w.passthrough {
		w.ResponseWriter.WriteHeaderNow()
		return
	}
	w.wroteHeader = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}
	w.wroteHeader = true
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	if w.passthrough {
		return w.ResponseWriter.WriteString(s)
	}
	w.wroteHeader = true
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	if w.passthrough {
		return w.ResponseWriter.Status()
	}
	return w.status
}

func (w *bufferedWriter) Size() int {
	if w.passthrough {
		return w.ResponseWriter.Size()
	}
	if !w.wroteHeader {
		return -1
	}
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	if w.passthrough {
		return w.ResponseWriter.Written()
	}
	return w.wroteHeader
}

func (w *bufferedWriter) Flush() {
	_ = w.commit(nil)
	w.ResponseWriter.Flush()
}

func (w *bufferedWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.passthrough = true
	return w.ResponseWriter.Hijack()
}

// commit sends the status and the buffered body, or replacement when it is
// non-nil, and switches to pass-through. Only the first call writes.
func (w *bufferedWriter) commit(replacement []byte) error {
	if w.passthrough {
		return nil
	}
	w.passthrough = true

	body := w.body.Bytes()
	if replacement != nil {
		body = replacement
		if w.Header().Get("Content-Length") != "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		}
	}

	w.ResponseWriter.WriteHeader(w.status)
	if !w.wroteHeader {
		return nil
	}
	if len(body) == 0 {
		w.ResponseWriter.WriteHeaderNow()
		return nil
	}
	_, err := w.ResponseWriter.Write(body)
	return err
}

// TraceMiddleware records a trace for every request. It begins a
// RequestContext, carries it in the request's context, and once the
// handlers are done embeds the assembled trace into HTML pages before the
// closing body tag. The context is released on every exit path, panics
// included. If anything goes wrong while embedding, the original page is
// sent.
func TraceMiddleware(reg *tracing.Registry, cfg config.TracingConfig) gin.HandlerFunc {
	// A broken template fails every request; keep the log readable.
	failureLog := rate.NewLimiter(rate.Every(10*time.Second), 3)

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		ctx, rc, err := reg.Begin(c.Request.Context(), tracing.RequestInfo{
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
		})
		if err != nil {
			logger.LogError(c.Request.Context(), err, "Failed to begin request trace",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			appErr := apperrors.New(apperrors.ErrInternal, "request tracking unavailable", err)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		original := c.Writer
		var bw *bufferedWriter
		if cfg.InjectHTML {
			bw = newBufferedWriter(original)
			c.Writer = bw
		}
		defer func() {
			c.Writer = original
			reg.End(rc)
		}()

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, rc.ID())

		c.Next()

		info := rc.Info()
		info.StatusCode = c.Writer.Status()
		info.ContentType = c.Writer.Header().Get("Content-Type")

		if bw == nil || bw.passthrough || !shouldInject(info, bw) {
			rc.SetRequestInfo(info)
			rc.Finalize()
			if bw != nil {
				if err := bw.commit(nil); err != nil {
					logger.Debug("response write failed", "request_id", rc.ID(), "error", err.Error())
				}
			}
			return
		}

		body, result := embedTrace(c.Request.Context(), rc, info, bw.body.Bytes(), failureLog)
		metrics.TraceInjections.WithLabelValues(result).Inc()
		if result == tracing.Skipped.String() {
			logger.Debug("No closing body tag, trace not embedded", "request_id", rc.ID(), "path", info.Path)
		}

		var replacement []byte
		if result == tracing.Injected.String() || result == tracing.Replaced.String() {
			replacement = body
		}
		if err := bw.commit(replacement); err != nil {
			logger.Debug("response write failed", "request_id", rc.ID(), "error", err.Error())
		}
	}
}

func shouldInject(info tracing.RequestInfo, bw *bufferedWriter) bool {
	if info.StatusCode >= 300 && info.StatusCode < 400 {
		return false
	}
	return bw.body.Len() > 0 && tracing.IsDocument(info.ContentType)
}

// embedTrace assembles the trace and injects it into body. It never panics
// and never fails: on any error it returns body unchanged with result
// "failed".
func embedTrace(ctx context.Context, rc *tracing.RequestContext, info tracing.RequestInfo, body []byte, limiter *rate.Limiter) (out []byte, result string) {
	fail := func(err error) {
		out, result = body, "failed"
		if limiter.Allow() {
			logger.LogError(ctx, err, "Failed to embed request trace",
				"request_id", rc.ID(),
				"path", info.Path,
			)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	trace := tracing.Assemble(rc, info)
	injected, res, err := tracing.Inject(body, trace)
	if err != nil {
		fail(err)
		return out, result
	}
	return injected, res.String()
}

// Controller wraps a route handler so the controller shows up in the trace:
// as request_info.controller and as the outermost call, recorded last. The
// handler's last gin error, if any, is recorded as the call's failure.
func Controller(name string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if rc, ok := tracing.Current(ctx); ok {
			rc.SetController(name)
		}

		run := tracing.Wrap1(name, func(_ context.Context, params map[string]string) (int, error) {
			before := len(c.Errors)
			h(c)
			if len(c.Errors) > before {
				return c.Writer.Status(), c.Errors.Last().Err
			}
			return c.Writer.Status(), nil
		})
		_, _ = run(ctx, routeParams(c))
	}
}

func routeParams(c *gin.Context) map[string]string {
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}
	return params
}
