package tracing

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nm90/educational-mvc-sub001/internal/pkg/logger"
)

// RequestContext collects every record produced while serving one request.
// It is created by Registry.Begin, frozen by Finalize, and dropped by
// Registry.End. Records are append-only; once finalized, further appends
// are ignored.
//
// RequestContext is safe for concurrent use, so business code may fan out
// to goroutines that share the request's context.Context.
type RequestContext struct {
	mtx sync.Mutex

	id    string
	start time.Time
	end   time.Time
	snap  *snapshotter

	calls   []CallRecord
	queries []QueryRecord
	view    map[string]json.RawMessage
	info    RequestInfo

	finalized bool
	released  bool
}

func newRequestContext(id string, info RequestInfo, snap *snapshotter) *RequestContext {
	return &RequestContext{
		id:      id,
		start:   time.Now(),
		snap:    snap,
		calls:   []CallRecord{},
		queries: []QueryRecord{},
		info:    info,
	}
}

// ID returns the request ID. It is immutable.
func (rc *RequestContext) ID() string {
	return rc.id
}

// Started returns the time the request began.
func (rc *RequestContext) Started() time.Time {
	return rc.start
}

// Info returns the request metadata recorded so far.
func (rc *RequestContext) Info() RequestInfo {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	return rc.info
}

// SetRequestInfo replaces the request metadata. It has no effect once the
// context is finalized.
func (rc *RequestContext) SetRequestInfo(info RequestInfo) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.finalized {
		return
	}
	rc.info = info
}

// SetStatus records the response status code.
func (rc *RequestContext) SetStatus(code int) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.finalized {
		return
	}
	rc.info.StatusCode = code
}

// SetController names the controller that handled the request.
func (rc *RequestContext) SetController(name string) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.finalized {
		return
	}
	rc.info.Controller = name
}

// Calls returns a copy of the call records, in completion order.
func (rc *RequestContext) Calls() []CallRecord {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	return append([]CallRecord(nil), rc.calls...)
}

// Queries returns a copy of the query records, in completion order.
func (rc *RequestContext) Queries() []QueryRecord {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	return append([]QueryRecord(nil), rc.queries...)
}

// View returns the view snapshot and whether one was recorded.
func (rc *RequestContext) View() (map[string]json.RawMessage, bool) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.view == nil {
		return map[string]json.RawMessage{}, false
	}
	out := make(map[string]json.RawMessage, len(rc.view))
	for k, v := range rc.view {
		out[k] = v
	}
	return out, true
}

// Finalize marks the end of the request and freezes the context. Only the
// first call has an effect.
func (rc *RequestContext) Finalize() {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	rc.finalizeLocked()
}

func (rc *RequestContext) finalizeLocked() {
	if rc.finalized {
		return
	}
	rc.finalized = true
	rc.end = time.Now()
}

// Finalized reports whether Finalize has been called.
func (rc *RequestContext) Finalized() bool {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	return rc.finalized
}

// Released reports whether the registry has released the context.
func (rc *RequestContext) Released() bool {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	return rc.released
}

func (rc *RequestContext) appendCall(cr CallRecord) bool {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.finalized || rc.released {
		return false
	}
	rc.calls = append(rc.calls, cr)
	return true
}

func (rc *RequestContext) appendQuery(qr QueryRecord) bool {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.finalized || rc.released {
		return false
	}
	rc.queries = append(rc.queries, qr)
	return true
}

func (rc *RequestContext) setView(view map[string]json.RawMessage) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.finalized || rc.released {
		return
	}
	if rc.view != nil {
		logger.Warn("view snapshot overwritten",
			"request_id", rc.id,
			"path", rc.info.Path,
			"previous_keys", len(rc.view),
			"keys", len(view),
		)
	}
	rc.view = view
}

func (rc *RequestContext) release() bool {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()

	if rc.released {
		return false
	}
	rc.finalizeLocked()
	rc.released = true
	rc.calls, rc.queries, rc.view = nil, nil, nil
	return true
}
