package tracing

import (
	"encoding/json"
	"time"
)

// Trace is the serializable summary of one request, embedded in responses
// as window.__DEBUG__.
type Trace struct {
	RequestID   string                     `json:"request_id"`
	MethodCalls []CallRecord               `json:"method_calls"`
	DBQueries   []QueryRecord              `json:"db_queries"`
	Timing      Timing                     `json:"timing"`
	ViewData    map[string]json.RawMessage `json:"view_data"`
	RequestInfo RequestInfo                `json:"request_info"`
}

// Assemble finalizes rc, records info as its request metadata and builds
// the trace. It never fails: a snapshot that is somehow not valid JSON is
// replaced with its text.
func Assemble(rc *RequestContext, info RequestInfo) *Trace {
	rc.mtx.Lock()
	if !rc.finalized {
		rc.info = info
	}
	rc.finalizeLocked()
	t := rc.buildLocked(rc.info, rc.end)
	rc.mtx.Unlock()

	t.sanitize(rc.snap)
	return t
}

// Snapshot builds the trace recorded so far without finalizing rc; the
// request end is taken as now. JSON responses embed it while the request
// is still being served.
func Snapshot(rc *RequestContext, info RequestInfo) *Trace {
	rc.mtx.Lock()
	end := rc.end
	if !rc.finalized {
		end = time.Now()
	} else {
		info = rc.info
	}
	t := rc.buildLocked(info, end)
	rc.mtx.Unlock()

	t.sanitize(rc.snap)
	return t
}

func (rc *RequestContext) buildLocked(info RequestInfo, end time.Time) *Trace {
	t := &Trace{
		RequestID:   rc.id,
		MethodCalls: make([]CallRecord, len(rc.calls)),
		DBQueries:   make([]QueryRecord, len(rc.queries)),
		Timing: Timing{
			RequestStart: unixSeconds(rc.start),
			RequestEnd:   unixSeconds(end),
			DurationMS:   millis(end.Sub(rc.start)),
		},
		ViewData:    make(map[string]json.RawMessage, len(rc.view)),
		RequestInfo: info,
	}
	copy(t.MethodCalls, rc.calls)
	copy(t.DBQueries, rc.queries)
	for k, v := range rc.view {
		t.ViewData[k] = v
	}
	return t
}

func (t *Trace) sanitize(snap *snapshotter) {
	for i := range t.MethodCalls {
		c := &t.MethodCalls[i]
		c.Arguments = Arguments{
			Positional: validList(snap, c.Arguments.Positional),
			Keyword:    validMap(snap, c.Arguments.Keyword),
		}
		if c.Raised == nil {
			c.Result = valid(snap, c.Result)
		}
	}
	for i := range t.DBQueries {
		q := &t.DBQueries[i]
		q.Parameters = validList(snap, q.Parameters)
	}
	t.ViewData = validMap(snap, t.ViewData)
}

func valid(snap *snapshotter, raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	if !json.Valid(raw) {
		return snap.text(string(raw))
	}
	return raw
}

func validList(snap *snapshotter, raws []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(raws))
	for i, raw := range raws {
		out[i] = valid(snap, raw)
	}
	return out
}

func validMap(snap *snapshotter, raws map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(raws))
	for k, raw := range raws {
		out[k] = valid(snap, raw)
	}
	return out
}

// JSON encodes the trace. Characters significant to HTML are escaped, so
// the output is safe to place inside a script element.
func (t *Trace) JSON() ([]byte, error) {
	return json.Marshal(t)
}
