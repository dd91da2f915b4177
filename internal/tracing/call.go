package tracing

import (
	"fmt"
	"strings"
	"time"

	"github.com/nm90/educational-mvc-sub001/internal/pkg/metrics"
)

// KindPanic is the ErrorInfo kind of a call that panicked.
const KindPanic = "panic"

// errorKinder lets an error name its own kind in a call record instead of
// its Go type.
type errorKinder interface {
	ErrorKind() string
}

// callScope spans one wrapped invocation. A nil scope means there was no
// active request; all of its methods are no-ops.
type callScope struct {
	rc    *RequestContext
	name  string
	args  Arguments
	start time.Time
}

// enterCall snapshots the arguments and starts the clock. Arguments are
// captured before the operation runs so later mutation doesn't leak into
// the record.
func enterCall(rc *RequestContext, ok bool, name string, positional []any, keyword map[string]any) *callScope {
	if !ok {
		return nil
	}
	return &callScope{
		rc:   rc,
		name: name,
		args: Arguments{
			Positional: rc.snap.values(positional),
			Keyword:    rc.snap.mapping(keyword),
		},
		start: time.Now(),
	}
}

func (s *callScope) exit(result any, err error) {
	if s == nil {
		return
	}
	cr := s.record()
	outcome := "ok"
	if err != nil {
		cr.Raised = &ErrorInfo{Kind: errorKind(err), Message: errorText(err)}
		outcome = "error"
	} else {
		cr.Result = s.rc.snap.value(result)
	}
	s.commit(cr, outcome)
}

// recoverPanic must be deferred directly. It records the panic and panics
// again with the same value.
func (s *callScope) recoverPanic() {
	if s == nil {
		return
	}
	if v := recover(); v != nil {
		cr := s.record()
		cr.Raised = &ErrorInfo{Kind: KindPanic, Message: s.rc.snap.truncate(fmt.Sprint(v))}
		s.commit(cr, KindPanic)
		panic(v)
	}
}

func (s *callScope) record() CallRecord {
	return CallRecord{
		QualifiedName: s.name,
		Arguments:     s.args,
		DurationMS:    millis(time.Since(s.start)),
		StartedAt:     unixSeconds(s.start),
	}
}

func (s *callScope) commit(cr CallRecord, outcome string) {
	if s.rc.appendCall(cr) {
		metrics.TracedCalls.WithLabelValues(outcome).Inc()
	}
}

func errorKind(err error) string {
	if k, ok := err.(errorKinder); ok {
		if kind := k.ErrorKind(); kind != "" {
			return kind
		}
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
