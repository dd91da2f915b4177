package tracing

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nm90/educational-mvc-sub001/internal/pkg/metrics"
)

// QueryFunc is a data-access execution primitive. It runs query with args,
// scanning into dest when dest is non-nil, and returns the number of rows
// read or, for writes, affected.
type QueryFunc func(ctx context.Context, dest any, query string, args ...any) (int64, error)

// Classifier maps a driver error to a QueryError. Returning nil falls back
// to DefaultClassifier.
type Classifier func(err error) *QueryError

type queryOptions struct {
	classify Classifier
}

type QueryOption func(*queryOptions)

// WithClassifier sets the classifier for errors returned by the wrapped
// primitive.
func WithClassifier(c Classifier) QueryOption {
	return func(o *queryOptions) { o.classify = c }
}

// QueryObservation describes a completed data-access operation observed by
// something other than WrapQuery, such as an ORM callback.
type QueryObservation struct {
	Text     string
	Args     []any
	Start    time.Time
	Duration time.Duration
	Rows     int64
	Err      error
	Classify Classifier
}

// WrapQuery returns fn instrumented so each invocation appends one
// QueryRecord to the active request. Results and errors pass through
// unchanged; outside a request fn runs unobserved.
func WrapQuery(fn QueryFunc, opts ...QueryOption) QueryFunc {
	o := queryOptions{classify: DefaultClassifier}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, dest any, query string, args ...any) (rows int64, err error) {
		rc, ok := Current(ctx)
		if !ok {
			return fn(ctx, dest, query, args...)
		}

		params := rc.snap.values(args)
		start := time.Now()
		defer func() {
			if v := recover(); v != nil {
				rc.observeQuery(query, params, start, time.Since(start), 0, fmt.Errorf("panic: %v", v), o.classify)
				panic(v)
			}
		}()

		rows, err = fn(ctx, dest, query, args...)
		rc.observeQuery(query, params, start, time.Since(start), rows, err, o.classify)
		return rows, err
	}
}

// ObserveQuery appends a QueryRecord for obs to the active request. It is a
// no-op outside a request.
func ObserveQuery(ctx context.Context, obs QueryObservation) {
	rc, ok := Current(ctx)
	if !ok {
		return
	}
	classify := obs.Classify
	if classify == nil {
		classify = DefaultClassifier
	}
	rc.observeQuery(obs.Text, rc.snap.values(obs.Args), obs.Start, obs.Duration, obs.Rows, obs.Err, classify)
}

func (rc *RequestContext) observeQuery(text string, params []json.RawMessage, start time.Time, d time.Duration, rows int64, err error, classify Classifier) {
	qr := QueryRecord{
		OperationText: text,
		Parameters:    params,
		DurationMS:    millis(d),
		StartedAt:     unixSeconds(start),
	}

	kind := "ok"
	if err != nil {
		qe := classify(err)
		if qe == nil {
			qe = DefaultClassifier(err)
		}
		if qe.Raw == "" {
			qe.Raw = rc.snap.truncate(errorText(err))
		}
		qr.Error = qe
		kind = qe.Kind
	} else {
		qr.RowCount = &rows
	}

	if rc.appendQuery(qr) {
		metrics.TracedQueries.WithLabelValues(kind).Inc()
	}
}

// DefaultClassifier recognizes connectivity failures and reports anything
// else as generic.
func DefaultClassifier(err error) *QueryError {
	raw := errorText(err)

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return &QueryError{Kind: KindConnectivity, Message: "database connection failed", Raw: raw}
	}
	return &QueryError{Kind: KindGeneric, Message: raw, Raw: raw}
}
