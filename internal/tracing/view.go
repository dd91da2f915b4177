package tracing

import "context"

// RecordView stores a snapshot of the data handed to the template. The
// snapshot is a deep copy taken now; a second call in the same request
// replaces the first and logs a warning. Outside a request it does nothing.
func RecordView(ctx context.Context, data map[string]any) {
	rc, ok := Current(ctx)
	if !ok {
		return
	}
	rc.setView(rc.snap.mapping(data))
}
