package tracing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleEmptyRequest(t *testing.T) {
	_, _, rc := begin(t)

	tr := Assemble(rc, RequestInfo{Method: "GET", Path: "/tasks", StatusCode: 200})
	assert.Equal(t, rc.ID(), tr.RequestID)
	assert.True(t, rc.Finalized())
	assert.GreaterOrEqual(t, tr.Timing.RequestEnd, tr.Timing.RequestStart)

	b, err := tr.JSON()
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.JSONEq(t, `[]`, string(doc["method_calls"]))
	assert.JSONEq(t, `[]`, string(doc["db_queries"]))
	assert.JSONEq(t, `{}`, string(doc["view_data"]))
	assert.JSONEq(t, `{"method":"GET","path":"/tasks","status_code":200}`, string(doc["request_info"]))
}

func TestAssembleFreezesContext(t *testing.T) {
	ctx, _, rc := begin(t)

	fn := Wrap0("Task.list", func(context.Context) ([]string, error) { return []string{"t"}, nil })
	_, err := fn(ctx)
	require.NoError(t, err)
	RecordView(ctx, map[string]any{"tasks": []string{"t"}})

	first := Assemble(rc, RequestInfo{Method: "GET", Path: "/tasks"})

	_, err = fn(ctx)
	require.NoError(t, err)
	RecordView(ctx, map[string]any{"other": true})
	rc.SetController("late")

	second := Assemble(rc, RequestInfo{Method: "POST", Path: "/other"})
	assert.Len(t, second.MethodCalls, 1)
	assert.Equal(t, first.Timing, second.Timing)
	assert.Equal(t, "/tasks", second.RequestInfo.Path)
	assert.Empty(t, second.RequestInfo.Controller)
	assert.JSONEq(t, `["t"]`, string(second.ViewData["tasks"]))
	assert.NotContains(t, second.ViewData, "other")
}

func TestAssembleReplacesInvalidSnapshots(t *testing.T) {
	_, _, rc := begin(t)

	rc.appendCall(CallRecord{
		QualifiedName: "Broken.call",
		Arguments:     Arguments{Positional: []json.RawMessage{json.RawMessage(`{bad`)}},
		Result:        json.RawMessage(`not json`),
	})

	tr := Assemble(rc, RequestInfo{})
	b, err := tr.JSON()
	require.NoError(t, err)
	assert.True(t, json.Valid(b))
	assert.JSONEq(t, `"{bad"`, string(tr.MethodCalls[0].Arguments.Positional[0]))
	assert.JSONEq(t, `"not json"`, string(tr.MethodCalls[0].Result))
}

func TestRecordViewLastWriteWins(t *testing.T) {
	ctx, _, rc := begin(t)

	data := map[string]any{"title": "first", "items": []int{1, 2}}
	RecordView(ctx, data)
	data["title"] = "mutated"

	view, ok := rc.View()
	require.True(t, ok)
	assert.JSONEq(t, `"first"`, string(view["title"]))

	RecordView(ctx, map[string]any{"title": "second"})
	view, _ = rc.View()
	assert.JSONEq(t, `"second"`, string(view["title"]))
	assert.NotContains(t, view, "items")

	RecordView(context.Background(), map[string]any{"ignored": true})
}

func TestSnapshotDoesNotFinalize(t *testing.T) {
	ctx, _, rc := begin(t)

	fn := Wrap0("User.list", func(context.Context) (int, error) { return 2, nil })
	_, err := fn(ctx)
	require.NoError(t, err)

	snap := Snapshot(rc, RequestInfo{Method: "GET", Path: "/users"})
	assert.False(t, rc.Finalized())
	assert.Len(t, snap.MethodCalls, 1)
	assert.Equal(t, "/users", snap.RequestInfo.Path)

	_, err = fn(ctx)
	require.NoError(t, err)
	assert.Len(t, Assemble(rc, RequestInfo{}).MethodCalls, 2)
}
