package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolatlas/internal/aggregate"
	"toolatlas/internal/blob"
	"toolatlas/internal/core"
	"toolatlas/pkg/catalogapi"
)

type auditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *auditRecorder) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditRecorder) statuses() []Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Status, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Status
	}
	return out
}

type failingStore struct{ blob.Store }

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("disk full")
}

func sampleSnapshot() core.Snapshot {
	scope := catalogapi.Scope{Kind: catalogapi.ScopeSelection, Entities: []catalogapi.Entity{
		{Name: "Transcoder Pro", ParentOrganization: "Acme", License: "MIT", Services: "Encoding, QC", ReleaseDate: "2019-04-01"},
		{Name: "QC Inspector", ParentOrganization: "Beta Labs", License: "Apache-2.0", Services: "QC"},
	}}
	return core.Snapshot{
		Query:     core.QueryState{Key: "services=QC&q=&yearMin=&yearMax="},
		Selection: catalogapi.Picked(catalogapi.DimensionService, "QC"),
		Scope:     scope.Kind,
		Summary:   aggregate.Summarize(scope),
		Table:     aggregate.Table(scope),
	}
}

func waitFor(t *testing.T, w *Worker, id string, want Status) Record {
	t.Helper()
	var rec Record
	require.Eventually(t, func() bool {
		var ok bool
		rec, ok = w.Get(id)
		return ok && rec.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return rec
}

func TestWorkerStoresJSONAndCSV(t *testing.T) {
	store := blob.NewMemory()
	audit := &auditRecorder{}
	w, err := NewWorker(store, WithAudit(audit))
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	queued, err := w.Enqueue(context.Background(), Input{Snapshot: sampleSnapshot(), RequestedBy: "analyst"})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, queued.Status)
	assert.Equal(t, []Format{FormatJSON, FormatCSV}, queued.Formats)
	assert.Equal(t, catalogapi.ScopeSelection, queued.Scope)
	assert.Equal(t, 2, queued.Entities)

	done := waitFor(t, w, queued.ID, StatusSucceeded)
	require.Len(t, done.Artifacts, 2)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, ArtifactKey(queued.ID, "summary.json"), done.Artifacts[0].Key)
	assert.Equal(t, ArtifactKey(queued.ID, "table.csv"), done.Artifacts[1].Key)

	_, rc, err := store.Get(context.Background(), done.Artifacts[0].Key)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(rc).Decode(&doc))
	require.NoError(t, rc.Close())
	assert.Equal(t, "selection", doc["scope"])
	assert.Equal(t, map[string]any{"dimension": "service", "value": "QC"}, doc["selection"])

	_, rc, err = store.Get(context.Background(), done.Artifacts[1].Key)
	require.NoError(t, err)
	rows, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Len(t, rows, 3)
	assert.Equal(t, TableColumns, rows[0])
	assert.Equal(t, "Transcoder Pro", rows[1][0])
	assert.Equal(t, "2019", rows[1][7])

	require.Eventually(t, func() bool { return len(audit.statuses()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Status{StatusQueued, StatusRunning, StatusSucceeded}, audit.statuses())
}

func TestWorkerFailureIsRecorded(t *testing.T) {
	w, err := NewWorker(failingStore{blob.NewMemory()})
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	queued, err := w.Enqueue(context.Background(), Input{Snapshot: sampleSnapshot(), Formats: []Format{FormatCSV}})
	require.NoError(t, err)
	failed := waitFor(t, w, queued.ID, StatusFailed)
	assert.Contains(t, failed.Error, "disk full")
	assert.Empty(t, failed.Artifacts)
}

func TestEnqueueValidatesFormats(t *testing.T) {
	w, err := NewWorker(blob.NewMemory())
	require.NoError(t, err)

	_, err = w.Enqueue(context.Background(), Input{Formats: []Format{"parquet"}})
	assert.ErrorContains(t, err, "unsupported export format")

	rec, err := w.Enqueue(context.Background(), Input{Formats: []Format{"CSV", FormatCSV}})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV}, rec.Formats)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	w, err := NewWorker(blob.NewMemory(), WithQueueSize(1))
	require.NoError(t, err)

	_, err = w.Enqueue(context.Background(), Input{})
	require.NoError(t, err)
	_, err = w.Enqueue(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestGetReturnsCopies(t *testing.T) {
	w, err := NewWorker(blob.NewMemory())
	require.NoError(t, err)
	rec, err := w.Enqueue(context.Background(), Input{})
	require.NoError(t, err)

	got, ok := w.Get(rec.ID)
	require.True(t, ok)
	got.Formats[0] = "mutated"
	again, _ := w.Get(rec.ID)
	assert.Equal(t, FormatJSON, again.Formats[0])

	_, ok = w.Get("missing")
	assert.False(t, ok)
}

func TestRenderEmptyTable(t *testing.T) {
	payload, contentType, name, err := Render(FormatCSV, "x", core.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "table.csv", name)
	assert.True(t, bytes.HasPrefix(payload, []byte("name,parent_organization")))

	_, _, _, err = Render("xml", "x", core.Snapshot{})
	assert.Error(t, err)
}

func TestNewWorkerRequiresStore(t *testing.T) {
	_, err := NewWorker(nil)
	assert.Error(t, err)
}
