// Package exports renders explorer snapshots into blob storage on a
// background worker.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"toolatlas/internal/aggregate"
	"toolatlas/internal/blob"
	"toolatlas/internal/core"
	"toolatlas/pkg/catalogapi"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format is an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat resolves a format name case-insensitively.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

const defaultQueueSize = 32

// ErrQueueFull is returned when the worker cannot accept more requests.
var ErrQueueFull = errors.New("export queue full")

// Artifact is one stored rendering of a snapshot.
type Artifact struct {
	Key         string            `json:"key"`
	Format      Format            `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string               `json:"id"`
	Scope       catalogapi.ScopeKind `json:"scope"`
	QueryKey    string               `json:"query_key"`
	Selection   catalogapi.Selection `json:"selection"`
	Entities    int                  `json:"entities"`
	Formats     []Format             `json:"formats"`
	Status      Status               `json:"status"`
	Error       string               `json:"error,omitempty"`
	Artifacts   []Artifact           `json:"artifacts,omitempty"`
	RequestedBy string               `json:"requested_by,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	out := r
	out.Formats = append([]Format(nil), r.Formats...)
	if r.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(r.Artifacts))
		for i, a := range r.Artifacts {
			a.Metadata = cloneMetadata(a.Metadata)
			out.Artifacts[i] = a
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Input is an enqueue request. Snapshot is rendered as captured; later
// explorer changes do not affect it.
type Input struct {
	Snapshot    core.Snapshot
	Formats     []Format
	RequestedBy string
}

// Scheduler queues exports and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// AuditLogger records export lifecycle events.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry is one export lifecycle event.
type AuditEntry struct {
	ID         string               `json:"id"`
	ExportID   string               `json:"export_id"`
	Actor      string               `json:"actor,omitempty"`
	Status     Status               `json:"status"`
	Scope      catalogapi.ScopeKind `json:"scope"`
	Note       string               `json:"note,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// SlogAudit writes audit entries to a structured logger.
type SlogAudit struct {
	Logger *slog.Logger
}

// Record implements AuditLogger.
func (a SlogAudit) Record(ctx context.Context, entry AuditEntry) {
	if a.Logger == nil {
		return
	}
	a.Logger.InfoContext(ctx, "export audit",
		"audit_id", entry.ID,
		"export_id", entry.ExportID,
		"actor", entry.Actor,
		"status", string(entry.Status),
		"scope", string(entry.Scope),
		"note", entry.Note,
	)
}

// Worker executes exports asynchronously on a single goroutine.
type Worker struct {
	store   blob.Store
	audit   AuditLogger
	logger  *slog.Logger
	metrics core.MetricsRecorder

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id       string
	snapshot core.Snapshot
}

// Option customizes a Worker.
type Option func(*Worker)

// WithAudit sets the audit sink.
func WithAudit(a AuditLogger) Option { return func(w *Worker) { w.audit = a } }

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m core.MetricsRecorder) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithQueueSize bounds the pending request queue.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// NewWorker constructs an export worker writing to store.
func NewWorker(store blob.Store, opts ...Option) (*Worker, error) {
	if store == nil {
		return nil, errors.New("export blob store required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		queue:  make(chan task, defaultQueueSize),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current job.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export of input.Snapshot and returns the queued record.
// Formats default to JSON and CSV; duplicates are dropped.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return Record{}, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		uniq = append(uniq, parsed)
	}

	now := time.Now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		Scope:       input.Snapshot.Scope,
		QueryKey:    input.Snapshot.Query.Key,
		Selection:   input.Snapshot.Selection,
		Entities:    len(input.Snapshot.Table),
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	select {
	case w.queue <- task{id: record.ID, snapshot: input.Snapshot}:
	default:
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.record(ctx, record.ID, StatusQueued, "")
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	started := time.Now()
	w.update(t.id, func(r *Record) { r.Status = StatusRunning })
	w.record(w.ctx, t.id, StatusRunning, "")

	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.storeArtifact(t.id, format, t.snapshot)
		if err != nil {
			w.fail(t.id, err)
			w.observe(false, started)
			return
		}
		artifacts = append(artifacts, artifact)
	}
	now := time.Now().UTC()
	w.update(t.id, func(r *Record) {
		r.Status = StatusSucceeded
		r.Error = ""
		r.Artifacts = artifacts
		r.CompletedAt = &now
	})
	w.record(w.ctx, t.id, StatusSucceeded, "")
	w.observe(true, started)
	w.logger.InfoContext(w.ctx, "export completed", "id", t.id, "artifacts", len(artifacts))
}

func (w *Worker) storeArtifact(id string, format Format, snap core.Snapshot) (Artifact, error) {
	payload, contentType, name, err := Render(format, id, snap)
	if err != nil {
		return Artifact{}, err
	}
	md := map[string]string{
		"export-id": id,
		"scope":     string(snap.Scope),
		"rows":      strconv.Itoa(len(snap.Table)),
	}
	info, err := w.store.Put(w.ctx, ArtifactKey(id, name), bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: md})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s artifact: %w", format, err)
	}
	url := info.URL
	if signed, err := w.store.PresignURL(w.ctx, info.Key, blob.SignedURLOptions{Method: "GET"}); err == nil {
		url = signed
	} else if !errors.Is(err, blob.ErrUnsupported) {
		w.logger.WarnContext(w.ctx, "presign export artifact failed", "id", id, "key", info.Key, "error", err)
	}
	created := info.LastModified
	if created.IsZero() {
		created = time.Now().UTC()
	}
	size := info.Size
	if size == 0 {
		size = int64(len(payload))
	}
	return Artifact{
		Key:         info.Key,
		Format:      format,
		ContentType: contentType,
		SizeBytes:   size,
		URL:         url,
		Metadata:    md,
		CreatedAt:   created,
	}, nil
}

func (w *Worker) fail(id string, err error) {
	now := time.Now().UTC()
	w.update(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = err.Error()
		r.CompletedAt = &now
	})
	w.record(w.ctx, id, StatusFailed, err.Error())
	w.logger.WarnContext(w.ctx, "export failed", "id", id, "error", err)
}

func (w *Worker) update(id string, mutate func(*Record)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.jobs[id]; ok {
		mutate(r)
		r.UpdatedAt = time.Now().UTC()
	}
}

func (w *Worker) record(ctx context.Context, id string, status Status, note string) {
	if w.audit == nil {
		return
	}
	r, ok := w.Get(id)
	if !ok {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		ExportID:   id,
		Actor:      r.RequestedBy,
		Status:     status,
		Scope:      r.Scope,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}

func (w *Worker) observe(success bool, started time.Time) {
	if w.metrics != nil {
		w.metrics.Observe(w.ctx, "exports.render", success, time.Since(started))
	}
}

// ArtifactKey is the blob key an export artifact is stored under.
func ArtifactKey(id, name string) string {
	return "exports/" + id + "/" + name
}

// TableColumns is the CSV header order.
var TableColumns = []string{
	"name", "parent_organization", "license", "functional_type", "structural_type",
	"services", "content_types", "release_year", "active", "has_api",
}

type jsonDocument struct {
	ID         string               `json:"id"`
	Scope      catalogapi.ScopeKind `json:"scope"`
	Query      core.QueryState      `json:"query"`
	Selection  catalogapi.Selection `json:"selection"`
	Summary    aggregate.Summary    `json:"summary"`
	Table      []aggregate.Row      `json:"table"`
	RenderedAt time.Time            `json:"rendered_at"`
}

// Render encodes snap in format and returns the payload, its content type and
// the artifact file name.
func Render(format Format, id string, snap core.Snapshot) ([]byte, string, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(jsonDocument{
			ID:         id,
			Scope:      snap.Scope,
			Query:      snap.Query,
			Selection:  snap.Selection,
			Summary:    snap.Summary,
			Table:      snap.Table,
			RenderedAt: time.Now().UTC(),
		}, "", "  ")
		if err != nil {
			return nil, "", "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", "summary.json", nil
	case FormatCSV:
		payload, err := renderCSV(snap.Table)
		if err != nil {
			return nil, "", "", fmt.Errorf("render csv: %w", err)
		}
		return payload, "text/csv", "table.csv", nil
	default:
		return nil, "", "", fmt.Errorf("unsupported export format %q", format)
	}
}

func renderCSV(rows []aggregate.Row) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(TableColumns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		year := ""
		if row.ReleaseYear > 0 {
			year = strconv.Itoa(row.ReleaseYear)
		}
		record := []string{
			row.Name,
			row.ParentOrganization,
			row.License,
			strings.Join(row.FunctionalType, "; "),
			strings.Join(row.StructuralType, "; "),
			strings.Join(row.Services, "; "),
			strings.Join(row.ContentTypes, "; "),
			year,
			row.Active,
			row.HasAPI,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
