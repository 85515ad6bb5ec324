package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreate   AuditAction = "create"
	AuditActionUpdate   AuditAction = "update"
	AuditActionPublish  AuditAction = "publish"
	AuditActionPurchase AuditAction = "purchase"
	AuditActionCancel   AuditAction = "cancel"
	AuditActionPayment  AuditAction = "payment"
	AuditActionView     AuditAction = "view"
)

// Context keys handlers use to enrich the entry
const (
	ContextKeyAuditResourceType = "audit_resource_type"
	ContextKeyAuditResourceID   = "audit_resource_id"
	ContextKeyAuditNewValues    = "audit_new_values"
	ContextKeyAuditMetadata     = "audit_metadata"
	contextKeyAuditSkip         = "audit_skip"
)

// AuditEntry is one row of audit_logs
type AuditEntry struct {
	ID           string         `json:"id"`
	UserID       *string        `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	UserRole     string         `json:"user_role,omitempty"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	TraceID      string         `json:"trace_id,omitempty"`
	StatusCode   int            `json:"status_code"`
	NewValues    map[string]any `json:"new_values,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditSink persists flushed batches
type AuditSink interface {
	Write(ctx context.Context, entries []*AuditEntry) error
}

const insertAuditLog = `
	INSERT INTO audit_logs (
		id, user_id, user_email, user_role,
		action, resource_type, resource_id,
		ip_address, user_agent, request_id, trace_id,
		status_code, new_values, metadata, created_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7,
		$8, $9, $10, $11,
		$12, $13, $14, $15
	)`

// PostgresAuditSink writes entries to audit_logs in a single batch round trip
type PostgresAuditSink struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditSink creates a sink backed by pool
func NewPostgresAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

// Write queues one INSERT per entry and sends them together
func (s *PostgresAuditSink) Write(ctx context.Context, entries []*AuditEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		var newValues []byte
		if len(e.NewValues) > 0 {
			newValues, _ = json.Marshal(e.NewValues)
		}
		metadata := []byte("{}")
		if len(e.Metadata) > 0 {
			metadata, _ = json.Marshal(e.Metadata)
		}
		batch.Queue(insertAuditLog,
			e.ID, e.UserID, e.UserEmail, e.UserRole,
			string(e.Action), e.ResourceType, e.ResourceID,
			e.IPAddress, e.UserAgent, e.RequestID, e.TraceID,
			e.StatusCode, newValues, metadata, e.CreatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	var firstErr error
	for range entries {
		if _, err := results.Exec(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := results.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return fmt.Errorf("insert audit logs: %w", firstErr)
	}
	return nil
}

// LogAuditSink writes entries as structured log lines
type LogAuditSink struct {
	log *logger.Logger
}

// NewLogAuditSink creates a sink that logs through log
func NewLogAuditSink(log *logger.Logger) *LogAuditSink {
	return &LogAuditSink{log: log.Named("audit")}
}

func (s *LogAuditSink) Write(_ context.Context, entries []*AuditEntry) error {
	for _, e := range entries {
		fields := []zap.Field{
			zap.String("audit_id", e.ID),
			zap.String("action", string(e.Action)),
			zap.String("resource_type", e.ResourceType),
			zap.Int("status_code", e.StatusCode),
			zap.String("request_id", e.RequestID),
		}
		if e.UserID != nil {
			fields = append(fields, zap.String("user_id", *e.UserID))
		}
		if e.ResourceID != nil {
			fields = append(fields, zap.String("resource_id", *e.ResourceID))
		}
		s.log.Info("audit", fields...)
	}
	return nil
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	Sink          AuditSink
	BufferSize    int
	FlushInterval time.Duration
	BatchSize     int
	// SkipPaths are never audited
	SkipPaths []string
	// SkipMethods default to read-only methods
	SkipMethods []string
	// Log reports sink failures and dropped entries
	Log *logger.Logger
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(sink AuditSink, log *logger.Logger) *AuditConfig {
	return &AuditConfig{
		Sink:          sink,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		BatchSize:     100,
		SkipPaths:     []string{"/health", "/ready"},
		SkipMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		Log:           log,
	}
}

// AuditLogger buffers entries and flushes them from a single worker
type AuditLogger struct {
	config    *AuditConfig
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Uint64
}

// NewAuditLogger starts the flush worker
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Log == nil {
		config.Log = logger.NewNop()
	}

	al := &AuditLogger{
		config: config,
		buffer: make(chan *AuditEntry, config.BufferSize),
	}
	al.wg.Add(1)
	go al.worker()
	return al
}

// Log enqueues entry without blocking; a full buffer drops it
func (al *AuditLogger) Log(entry *AuditEntry) {
	if al.closed.Load() {
		return
	}
	select {
	case al.buffer <- entry:
	default:
		al.dropped.Add(1)
	}
}

// Dropped returns the number of entries lost to a full buffer
func (al *AuditLogger) Dropped() uint64 {
	return al.dropped.Load()
}

// Close flushes what is buffered and stops the worker
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		al.closed.Store(true)
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)
	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 || al.config.Sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := al.config.Sink.Write(ctx, entries); err != nil {
		al.config.Log.Error("failed to flush audit entries",
			zap.Int("count", len(entries)),
			zap.Error(err),
		)
	}
}

// AuditMiddleware records one entry per mutating request after the handler ran
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	config := al.config
	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skipPaths[p] = struct{}{}
	}
	skipMethods := make(map[string]struct{}, len(config.SkipMethods))
	for _, m := range config.SkipMethods {
		skipMethods[m] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		if _, ok := skipMethods[c.Request.Method]; ok {
			c.Next()
			return
		}

		startTime := time.Now()
		c.Next()

		if c.GetBool(contextKeyAuditSkip) {
			return
		}

		entry := &AuditEntry{
			ID:         uuid.New().String(),
			Action:     actionFor(c.Request.Method, c.Request.URL.Path),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			RequestID:  GetRequestID(c),
			StatusCode: c.Writer.Status(),
			CreatedAt:  startTime,
		}

		if userID, ok := GetUserID(c); ok && userID != "" {
			entry.UserID = &userID
		}
		entry.UserEmail, _ = GetEmail(c)
		entry.UserRole, _ = GetRole(c)

		resourceType, resourceID := resourceFromPath(c.Request.URL.Path)
		entry.ResourceType = resourceType
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}
		if rt := c.GetString(ContextKeyAuditResourceType); rt != "" {
			entry.ResourceType = rt
		}
		if rid := c.GetString(ContextKeyAuditResourceID); rid != "" {
			entry.ResourceID = &rid
		}
		if v, ok := c.Get(ContextKeyAuditNewValues); ok {
			entry.NewValues, _ = v.(map[string]any)
		}
		if v, ok := c.Get(ContextKeyAuditMetadata); ok {
			entry.Metadata, _ = v.(map[string]any)
		}

		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
			entry.TraceID = sc.TraceID().String()
		}

		al.Log(entry)
	}
}

// actionFor derives the action from the verb and the trailing path segment
func actionFor(method, path string) AuditAction {
	switch {
	case strings.HasSuffix(path, "/publish"):
		return AuditActionPublish
	case strings.HasSuffix(path, "/purchase"):
		return AuditActionPurchase
	case strings.HasSuffix(path, "/cancel"):
		return AuditActionCancel
	case strings.HasSuffix(path, "/payment-intent"), strings.HasSuffix(path, "/webhook"):
		return AuditActionPayment
	}

	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	default:
		return AuditActionView
	}
}

// resourceFromPath maps /api/v1/events/<id>/... to ("event", "<id>").
// The innermost collection wins when the path nests one resource under another
// and ends in a collection, so POST /events/<id>/ticket-types yields "ticket_type".
func resourceFromPath(path string) (resourceType, resourceID string) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	start := 0
	for start < len(parts) && (parts[start] == "api" || isVersion(parts[start])) {
		start++
	}
	parts = parts[start:]
	if len(parts) == 0 {
		return "unknown", ""
	}

	for i := 0; i < len(parts); i++ {
		if !isCollection(parts[i]) {
			continue
		}
		resourceType = singular(parts[i])
		resourceID = ""
		if i+1 < len(parts) {
			if _, err := uuid.Parse(parts[i+1]); err == nil {
				resourceID = parts[i+1]
				i++
			}
		}
	}
	if resourceType == "" {
		resourceType = parts[0]
	}
	return resourceType, resourceID
}

func isVersion(s string) bool {
	return len(s) > 1 && s[0] == 'v' && strings.Trim(s[1:], "0123456789") == ""
}

func isCollection(s string) bool {
	switch s {
	case "events", "ticket-types", "registrations", "payments":
		return true
	}
	return false
}

func singular(s string) string {
	return strings.ReplaceAll(strings.TrimSuffix(s, "s"), "-", "_")
}

// SetAuditResource overrides the resource derived from the path
func SetAuditResource(c *gin.Context, resourceType, resourceID string) {
	c.Set(ContextKeyAuditResourceType, resourceType)
	c.Set(ContextKeyAuditResourceID, resourceID)
}

// SetAuditNewValues records the state written by the request
func SetAuditNewValues(c *gin.Context, values map[string]any) {
	c.Set(ContextKeyAuditNewValues, values)
}

// SetAuditMetadata attaches free-form metadata
func SetAuditMetadata(c *gin.Context, metadata map[string]any) {
	c.Set(ContextKeyAuditMetadata, metadata)
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}
