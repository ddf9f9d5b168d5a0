package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tms.dev/internal/auth"
	"tms.dev/internal/ids"
	"tms.dev/internal/obs"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one audit record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Page is a slice of entries, newest first.
type Page struct {
	Logs       []Entry `json:"logs"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// Store persists audit entries.
type Store interface {
	AppendAudit(ctx context.Context, e Entry) error
	// ListAudit returns entries newest first together with the total count.
	ListAudit(ctx context.Context, offset, limit int) ([]Entry, int, error)
}

// Logger writes audit events to the structured log and, when a store is set, persists them.
type Logger struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Logger) {
		if l != nil {
			a.log = l
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(a *Logger) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewLogger returns a Logger. A nil store makes it log-only.
func NewLogger(store Store, opts ...Option) *Logger {
	a := &Logger{store: store, log: obs.Logger(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LogEvent writes an audit log entry enriched with request and user context.
func (a *Logger) LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	ts := a.now().UTC()
	entry := Entry{
		ID:        ids.NewAt(ts),
		Timestamp: ts,
		Event:     event,
		RequestID: RequestIDFromContext(ctx),
		Fields:    make(map[string]any, len(fields)),
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry.UserID = userID
	}
	for k, v := range fields {
		entry.Fields[k] = v
	}

	logFields := logrus.Fields{
		"type":     "audit",
		"event":    entry.Event,
		"audit_id": entry.ID,
		"fields":   entry.Fields,
	}
	if entry.RequestID != "" {
		logFields["request_id"] = entry.RequestID
	}
	if entry.UserID != "" {
		logFields["user_id"] = entry.UserID
	}
	a.log.WithFields(logFields).Info("audit")

	if a.store == nil {
		return nil
	}
	return a.store.AppendAudit(ctx, entry)
}

// List returns one page of entries. Non-positive page or limit fall back to
// the defaults; limit is capped at MaxLimit.
func (a *Logger) List(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	out := Page{Logs: []Entry{}, Page: page, Limit: limit}
	if a.store == nil {
		return out, nil
	}
	logs, total, err := a.store.ListAudit(ctx, (page-1)*limit, limit)
	if err != nil {
		return Page{}, err
	}
	if logs != nil {
		out.Logs = logs
	}
	out.Total = total
	out.TotalPages = (total + limit - 1) / limit
	return out, nil
}
