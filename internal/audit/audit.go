// Package audit records who accessed booking data through the admin surface.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/repository"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Event represents an audit event
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Subject   string         `json:"subject,omitempty"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Result    string         `json:"result"`
}

// Logger persists audit events
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// ZapLogger writes audit events to the structured log
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger creates a zap-backed audit logger. A nil logger means the
// request-scoped logger from the context.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

func (l *ZapLogger) Log(ctx context.Context, event Event) error {
	logger := l.logger
	if logger == nil {
		logger = log.L(ctx)
	}

	fields := []zap.Field{
		zap.String("audit_id", event.ID),
		zap.String("audit_type", event.Type),
		zap.String("audit_action", event.Action),
		zap.String("audit_resource", event.Resource),
		zap.String("audit_result", event.Result),
		zap.Time("audit_timestamp", event.Timestamp),
	}
	if event.Subject != "" {
		fields = append(fields, zap.String("audit_subject", event.Subject))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("audit_ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("audit_user_agent", event.UserAgent))
	}
	if len(event.Details) > 0 {
		details, _ := json.Marshal(event.Details)
		fields = append(fields, zap.String("audit_details", string(details)))
	}

	if event.Result == ResultSuccess {
		logger.Info("Audit event", fields...)
	} else {
		logger.Warn("Audit event", fields...)
	}
	return nil
}

// Trail builds the audit events emitted by the admin endpoints
type Trail struct {
	logger Logger
	now    func() time.Time
}

// NewTrail creates a trail writing to logger
func NewTrail(logger Logger) *Trail {
	return &Trail{logger: logger, now: time.Now}
}

// AccessDenied records a rejected admin request
func (t *Trail) AccessDenied(ctx context.Context, resource, reason string) error {
	return t.log(ctx, Event{
		Type:     "security",
		Action:   "access_denied",
		Resource: resource,
		Details:  map[string]any{"reason": reason},
		Result:   ResultFailure,
	})
}

// BookingsExported records a completed booking export
func (t *Trail) BookingsExported(ctx context.Context, subject string, filter repository.Filter, count int) error {
	details := map[string]any{"count": count}
	if !filter.CheckInFrom.IsZero() {
		details["from"] = dates.Format(filter.CheckInFrom)
	}
	if !filter.CheckInTo.IsZero() {
		details["to"] = dates.Format(filter.CheckInTo)
	}
	return t.log(ctx, Event{
		Type:     "data_access",
		Subject:  subject,
		Action:   "export",
		Resource: "bookings",
		Details:  details,
		Result:   ResultSuccess,
	})
}

func (t *Trail) log(ctx context.Context, event Event) error {
	event.ID = uuid.NewString()
	event.Timestamp = t.now().UTC()
	event.IPAddress, event.UserAgent = Client(ctx)
	return t.logger.Log(ctx, event)
}

type clientKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClient attaches the caller's address and user agent to the context
func WithClient(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, clientInfo{ip: ipAddress, userAgent: userAgent})
}

// Client returns the caller details stored by WithClient
func Client(ctx context.Context) (ipAddress, userAgent string) {
	if info, ok := ctx.Value(clientKey{}).(clientInfo); ok {
		return info.ip, info.userAgent
	}
	return "", ""
}
