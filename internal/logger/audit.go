package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	// Estimator actions
	AuditActionEstimateSubmit   AuditAction = "ESTIMATE_SUBMIT"
	AuditActionEstimateComplete AuditAction = "ESTIMATE_COMPLETE"
	AuditActionEstimateFailed   AuditAction = "ESTIMATE_FAILED"
	AuditActionEstimateRejected AuditAction = "ESTIMATE_REJECTED"

	// WebSocket operations
	AuditActionWSConnect    AuditAction = "WS_CONNECT"
	AuditActionWSDisconnect AuditAction = "WS_DISCONNECT"

	// API operations
	AuditActionAPIRequest AuditAction = "API_REQUEST"
	AuditActionAPIError   AuditAction = "API_ERROR"
)

// AuditEvent represents an audit log entry
type AuditEvent struct {
	Action     AuditAction
	SessionID  string
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	ClientIP   string
	RequestID  string
	Success    bool
	Error      string
	Duration   int64 // milliseconds
	Method     string
	Path       string
	StatusCode int
}

var auditLogger = globalLogger.With().Str("log_type", "audit").Logger()

// InitAudit derives the audit logger from the global logger
func InitAudit() {
	auditLogger = globalLogger.With().Str("log_type", "audit").Logger()
}

// Audit logs an audit event
func Audit(ctx context.Context, event AuditEvent) {
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}
	if event.SessionID == "" {
		event.SessionID = GetSessionID(ctx)
	}

	logEvent := auditLogger.Info()
	if !event.Success {
		logEvent = auditLogger.Warn()
	}

	logEvent.
		Str("action", string(event.Action)).
		Str("session_id", event.SessionID).
		Str("resource", event.Resource).
		Str("request_id", event.RequestID).
		Bool("success", event.Success).
		Time("timestamp", time.Now().UTC())

	if event.ResourceID != "" {
		logEvent.Str("resource_id", event.ResourceID)
	}
	if event.ClientIP != "" {
		logEvent.Str("client_ip", event.ClientIP)
	}
	if event.Error != "" {
		logEvent.Str("error", event.Error)
	}
	if event.Duration > 0 {
		logEvent.Int64("duration_ms", event.Duration)
	}
	if event.Method != "" {
		logEvent.Str("method", event.Method)
	}
	if event.Path != "" {
		logEvent.Str("path", event.Path)
	}
	if event.StatusCode > 0 {
		logEvent.Int("status_code", event.StatusCode)
	}
	if len(event.Details) > 0 {
		logEvent.Interface("details", event.Details)
	}

	logEvent.Msg("Audit event")
}

// AuditEstimate logs the outcome of one estimate cycle
func AuditEstimate(ctx context.Context, action AuditAction, duration time.Duration, err error, details map[string]interface{}) {
	event := AuditEvent{
		Action:   action,
		Resource: "estimate",
		Success:  err == nil,
		Duration: duration.Milliseconds(),
		Details:  details,
	}
	if err != nil {
		event.Error = err.Error()
	}
	Audit(ctx, event)
}

// AuditRequest logs an API request audit event
func AuditRequest(ctx context.Context, method, path string, statusCode int, duration int64, clientIP string) {
	success := statusCode < 400
	action := AuditActionAPIRequest
	if !success {
		action = AuditActionAPIError
	}

	Audit(ctx, AuditEvent{
		Action:     action,
		Resource:   "api",
		ResourceID: path,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Duration:   duration,
		ClientIP:   clientIP,
		Success:    success,
	})
}

// AuditWebSocket logs WebSocket connection events
func AuditWebSocket(ctx context.Context, action AuditAction, sessionID, clientIP string, details map[string]interface{}) {
	Audit(ctx, AuditEvent{
		Action:    action,
		SessionID: sessionID,
		Resource:  "websocket",
		ClientIP:  clientIP,
		Success:   true,
		Details:   details,
	})
}

// SetAuditLogger replaces the audit logger (tests capture output this way)
func SetAuditLogger(l zerolog.Logger) {
	auditLogger = l
}
