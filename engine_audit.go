package softoken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/softoken/internal"
)

const (
	auditEventSessionCreated        = "session_created"
	auditEventSessionRejected       = "session_rejected"
	auditEventSessionExtended       = "session_extended"
	auditEventSessionDestroyed      = "session_destroyed"
	auditEventUserSessionsDestroyed = "user_sessions_destroyed"
	auditEventCleanupSweep          = "cleanup_sweep"
	auditEventCleanupWipe           = "cleanup_wipe"
)

// AuditErrorCode is the stable, low-cardinality reason carried in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrMalformedToken  AuditErrorCode = "malformed_token"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrUnknownToken    AuditErrorCode = "unknown_token"
	auditErrValidation      AuditErrorCode = "validation"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrContextCanceled AuditErrorCode = "canceled"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	token string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   internal.Fingerprint(token),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMalformedToken):
		return auditErrMalformedToken
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUnknownToken):
		return auditErrUnknownToken
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrContextCanceled
	default:
		return auditErrInternal
	}
}
