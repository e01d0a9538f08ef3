package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records every sensitive write. Writing an audit
// entry never blocks or fails the primary operation — the
// non-blocking guarantee is implemented by internal/audit, not by this type.
type AuditLog struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ActorUserID uuid.UUID
	Action     string
	TargetType string
	TargetID   string
	Before     map[string]any
	After      map[string]any
	RequestID  string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}
