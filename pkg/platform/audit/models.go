package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// Sinks may route or retain categories differently.
type EventCategory string

const (
	// CategoryCompliance covers state changes with governance significance:
	// initialization, allowlist and limit changes, executed actions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected calls and advisory warnings that feed
	// monitoring and alerting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine self-service activity and dry runs.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the vault service to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID     `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// Caller is the identity that invoked the operation, in canonical text form.
	Caller string `json:"caller"`
	// Subject is the identity the operation acted on (action target,
	// allowlisted contract). Empty for caller-scoped operations.
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Mode      string `json:"mode,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	VaultCode uint16 `json:"vault_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// Store persists audit events. Sinks (memory, SQL, Kafka, log) implement it.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Admin events
	EventVaultInitialized   AuditEvent = "vault_initialized"
	EventAllowlistAdded     AuditEvent = "allowlist_added"
	EventAllowlistRemoved   AuditEvent = "allowlist_removed"
	EventLimitsUpdated      AuditEvent = "limits_updated"
	EventAdminCallRejected  AuditEvent = "admin_call_rejected"
	EventInitializeRejected AuditEvent = "initialize_rejected"

	// Self-service events
	EventModeChanged  AuditEvent = "mode_changed"
	EventModeRejected AuditEvent = "mode_rejected"

	// Decision events
	EventActionAllowed   AuditEvent = "action_allowed"
	EventActionDenied    AuditEvent = "action_denied"
	EventActionChecked   AuditEvent = "action_checked"
	EventAdvisoryWarning AuditEvent = "advisory_warning"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventVaultInitialized: CategoryCompliance,
	EventAllowlistAdded:   CategoryCompliance,
	EventAllowlistRemoved: CategoryCompliance,
	EventLimitsUpdated:    CategoryCompliance,
	EventActionAllowed:    CategoryCompliance,

	EventAdminCallRejected:  CategorySecurity,
	EventInitializeRejected: CategorySecurity,
	EventActionDenied:       CategorySecurity,
	EventAdvisoryWarning:    CategorySecurity,
	EventModeRejected:       CategorySecurity,

	EventModeChanged:   CategoryOperations,
	EventActionChecked: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityOf ranks an event for alert routing.
func SeverityOf(e Event) Severity {
	switch AuditEvent(e.Action) {
	case EventAdminCallRejected, EventInitializeRejected:
		return SeverityCritical
	case EventActionDenied, EventAdvisoryWarning, EventModeRejected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
