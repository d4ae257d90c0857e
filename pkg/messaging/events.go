package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published for every attendance/audit event.
type Event struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Source        string      `json:"source"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
	Data          interface{} `json:"data"`
}

// Event types of the attendance/audit bus. The punch pipeline publishes
// EventPunchIn and EventPunchOut; nothing in this codebase publishes the
// other types.
const (
	EventPunchIn           = "attendance.punch_in"
	EventPunchOut          = "attendance.punch_out"
	EventAttendanceAbsent  = "attendance.marked_absent"
	EventPermissionChanged = "rbac.permission_changed"
	EventReportGenerated   = "report.generated"
)

// NewEvent builds an Event envelope for publishing.
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}, nil
}
