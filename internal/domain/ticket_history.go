package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated   TicketChangeType = "CREATED"
	ChangeTypeStatus    TicketChangeType = "STATUS_CHANGE"
	ChangeTypeContested TicketChangeType = "CONTESTED"
)

// Valid reports whether t is a known change type.
func (t TicketChangeType) Valid() bool {
	switch t {
	case ChangeTypeCreated, ChangeTypeStatus, ChangeTypeContested:
		return true
	}
	return false
}

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	ChangedBy  *int64
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
