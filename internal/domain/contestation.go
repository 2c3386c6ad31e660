package domain

import "time"

// ContestationKind classifies a dispute raised against a committed ticket.
type ContestationKind string

const (
	ContestationKindPriority ContestationKind = "Discordo da Prioridade"
	ContestationKindOther    ContestationKind = "Outro"
)

// Valid reports whether k is one of the accepted kinds.
func (k ContestationKind) Valid() bool {
	return k == ContestationKindPriority || k == ContestationKindOther
}

// ContestationRecord is a persisted dispute on a committed ticket.
type ContestationRecord struct {
	ID            int64
	TicketID      int64
	UserID        int64
	Justification string
	Kind          ContestationKind
	CreatedAt     time.Time

	// Joined for listings.
	UserName    *string
	UserEmail   *string
	TicketTitle *string
}
