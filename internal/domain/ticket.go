package domain

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether entering s stamps the resolution time.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed || s == TicketStatusCancelled
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

var priorityAliases = map[string]TicketPriority{
	"low":      TicketPriorityLow,
	"baixa":    TicketPriorityLow,
	"medium":   TicketPriorityMedium,
	"media":    TicketPriorityMedium,
	"high":     TicketPriorityHigh,
	"alta":     TicketPriorityHigh,
	"critical": TicketPriorityCritical,
	"critica":  TicketPriorityCritical,
	"urgent":   TicketPriorityCritical,
	"urgente":  TicketPriorityCritical,
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ParsePriority accepts English or Portuguese labels, ignoring case and accents.
func ParsePriority(raw string) (TicketPriority, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if folded, _, err := transform.String(foldAccents, key); err == nil {
		key = folded
	}
	p, ok := priorityAliases[key]
	return p, ok
}

// Valid reports whether p is one of the four priorities.
func (p TicketPriority) Valid() bool {
	return p.Level() > 0
}

// Label returns the Portuguese label the classification service speaks.
func (p TicketPriority) Label() string {
	switch p {
	case TicketPriorityLow:
		return "Baixa"
	case TicketPriorityMedium:
		return "Média"
	case TicketPriorityHigh:
		return "Alta"
	case TicketPriorityCritical:
		return "Crítica"
	}
	return ""
}

// Level maps the priority onto the 1..4 scale used by reports.
func (p TicketPriority) Level() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityHigh:
		return 3
	case TicketPriorityCritical:
		return 4
	}
	return 0
}

// Ticket is the committed support request ("chamado").
type Ticket struct {
	ID              int64
	ExternalKey     string
	ReporterID      *int64
	Title           string
	Category        string
	Description     string
	AffectedParty   string
	BlocksWorkFully bool
	Priority        TicketPriority
	Justification   string
	Status          TicketStatus
	Solution        *string
	TechnicianID    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// TicketStats aggregates ticket counts by status and priority.
type TicketStats struct {
	Total      int64
	ByStatus   map[TicketStatus]int64
	ByPriority map[TicketPriority]int64
}
