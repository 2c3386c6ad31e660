package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/negotiation"
	"github.com/interfix/helpdesk/internal/wizard"
)

// YesNo decodes a JSON boolean or a "sim"/"não" style string.
type YesNo bool

var yesNoValues = map[string]bool{
	"true": true, "sim": true, "s": true, "yes": true, "1": true,
	"false": false, "nao": false, "não": false, "n": false, "no": false, "0": false,
}

// ParseYesNo resolves a form value. ok is false for anything unrecognised.
func ParseYesNo(raw string) (value bool, ok bool) {
	value, ok = yesNoValues[strings.ToLower(strings.TrimSpace(raw))]
	return value, ok
}

func (y *YesNo) UnmarshalJSON(b []byte) error {
	var asBool bool
	if err := json.Unmarshal(b, &asBool); err == nil {
		*y = YesNo(asBool)
		return nil
	}
	var asString string
	if err := json.Unmarshal(b, &asString); err != nil {
		return fmt.Errorf("expected boolean or sim/não, got %s", b)
	}
	v, ok := ParseYesNo(asString)
	if !ok {
		return fmt.Errorf("expected boolean or sim/não, got %q", asString)
	}
	*y = YesNo(v)
	return nil
}

// BasicInfoRequest is the first stage form.
type BasicInfoRequest struct {
	Title         string `json:"title" form:"title"`
	ReporterName  string `json:"reporter_name" form:"reporter_name"`
	ReporterEmail string `json:"reporter_email" form:"reporter_email"`
	Category      string `json:"category" form:"category"`
	Description   string `json:"description" form:"description"`
}

// AffectedScopeRequest is the second stage form.
type AffectedScopeRequest struct {
	AffectedParty string `json:"affected_party" form:"affected_party"`
}

// BlockingImpactRequest is the third stage form.
type BlockingImpactRequest struct {
	FullyBlocking *YesNo `json:"fully_blocking"`
}

// ContestRequest carries the user's override.
type ContestRequest struct {
	Priority      string `json:"priority" form:"priority"`
	Justification string `json:"justification" form:"justification"`
}

// SessionResponse is returned when a session starts.
type SessionResponse struct {
	SessionID string       `json:"session_id"`
	Next      domain.Stage `json:"next"`
}

// SuggestionResponse shows the classification suggestion.
type SuggestionResponse struct {
	Priority      domain.TicketPriority `json:"priority"`
	PriorityLabel string                `json:"priority_label"`
	Justification string                `json:"justification"`
	Contested     bool                  `json:"contested"`
	Degraded      *bool                 `json:"degraded,omitempty"`
	ReceivedAt    time.Time             `json:"received_at"`
}

// DraftResponse lists the saved stages of a session.
type DraftResponse struct {
	BasicInfo      *BasicInfoRequest     `json:"basic_info,omitempty"`
	AffectedScope  *AffectedScopeRequest `json:"affected_scope,omitempty"`
	BlockingImpact *bool                 `json:"blocking_impact,omitempty"`
	AIResponse     *SuggestionResponse   `json:"ai_response,omitempty"`
	Contestation   *ContestRequest       `json:"contestation,omitempty"`
}

// StageResponse is what a client needs to render one stage.
type StageResponse struct {
	SessionID   string            `json:"session_id"`
	Stage       domain.Stage      `json:"stage"`
	Negotiation negotiation.State `json:"negotiation"`
	Draft       DraftResponse     `json:"draft"`
}

// SummaryResponse describes a whole session.
type SummaryResponse struct {
	SessionID   string            `json:"session_id"`
	Negotiation negotiation.State `json:"negotiation"`
	Next        domain.Stage      `json:"next,omitempty"`
	Draft       DraftResponse     `json:"draft"`
	Outcome     *OutcomeResponse  `json:"outcome,omitempty"`
}

// OutcomeResponse is the locked priority of a finalized negotiation.
type OutcomeResponse struct {
	Priority      domain.TicketPriority `json:"priority"`
	PriorityLabel string                `json:"priority_label"`
	Justification string                `json:"justification"`
	Contested     bool                  `json:"contested"`
}

// ReceiptResponse confirms a commit.
type ReceiptResponse struct {
	SessionID     string                `json:"session_id"`
	Target        string                `json:"target"`
	Priority      domain.TicketPriority `json:"priority"`
	PriorityLabel string                `json:"priority_label"`
	Justification string                `json:"justification"`
	Contested     bool                  `json:"contested"`
	Degraded      *bool                 `json:"degraded,omitempty"`
	CommittedAt   time.Time             `json:"committed_at"`
}

// NewSuggestionResponse maps a suggestion. The degraded flag is only shown when exposeDegraded is set.
func NewSuggestionResponse(ai domain.AIResponse, exposeDegraded bool) SuggestionResponse {
	out := SuggestionResponse{
		Priority:      ai.Priority,
		PriorityLabel: ai.Priority.Label(),
		Justification: ai.Justification,
		Contested:     ai.Contested,
		ReceivedAt:    ai.ReceivedAt,
	}
	if exposeDegraded {
		degraded := ai.Degraded
		out.Degraded = &degraded
	}
	return out
}

// NewDraftResponse maps a typed draft.
func NewDraftResponse(d domain.Draft, exposeDegraded bool) DraftResponse {
	var out DraftResponse
	if d.BasicInfo != nil {
		out.BasicInfo = &BasicInfoRequest{
			Title:         d.BasicInfo.Title,
			ReporterName:  d.BasicInfo.ReporterName,
			ReporterEmail: d.BasicInfo.ReporterEmail,
			Category:      d.BasicInfo.Category,
			Description:   d.BasicInfo.Description,
		}
	}
	if d.AffectedScope != nil {
		out.AffectedScope = &AffectedScopeRequest{AffectedParty: d.AffectedScope.AffectedParty}
	}
	if d.BlockingImpact != nil {
		blocking := d.BlockingImpact.FullyBlocking
		out.BlockingImpact = &blocking
	}
	if d.AIResponse != nil {
		ai := NewSuggestionResponse(*d.AIResponse, exposeDegraded)
		out.AIResponse = &ai
	}
	if d.Contestation != nil {
		out.Contestation = &ContestRequest{
			Priority:      string(d.Contestation.UserPriority),
			Justification: d.Contestation.Justification,
		}
	}
	return out
}

// NewStageResponse maps a stage view.
func NewStageResponse(sessionID string, v *wizard.StageView, exposeDegraded bool) StageResponse {
	return StageResponse{
		SessionID:   sessionID,
		Stage:       v.Stage,
		Negotiation: v.Negotiation,
		Draft:       NewDraftResponse(v.Draft, exposeDegraded),
	}
}

// NewSummaryResponse maps a session summary.
func NewSummaryResponse(s *wizard.Summary, exposeDegraded bool) SummaryResponse {
	out := SummaryResponse{
		SessionID:   s.SessionID,
		Negotiation: s.Negotiation,
		Next:        s.Next,
		Draft:       NewDraftResponse(s.Draft, exposeDegraded),
	}
	if s.Outcome != nil {
		out.Outcome = &OutcomeResponse{
			Priority:      s.Outcome.Priority,
			PriorityLabel: s.Outcome.Priority.Label(),
			Justification: s.Outcome.Justification,
			Contested:     s.Outcome.Contested,
		}
	}
	return out
}

// NewReceiptResponse maps a commit receipt.
func NewReceiptResponse(r *wizard.Receipt, exposeDegraded bool) ReceiptResponse {
	out := ReceiptResponse{
		SessionID:     r.SessionID,
		Target:        r.Target,
		Priority:      r.Priority,
		PriorityLabel: r.Priority.Label(),
		Justification: r.Justification,
		Contested:     r.Contested,
		CommittedAt:   r.CommittedAt,
	}
	if exposeDegraded {
		degraded := r.Degraded
		out.Degraded = &degraded
	}
	return out
}
