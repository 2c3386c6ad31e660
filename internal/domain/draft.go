package domain

import "time"

// Stage identifies one step of the ticket submission wizard.
type Stage string

const (
	StageBasicInfo      Stage = "basic_info"
	StageAffectedScope  Stage = "affected_scope"
	StageBlockingImpact Stage = "blocking_impact"
	StageAIResponse     Stage = "ai_response"
	StageContestation   Stage = "contestation"

	// StageSession holds the session header. It is not a wizard step.
	StageSession Stage = "session"
)

// Stages lists the wizard stages in order.
var Stages = []Stage{StageBasicInfo, StageAffectedScope, StageBlockingImpact, StageAIResponse, StageContestation}

// ParseStage resolves a stage identifier; URL forms with dashes are accepted.
func ParseStage(raw string) (Stage, bool) {
	for _, s := range Stages {
		if string(s) == raw || s.Slug() == raw {
			return s, true
		}
	}
	return "", false
}

// Slug is the dashed form used in routes.
func (s Stage) Slug() string {
	out := []byte(s)
	for i, b := range out {
		if b == '_' {
			out[i] = '-'
		}
	}
	return string(out)
}

// Index is the zero-based position of s, or -1.
func (s Stage) Index() int {
	for i, candidate := range Stages {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Previous returns the stage that must be saved before s can be entered.
func (s Stage) Previous() (Stage, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return Stages[idx-1], true
}

// SessionInfo records who opened a wizard session.
type SessionInfo struct {
	OwnerID   int64     `json:"owner_id"`
	StartedAt time.Time `json:"started_at"`
}

// BasicInfo is the first wizard stage.
type BasicInfo struct {
	Title         string    `json:"title"`
	ReporterName  string    `json:"reporter_name"`
	ReporterEmail string    `json:"reporter_email"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	SavedAt       time.Time `json:"-"`
}

// AffectedScope records who or what is impacted.
type AffectedScope struct {
	AffectedParty string    `json:"affected_party"`
	SavedAt       time.Time `json:"-"`
}

// BlockingImpact records whether work is fully blocked.
type BlockingImpact struct {
	FullyBlocking bool      `json:"fully_blocking"`
	SavedAt       time.Time `json:"-"`
}

// AIResponse is the priority suggested by the classification service.
type AIResponse struct {
	Priority      TicketPriority `json:"priority"`
	Justification string         `json:"justification"`
	ReceivedAt    time.Time      `json:"received_at"`
	Accepted      bool           `json:"accepted"`
	Contested     bool           `json:"contested"`
	Degraded      bool           `json:"degraded"`
	SavedAt       time.Time      `json:"-"`
}

// Contestation is the user's override of the suggested priority.
type Contestation struct {
	UserPriority  TicketPriority `json:"user_priority"`
	Justification string         `json:"justification"`
	SavedAt       time.Time      `json:"-"`
}

// Draft is the typed view of every stage saved for one wizard session.
type Draft struct {
	Session        *SessionInfo
	BasicInfo      *BasicInfo
	AffectedScope  *AffectedScope
	BlockingImpact *BlockingImpact
	AIResponse     *AIResponse
	Contestation   *Contestation
}

// Has reports whether stage s has been saved.
func (d Draft) Has(s Stage) bool {
	switch s {
	case StageBasicInfo:
		return d.BasicInfo != nil
	case StageAffectedScope:
		return d.AffectedScope != nil
	case StageBlockingImpact:
		return d.BlockingImpact != nil
	case StageAIResponse:
		return d.AIResponse != nil
	case StageContestation:
		return d.Contestation != nil
	}
	return false
}

// Empty reports whether no stage has been saved.
func (d Draft) Empty() bool {
	for _, s := range Stages {
		if d.Has(s) {
			return false
		}
	}
	return true
}

// Collected reports whether the three data collection stages are present.
func (d Draft) Collected() bool {
	return d.BasicInfo != nil && d.AffectedScope != nil && d.BlockingImpact != nil
}

// Submission is the fully negotiated ticket handed to a committer.
type Submission struct {
	ReporterName    string
	ReporterEmail   string
	Title           string
	Category        string
	Description     string
	AffectedParty   string
	BlocksWorkFully bool
	Priority        TicketPriority
	Justification   string
	Contested       bool
	CreatedAt       time.Time
}
