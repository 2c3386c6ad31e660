// Package draft keeps in-progress wizard data, one namespaced entry per session.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/interfix/helpdesk/internal/domain"
)

// ErrUnavailable wraps every failure of the underlying storage medium.
// A save that returns it must be treated as "not saved".
var ErrUnavailable = errors.New("draft store unavailable")

// Store persists wizard stages scoped by session id.
type Store interface {
	// SaveStage overwrites the payload of stage and stamps it with the store clock.
	SaveStage(ctx context.Context, sessionID string, stage domain.Stage, payload any) error
	// GetStage returns nil, nil when the stage was never saved.
	GetStage(ctx context.Context, sessionID string, stage domain.Stage) (*Entry, error)
	// GetAll returns an empty snapshot when nothing is saved.
	GetAll(ctx context.Context, sessionID string) (Snapshot, error)
	// DropStages removes the listed stages and keeps the rest of the session.
	DropStages(ctx context.Context, sessionID string, stages ...domain.Stage) error
	Clear(ctx context.Context, sessionID string) error
}

// Entry is one saved stage.
type Entry struct {
	Payload json.RawMessage `json:"payload"`
	SavedAt time.Time       `json:"saved_at"`
}

// Snapshot maps every saved stage of a session to its entry.
type Snapshot map[domain.Stage]Entry

// Decode unmarshals the payload of stage into out. It reports false when the stage is absent.
func (s Snapshot) Decode(stage domain.Stage, out any) (bool, error) {
	entry, ok := s[stage]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", stage, err)
	}
	return true, nil
}

// Draft converts the snapshot into the typed wizard draft.
func (s Snapshot) Draft() (domain.Draft, error) {
	var d domain.Draft

	var session domain.SessionInfo
	if ok, err := s.Decode(domain.StageSession, &session); err != nil {
		return d, err
	} else if ok {
		d.Session = &session
	}

	var basic domain.BasicInfo
	if ok, err := s.Decode(domain.StageBasicInfo, &basic); err != nil {
		return d, err
	} else if ok {
		basic.SavedAt = s[domain.StageBasicInfo].SavedAt
		d.BasicInfo = &basic
	}

	var scope domain.AffectedScope
	if ok, err := s.Decode(domain.StageAffectedScope, &scope); err != nil {
		return d, err
	} else if ok {
		scope.SavedAt = s[domain.StageAffectedScope].SavedAt
		d.AffectedScope = &scope
	}

	var impact domain.BlockingImpact
	if ok, err := s.Decode(domain.StageBlockingImpact, &impact); err != nil {
		return d, err
	} else if ok {
		impact.SavedAt = s[domain.StageBlockingImpact].SavedAt
		d.BlockingImpact = &impact
	}

	var ai domain.AIResponse
	if ok, err := s.Decode(domain.StageAIResponse, &ai); err != nil {
		return d, err
	} else if ok {
		ai.SavedAt = s[domain.StageAIResponse].SavedAt
		d.AIResponse = &ai
	}

	var contest domain.Contestation
	if ok, err := s.Decode(domain.StageContestation, &contest); err != nil {
		return d, err
	} else if ok {
		contest.SavedAt = s[domain.StageContestation].SavedAt
		d.Contestation = &contest
	}

	return d, nil
}

func encodeEntry(payload any, now time.Time) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode payload: %w", err)
	}
	return Entry{Payload: raw, SavedAt: now}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
