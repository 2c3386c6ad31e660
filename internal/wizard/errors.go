package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/interfix/helpdesk/internal/domain"
)

var (
	// ErrSuggestionRequired is matched by SuggestionRequiredError.
	ErrSuggestionRequired = errors.New("a priority suggestion is required first")
	// ErrCommitRejected is matched by CommitError.
	ErrCommitRejected = errors.New("ticket commit rejected")
	// ErrSessionNotFound covers both unknown sessions and sessions opened by another user.
	ErrSessionNotFound = errors.New("wizard session not found")
)

// ValidationError lists field-level problems of one stage submission.
type ValidationError struct {
	Stage  domain.Stage
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("invalid %s: %s", e.Stage, strings.Join(parts, ", "))
}

// PriorStageMissingError is returned when a stage is entered before its predecessor was saved.
type PriorStageMissingError struct {
	Stage      domain.Stage
	RedirectTo domain.Stage
}

func (e *PriorStageMissingError) Error() string {
	return fmt.Sprintf("cannot enter %s before %s is saved", e.Stage, e.RedirectTo)
}

// SuggestionRequiredError carries the suggestion produced when a contestation
// arrived before any suggestion existed.
type SuggestionRequiredError struct {
	Suggestion domain.AIResponse
}

func (e *SuggestionRequiredError) Error() string { return ErrSuggestionRequired.Error() }

func (e *SuggestionRequiredError) Is(target error) bool { return target == ErrSuggestionRequired }

// CommitError reports a failed terminal write. The draft is left untouched.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit failed: %v", e.Err) }

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommitRejected }
