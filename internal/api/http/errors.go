package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/interfix/helpdesk/internal/classification"
	"github.com/interfix/helpdesk/internal/draft"
	"github.com/interfix/helpdesk/internal/negotiation"
	"github.com/interfix/helpdesk/internal/wizard"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// toDomainError maps workflow errors onto the API error envelope.
func toDomainError(err error) *apperrors.DomainError {
	var (
		fiberErr      *fiber.Error
		validation    *wizard.ValidationError
		priorMissing  *wizard.PriorStageMissingError
		needSuggested *wizard.SuggestionRequiredError
		commitErr     *wizard.CommitError
		transition    *negotiation.TransitionError
	)
	switch {
	case errors.As(err, &fiberErr):
		return apperrors.NewDomainError(codeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	case errors.As(err, &validation):
		fields := make(map[string]any, len(validation.Fields))
		for k, v := range validation.Fields {
			fields[k] = v
		}
		return apperrors.NewDomainError("VALIDATION_FAILED", "invalid "+string(validation.Stage),
			http.StatusBadRequest, map[string]any{"stage": validation.Stage, "fields": fields})
	case errors.As(err, &priorMissing):
		return apperrors.NewDomainError("PRIOR_STAGE_MISSING", priorMissing.Error(),
			http.StatusConflict, map[string]any{"stage": priorMissing.Stage, "redirect_to": priorMissing.RedirectTo})
	case errors.As(err, &needSuggested):
		return apperrors.NewDomainError("SUGGESTION_REQUIRED", "review the suggested priority before contesting it",
			http.StatusConflict, map[string]any{
				"suggestion": fiber.Map{
					"priority":       needSuggested.Suggestion.Priority,
					"priority_label": needSuggested.Suggestion.Priority.Label(),
					"justification":  needSuggested.Suggestion.Justification,
				},
			})
	case errors.As(err, &commitErr):
		return apperrors.Wrap(err, "COMMIT_REJECTED", "the ticket could not be submitted; try again",
			http.StatusBadGateway, map[string]any{"retryable": true})
	case errors.Is(err, classification.ErrMalformedResponse):
		return apperrors.Wrap(err, "CLASSIFICATION_MALFORMED", "the classification service returned an unreadable reply",
			http.StatusBadGateway, map[string]any{"retryable": true})
	case errors.Is(err, draft.ErrUnavailable):
		return apperrors.Wrap(err, "DRAFT_UNAVAILABLE", "draft storage unavailable; your last step was not saved",
			http.StatusServiceUnavailable, map[string]any{"retryable": true})
	case errors.Is(err, wizard.ErrSessionNotFound):
		return apperrors.Wrap(err, "SESSION_NOT_FOUND", "wizard session not found", http.StatusNotFound, nil)
	case errors.As(err, &transition):
		return apperrors.NewDomainError("INVALID_TRANSITION", transition.Error(),
			http.StatusConflict, map[string]any{"from": transition.From, "event": transition.Event})
	case errors.Is(err, negotiation.ErrNotFinalized):
		return apperrors.NewDomainError("INVALID_TRANSITION", err.Error(), http.StatusConflict, nil)
	case errors.Is(err, negotiation.ErrIncompleteContestation):
		return apperrors.NewDomainError("VALIDATION_FAILED", err.Error(), http.StatusBadRequest, nil)
	}
	return apperrors.ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestTimeout:
		return "TIMEOUT"
	}
	if status >= 500 {
		return "INTERNAL_ERROR"
	}
	return "REQUEST_FAILED"
}
