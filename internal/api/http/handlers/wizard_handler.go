package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/interfix/helpdesk/internal/api/dto"
	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/wizard"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// WizardHandler drives the ticket submission wizard.
type WizardHandler struct {
	wizard         *wizard.Controller
	exposeDegraded bool
}

// NewWizardHandler constructs handler.
func NewWizardHandler(controller *wizard.Controller, exposeDegraded bool) *WizardHandler {
	return &WizardHandler{wizard: controller, exposeDegraded: exposeDegraded}
}

// Start POST /wizard/sessions.
func (h *WizardHandler) Start(c *fiber.Ctx) error {
	sid, err := h.wizard.Start(ownerContext(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{SessionID: sid, Next: domain.StageBasicInfo}})
}

// Summary GET /wizard/sessions/:sid.
func (h *WizardHandler) Summary(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	summary, err := h.wizard.Summary(ownerContext(c), sid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSummaryResponse(summary, h.exposeDegraded)})
}

// Abandon DELETE /wizard/sessions/:sid.
func (h *WizardHandler) Abandon(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.wizard.Abandon(ownerContext(c), sid); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Enter GET /wizard/sessions/:sid/stages/:stage.
func (h *WizardHandler) Enter(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	stage, ok := domain.ParseStage(c.Params("stage"))
	if !ok {
		return apperrors.NewNotFound("stage", map[string]any{"stage": c.Params("stage")})
	}
	view, err := h.wizard.Enter(ownerContext(c), sid, stage)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStageResponse(sid, view, h.exposeDegraded)})
}

// SubmitBasicInfo POST /wizard/sessions/:sid/basic-info.
func (h *WizardHandler) SubmitBasicInfo(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	var req dto.BasicInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	next, err := h.wizard.SubmitBasicInfo(ownerContext(c), sid, domain.BasicInfo{
		Title:         req.Title,
		ReporterName:  req.ReporterName,
		ReporterEmail: req.ReporterEmail,
		Category:      req.Category,
		Description:   req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"session_id": sid, "next": next}})
}

// SubmitAffectedScope POST /wizard/sessions/:sid/affected-scope.
func (h *WizardHandler) SubmitAffectedScope(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	var req dto.AffectedScopeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	next, err := h.wizard.SubmitAffectedScope(ownerContext(c), sid, domain.AffectedScope{AffectedParty: req.AffectedParty})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"session_id": sid, "next": next}})
}

// SubmitBlockingImpact POST /wizard/sessions/:sid/blocking-impact. Accepts a JSON
// boolean or a sim/não form value and answers with the priority suggestion.
func (h *WizardHandler) SubmitBlockingImpact(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	blocking, err := parseBlocking(c)
	if err != nil {
		return err
	}
	ai, err := h.wizard.SubmitBlockingImpact(ownerContext(c), sid, blocking)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"session_id": sid,
		"next":       domain.StageAIResponse,
		"suggestion": dto.NewSuggestionResponse(ai, h.exposeDegraded),
	}})
}

// Analyze POST /wizard/sessions/:sid/analyze.
func (h *WizardHandler) Analyze(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	ai, err := h.wizard.Analyze(ownerContext(c), sid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSuggestionResponse(ai, h.exposeDegraded)})
}

// Accept POST /wizard/sessions/:sid/accept.
func (h *WizardHandler) Accept(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	receipt, err := h.wizard.Accept(ownerContext(c), sid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReceiptResponse(receipt, h.exposeDegraded)})
}

// Contest POST /wizard/sessions/:sid/contest.
func (h *WizardHandler) Contest(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	var req dto.ContestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	receipt, err := h.wizard.Contest(ownerContext(c), sid, req.Priority, req.Justification)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReceiptResponse(receipt, h.exposeDegraded)})
}

// Commit POST /wizard/sessions/:sid/commit retries a failed terminal write.
func (h *WizardHandler) Commit(c *fiber.Ctx) error {
	sid, err := sessionID(c)
	if err != nil {
		return err
	}
	receipt, err := h.wizard.Commit(ownerContext(c), sid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReceiptResponse(receipt, h.exposeDegraded)})
}

// ownerContext binds the wizard session to the authenticated caller.
func ownerContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
		ctx = wizard.WithOwner(ctx, principal.User.ID)
	}
	return ctx
}

func sessionID(c *fiber.Ctx) (string, error) {
	raw := c.Params("sid")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.NewValidationError("invalid session id", map[string]any{"session_id": raw})
	}
	return id.String(), nil
}

func parseBlocking(c *fiber.Ctx) (*bool, error) {
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		var req dto.BlockingImpactRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, &wizard.ValidationError{Stage: domain.StageBlockingImpact, Fields: map[string]string{"fully_blocking": "expected sim or não"}}
		}
		if req.FullyBlocking == nil {
			return nil, nil
		}
		v := bool(*req.FullyBlocking)
		return &v, nil
	}
	raw := c.FormValue("fully_blocking")
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, ok := dto.ParseYesNo(raw)
	if !ok {
		return nil, &wizard.ValidationError{Stage: domain.StageBlockingImpact, Fields: map[string]string{"fully_blocking": "expected sim or não"}}
	}
	return &v, nil
}
