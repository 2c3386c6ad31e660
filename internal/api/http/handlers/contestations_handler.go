package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/interfix/helpdesk/internal/api/dto"
	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/service"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// ContestationsHandler exposes disputes on committed tickets.
type ContestationsHandler struct {
	service *service.ContestationService
}

// NewContestationsHandler constructs handler.
func NewContestationsHandler(svc *service.ContestationService) *ContestationsHandler {
	return &ContestationsHandler{service: svc}
}

// List GET /contestations.
func (h *ContestationsHandler) List(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	records, err := h.service.List(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": contestationList(records)})
}

// ListByTicket GET /contestations/ticket/:ticketID.
func (h *ContestationsHandler) ListByTicket(c *fiber.Ctx) error {
	ticketID, err := parseID(c, "ticketID")
	if err != nil {
		return err
	}
	records, err := h.service.ListByTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": contestationList(records)})
}

// Get GET /contestations/:id.
func (h *ContestationsHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	record, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewContestationResponse(record)})
}

// Create POST /contestations. Without user_id the caller is the author.
func (h *ContestationsHandler) Create(c *fiber.Ctx) error {
	var req dto.ContestationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == 0 {
		if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
			req.UserID = principal.User.ID
		}
	}
	record, err := h.service.Create(c.UserContext(), service.ContestationInput{
		TicketID:      req.TicketID,
		UserID:        req.UserID,
		Justification: req.Justification,
		Kind:          req.Kind,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewContestationResponse(record)})
}

// Update PUT /contestations/:id.
func (h *ContestationsHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ContestationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.service.Update(c.UserContext(), id, service.ContestationInput{
		Justification: req.Justification,
		Kind:          req.Kind,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewContestationResponse(record)})
}

// Delete DELETE /contestations/:id.
func (h *ContestationsHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func contestationList(records []domain.ContestationRecord) []dto.ContestationResponse {
	items := make([]dto.ContestationResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.NewContestationResponse(&records[i]))
	}
	return items
}
