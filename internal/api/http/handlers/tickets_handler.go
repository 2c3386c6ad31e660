package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/interfix/helpdesk/internal/api/dto"
	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/repository"
	"github.com/interfix/helpdesk/internal/service"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages committed ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	history *service.HistoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, history *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, history: history}
}

// CreateTicket POST /tickets. Without reporter_id the caller is the reporter.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reporter := req.ReporterID
	if reporter == nil {
		reporter = principal.UserID()
	}
	priority := req.Priority
	if priority != "" && !priority.Valid() {
		if parsed, ok := domain.ParsePriority(string(priority)); ok {
			priority = parsed
		}
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), principal.UserID(), service.TicketCreateInput{
		ReporterID:      reporter,
		Title:           req.Title,
		Category:        req.Category,
		Description:     req.Description,
		AffectedParty:   req.AffectedParty,
		BlocksWorkFully: bool(req.BlocksWorkFully),
		Priority:        priority,
		Justification:   req.Justification,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, page, pageSize := parseTicketQuery(c)
	tickets, total, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), principal.UserID(), id, service.TicketUpdateInput{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		Solution:    req.Solution,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), principal.UserID(), id, service.TicketStatusInput{
		Status:       req.Status,
		Solution:     req.Solution,
		TechnicianID: req.TechnicianID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.service.GetTicket(c.UserContext(), id); err != nil {
		return err
	}
	entries, err := h.history.ListByTicket(c.UserContext(), id, repository.HistoryFilter{
		ChangeType: domain.TicketChangeType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
		Limit:      parseInt(c.Query("limit"), 0),
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewTicketHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /tickets/stats/summary.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		Total:      stats.Total,
		ByStatus:   stats.ByStatus,
		ByPriority: stats.ByPriority,
	}})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, int, int) {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			if p, ok := domain.ParsePriority(part); ok {
				filter.Priorities = append(filter.Priorities, p)
			} else {
				filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(strings.TrimSpace(part))))
			}
		}
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	if reporter := parseInt64(c.Query("reporter_id")); reporter != nil {
		filter.ReporterID = reporter
	}
	if technician := parseInt64(c.Query("technician_id")); technician != nil {
		filter.TechnicianID = technician
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize
}

func parseID(c *fiber.Ctx, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+param, map[string]any{param: c.Params(param)})
	}
	return id, nil
}

func parseInt64(val string) *int64 {
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil || parsed <= 0 {
		return nil
	}
	return &parsed
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
