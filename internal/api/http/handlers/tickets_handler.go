package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/walkup-queue/internal/api/dto"
	"github.com/spec-kit/walkup-queue/internal/auth"
	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/importer"
	"github.com/spec-kit/walkup-queue/internal/service"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// TicketsHandler serves the kiosk, desk and reporting ticket endpoints.
type TicketsHandler struct {
	queue          *service.QueueService
	imports        *service.ImportService
	presenter      *service.Presenter
	importMaxBytes int64
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(queue *service.QueueService, imports *service.ImportService, presenter *service.Presenter, importMaxBytes int) *TicketsHandler {
	return &TicketsHandler{
		queue:          queue,
		imports:        imports,
		presenter:      presenter,
		importMaxBytes: int64(importMaxBytes),
	}
}

// Submit POST /api/tickets.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}
	ticket, err := h.queue.Submit(c.UserContext(), service.SubmitInput{
		RequesterID: req.RequesterID,
		Location:    req.Location,
		Category:    req.Category,
		Note:        req.Note,
	})
	if err != nil {
		return err
	}
	return h.respondTicket(c, fiber.StatusCreated, ticket)
}

// Waiting GET /api/tickets/waiting.
func (h *TicketsHandler) Waiting(c *fiber.Ctx) error {
	tickets, err := h.queue.WaitingQueue(c.UserContext())
	if err != nil {
		return err
	}
	return h.respondTickets(c, tickets)
}

// InProgress GET /api/tickets/in-progress.
func (h *TicketsHandler) InProgress(c *fiber.Ctx) error {
	tickets, err := h.queue.InProgressList(c.UserContext())
	if err != nil {
		return err
	}
	return h.respondTickets(c, tickets)
}

// Start POST /api/tickets/:id/start. The caller becomes the assigned staff member.
func (h *TicketsHandler) Start(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	principal, _ := auth.PrincipalFromContext(c)
	ticket, err := h.queue.StartService(c.UserContext(), id, principal.ID())
	if err != nil {
		return err
	}
	return h.respondTicket(c, fiber.StatusOK, ticket)
}

// Close POST /api/tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.CloseTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewInvalidRequest("invalid payload", nil)
		}
	}
	ticket, err := h.queue.CloseService(c.UserContext(), id, domain.CloseInput{
		CorrectedCategory: req.CorrectedCategory,
		SubCategory:       req.SubCategory,
		Note:              req.Note,
	})
	if err != nil {
		return err
	}
	return h.respondTicket(c, fiber.StatusOK, ticket)
}

// Cancel POST /api/tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.CancelTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewInvalidRequest("invalid payload", nil)
		}
	}
	ticket, err := h.queue.Cancel(c.UserContext(), id, req.Reason)
	if err != nil {
		return err
	}
	return h.respondTicket(c, fiber.StatusOK, ticket)
}

// Edit PUT /api/tickets/:id.
func (h *TicketsHandler) Edit(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.EditTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}
	ticket, err := h.queue.Edit(c.UserContext(), id, domain.EditInput{Category: req.Category, Note: req.Note})
	if err != nil {
		return err
	}
	return h.respondTicket(c, fiber.StatusOK, ticket)
}

// Mine GET /api/tickets/mine. Lets a reloading desk client recover the ticket it was serving.
func (h *TicketsHandler) Mine(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	ticket, err := h.queue.ActiveTicketFor(c.UserContext(), principal.ID())
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return h.respondTicket(c, fiber.StatusOK, *ticket)
}

// Search GET /api/tickets/search.
func (h *TicketsHandler) Search(c *fiber.Ctx) error {
	query, err := parseSearchQuery(c)
	if err != nil {
		return err
	}
	if requester := strings.TrimSpace(c.Query("requester_id")); requester != "" {
		query.RequesterID = &requester
	}
	page, err := h.queue.Search(c.UserContext(), query)
	if err != nil {
		return err
	}
	return h.respondPage(c, page)
}

// History GET /api/tickets/history/:requesterId.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	query, err := parseSearchQuery(c)
	if err != nil {
		return err
	}
	page, err := h.queue.History(c.UserContext(), c.Params("requesterId"), query)
	if err != nil {
		return err
	}
	return h.respondPage(c, page)
}

// Summary GET /api/tickets/summary/:requesterId.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.queue.VisitSummary(c.UserContext(), c.Params("requesterId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.presenter.Summary(summary)})
}

// Import POST /api/tickets/import (multipart: file, location, category).
func (h *TicketsHandler) Import(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewInvalidRequest("file is required", nil)
	}
	if h.importMaxBytes > 0 && header.Size > h.importMaxBytes {
		return apperrors.NewInvalidRequest("file is too large", map[string]any{"max_bytes": h.importMaxBytes})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	rows, err := importer.ReadRows(file)
	if err != nil {
		return apperrors.NewInvalidRequest("unreadable workbook", map[string]any{"file": header.Filename})
	}

	principal, _ := auth.PrincipalFromContext(c)
	result, err := h.imports.Import(c.UserContext(), service.ImportRequest{
		Rows:     rows,
		Location: domain.Location(strings.TrimSpace(c.FormValue("location"))),
		Category: domain.Category(strings.TrimSpace(c.FormValue("category"))),
		StaffID:  principal.ID(),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ImportResultResponse{
		Created:   result.Created,
		Duplicate: result.Duplicate,
		Skipped:   result.Skipped,
	}})
}

func (h *TicketsHandler) respondTicket(c *fiber.Ctx, status int, ticket domain.Ticket) error {
	resp, err := h.presenter.Ticket(c.UserContext(), ticket)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": resp})
}

func (h *TicketsHandler) respondTickets(c *fiber.Ctx, tickets []domain.Ticket) error {
	resp, err := h.presenter.Tickets(c.UserContext(), tickets)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

func (h *TicketsHandler) respondPage(c *fiber.Ctx, page service.TicketPage) error {
	resp, err := h.presenter.Page(c.UserContext(), page)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func ticketID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidRequest("invalid ticket id", map[string]any{"ticket_id": raw})
	}
	return id, nil
}

func parseSearchQuery(c *fiber.Ctx) (service.SearchQuery, error) {
	query := service.SearchQuery{
		Page: c.QueryInt("page", 0),
		Size: c.QueryInt("size", 0),
		All:  c.QueryBool("all", false),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := domain.TicketStatus(strings.ToUpper(status))
		query.Status = &s
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		cat := domain.Category(strings.ToUpper(category))
		query.Category = &cat
	}
	var err error
	if query.DateFrom, err = parseDate(c, "date_from"); err != nil {
		return service.SearchQuery{}, err
	}
	if query.DateTo, err = parseDate(c, "date_to"); err != nil {
		return service.SearchQuery{}, err
	}
	return query, nil
}

func parseDate(c *fiber.Ctx, key string) (*time.Time, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return nil, apperrors.NewInvalidRequest("invalid "+key+", expected YYYY-MM-DD", map[string]any{key: val})
	}
	return &t, nil
}
