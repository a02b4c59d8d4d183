package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusWaiting    TicketStatus = "WAITING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
	// TicketStatusNoShow is declared but no operation transitions into it yet.
	TicketStatusNoShow    TicketStatus = "NO_SHOW"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// ActiveStatuses are the states covered by the one-active-ticket-per-requester rule.
var ActiveStatuses = []TicketStatus{TicketStatusWaiting, TicketStatusInProgress}

// Valid reports whether s is a declared status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusWaiting, TicketStatusInProgress, TicketStatusClosed, TicketStatusNoShow, TicketStatusCancelled:
		return true
	}
	return false
}

// Location enumerates where a request originated.
type Location string

const (
	LocationOnSite   Location = "ON_SITE"
	LocationField    Location = "FIELD"
	LocationWhatsApp Location = "WHATSAPP"
)

func (l Location) Valid() bool {
	switch l {
	case LocationOnSite, LocationField, LocationWhatsApp:
		return true
	}
	return false
}

// Category enumerates the service types. Declaration order is the queue priority.
type Category string

const (
	CategoryPayslipDelivery      Category = "PAYSLIP_DELIVERY"
	CategoryVacationRequest      Category = "VACATION_REQUEST"
	CategoryBadgeQR              Category = "BADGE_QR"
	CategoryAbsenceJustification Category = "ABSENCE_JUSTIFICATION"
	CategoryInformation          Category = "INFORMATION"
	CategoryComplaint            Category = "COMPLAINT"
)

// Categories lists every category in queue priority order.
var Categories = []Category{
	CategoryPayslipDelivery,
	CategoryVacationRequest,
	CategoryBadgeQR,
	CategoryAbsenceJustification,
	CategoryInformation,
	CategoryComplaint,
}

// Rank returns the category's queue priority, or -1 when undeclared.
func (c Category) Rank() int {
	for i, candidate := range Categories {
		if candidate == c {
			return i
		}
	}
	return -1
}

func (c Category) Valid() bool {
	return c.Rank() >= 0
}

// SubCategory refines a COMPLAINT ticket.
type SubCategory string

const (
	SubCategoryPayroll             SubCategory = "PAYROLL"
	SubCategorySupervisorTreatment SubCategory = "SUPERVISOR_TREATMENT"
	SubCategoryTransport           SubCategory = "TRANSPORT"
	SubCategoryCafeteria           SubCategory = "CAFETERIA"
	SubCategoryFacilities          SubCategory = "FACILITIES"
	SubCategoryOther               SubCategory = "OTHER"
)

func (s SubCategory) Valid() bool {
	switch s {
	case SubCategoryPayroll, SubCategorySupervisorTreatment, SubCategoryTransport,
		SubCategoryCafeteria, SubCategoryFacilities, SubCategoryOther:
		return true
	}
	return false
}

const (
	// RequesterIDLength is the fixed length of a person identifier.
	RequesterIDLength = 8
	// MaxNoteLength bounds the free text accepted per submission.
	MaxNoteLength = 500

	noteSeparator       = " | "
	closureMarker       = "Closure: "
	cancellationMarker  = "Cancelled: "
	DefaultCancelReason = "No reason given"
	BulkImportMarker    = "Bulk import. "
)

// Ticket is one walk-up service request. Values are never mutated in place;
// transitions return a new Ticket that the store persists.
type Ticket struct {
	ID              int64
	RequesterID     string
	Location        Location
	Category        Category
	SubCategory     *SubCategory
	Note            string
	Status          TicketStatus
	AssignedStaffID *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	ClosedAt        *time.Time
}

// NewWaitingTicket builds a fresh kiosk submission.
func NewWaitingTicket(requesterID string, location Location, category Category, note string, now time.Time) Ticket {
	return Ticket{
		RequesterID: requesterID,
		Location:    location,
		Category:    category,
		Note:        strings.TrimSpace(note),
		Status:      TicketStatusWaiting,
		CreatedAt:   now,
	}
}

// NewImportedTicket builds an already closed historical record.
func NewImportedTicket(requesterID string, location Location, category Category, rawNote, staffID string, now time.Time) Ticket {
	staff := staffID
	return Ticket{
		RequesterID:     requesterID,
		Location:        location,
		Category:        category,
		Note:            BulkImportMarker + rawNote,
		Status:          TicketStatusClosed,
		AssignedStaffID: &staff,
		CreatedAt:       now,
		StartedAt:       timePtr(now),
		ClosedAt:        timePtr(now),
	}
}

// IsActive reports whether the ticket counts against the requester's single active slot.
func (t Ticket) IsActive() bool {
	return t.Status == TicketStatusWaiting || t.Status == TicketStatusInProgress
}

// Start moves a WAITING ticket to IN_PROGRESS under staffID.
func (t Ticket) Start(staffID string, now time.Time) (Ticket, error) {
	if t.Status != TicketStatusWaiting {
		return Ticket{}, apperrors.NewConflict("ticket is already being served or has finished", statusDetails(t))
	}
	next := t.clone()
	staff := staffID
	next.Status = TicketStatusInProgress
	next.AssignedStaffID = &staff
	next.StartedAt = timePtr(now)
	return next, nil
}

// CloseInput carries the optional corrections applied at closure.
type CloseInput struct {
	CorrectedCategory *Category
	SubCategory       *SubCategory
	Note              string
}

// Close finishes an IN_PROGRESS ticket, validating the subcategory against the effective category.
func (t Ticket) Close(input CloseInput, now time.Time) (Ticket, error) {
	if t.Status != TicketStatusInProgress {
		return Ticket{}, apperrors.NewConflict("ticket must be IN_PROGRESS to be closed", statusDetails(t))
	}
	next := t.clone()
	if input.CorrectedCategory != nil {
		next.Category = *input.CorrectedCategory
	}
	if next.Category == CategoryComplaint {
		if input.SubCategory == nil && next.SubCategory == nil {
			return Ticket{}, apperrors.NewInvalidRequest("a COMPLAINT ticket requires a subcategory", map[string]any{
				"ticket_id": t.ID,
			})
		}
		if input.SubCategory != nil {
			sub := *input.SubCategory
			next.SubCategory = &sub
		}
	} else {
		next.SubCategory = nil
	}
	next.Status = TicketStatusClosed
	next.ClosedAt = timePtr(now)
	if note := strings.TrimSpace(input.Note); note != "" {
		next.Note = appendNote(next.Note, closureMarker+note)
	}
	return next, nil
}

// Cancel withdraws a WAITING or IN_PROGRESS ticket. Re-cancelling is a conflict.
func (t Ticket) Cancel(reason string, now time.Time) (Ticket, error) {
	switch t.Status {
	case TicketStatusClosed:
		return Ticket{}, apperrors.NewConflict("cannot cancel a closed ticket", statusDetails(t))
	case TicketStatusCancelled:
		return Ticket{}, apperrors.NewConflict("ticket is already cancelled", statusDetails(t))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}
	next := t.clone()
	next.Status = TicketStatusCancelled
	next.ClosedAt = timePtr(now)
	next.Note = appendNote(next.Note, cancellationMarker+reason)
	return next, nil
}

// EditInput carries pre-closure corrections.
type EditInput struct {
	Category *Category
	Note     string
}

// Edit corrects a ticket that has not been closed. A new category always clears the subcategory
// and a non-empty note replaces the stored one.
func (t Ticket) Edit(input EditInput) (Ticket, error) {
	if t.Status == TicketStatusClosed {
		return Ticket{}, apperrors.NewConflict("cannot edit a closed ticket; create a new one", statusDetails(t))
	}
	next := t.clone()
	if input.Category != nil {
		next.Category = *input.Category
		next.SubCategory = nil
	}
	if note := strings.TrimSpace(input.Note); note != "" {
		next.Note = note
	}
	return next, nil
}

// SubCategoryConsistent reports whether a subcategory only appears on a COMPLAINT ticket.
func (t Ticket) SubCategoryConsistent() bool {
	if t.SubCategory != nil {
		return t.Category == CategoryComplaint
	}
	return true
}

// CategoryCount aggregates a requester's visits for one category.
type CategoryCount struct {
	Category Category
	Count    int64
}

func (t Ticket) clone() Ticket {
	next := t
	if t.SubCategory != nil {
		sub := *t.SubCategory
		next.SubCategory = &sub
	}
	if t.AssignedStaffID != nil {
		staff := *t.AssignedStaffID
		next.AssignedStaffID = &staff
	}
	if t.StartedAt != nil {
		next.StartedAt = timePtr(*t.StartedAt)
	}
	if t.ClosedAt != nil {
		next.ClosedAt = timePtr(*t.ClosedAt)
	}
	return next
}

func appendNote(current, addition string) string {
	if current == "" {
		return addition
	}
	return current + noteSeparator + addition
}

func statusDetails(t Ticket) map[string]any {
	return map[string]any{"ticket_id": t.ID, "status": t.Status}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
