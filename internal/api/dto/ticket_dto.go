package dto

import (
	"time"

	"github.com/spec-kit/walkup-queue/internal/domain"
)

// SubmitTicketRequest is the kiosk payload.
type SubmitTicketRequest struct {
	RequesterID string          `json:"requester_id"`
	Location    domain.Location `json:"location"`
	Category    domain.Category `json:"category"`
	Note        string          `json:"note"`
}

// CloseTicketRequest carries optional corrections applied at closure.
type CloseTicketRequest struct {
	CorrectedCategory *domain.Category    `json:"corrected_category"`
	SubCategory       *domain.SubCategory `json:"sub_category"`
	Note              string              `json:"note"`
}

// CancelTicketRequest payload.
type CancelTicketRequest struct {
	Reason string `json:"reason"`
}

// EditTicketRequest payload.
type EditTicketRequest struct {
	Category *domain.Category `json:"category"`
	Note     string           `json:"note"`
}

// TicketResponse is the outward view of a ticket. Identities appear only as display names.
type TicketResponse struct {
	ID                int64               `json:"id"`
	RequesterID       string              `json:"requester_id"`
	RequesterName     string              `json:"requester_name"`
	Location          domain.Location     `json:"location"`
	Category          domain.Category     `json:"category"`
	SubCategory       *domain.SubCategory `json:"sub_category"`
	Note              string              `json:"note"`
	Status            domain.TicketStatus `json:"status"`
	AssignedStaffName *string             `json:"assigned_staff_name,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	StartedAt         *time.Time          `json:"started_at,omitempty"`
	ClosedAt          *time.Time          `json:"closed_at,omitempty"`
}

// TicketPage is the paginated envelope for ticket listings.
type TicketPage struct {
	Items      []TicketResponse `json:"items"`
	Page       int              `json:"page"`
	Size       int              `json:"size"`
	TotalItems int64            `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

// CategoryCountResponse is one row of a visit summary.
type CategoryCountResponse struct {
	Category domain.Category `json:"category"`
	Count    int64           `json:"count"`
}

// VisitSummaryResponse aggregates a requester's tickets per category.
type VisitSummaryResponse struct {
	RequesterID   string                  `json:"requester_id"`
	RequesterName string                  `json:"requester_name"`
	Total         int64                   `json:"total"`
	Categories    []CategoryCountResponse `json:"categories"`
}

// ImportResultResponse reports the outcome of a bulk import.
type ImportResultResponse struct {
	Created   int `json:"created"`
	Duplicate int `json:"duplicate"`
	Skipped   int `json:"skipped"`
}
