package service

import (
	"context"

	"github.com/spec-kit/walkup-queue/internal/api/dto"
	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/repository"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// Presenter renders tickets for the outside world. Identities are resolved
// to display names and never exposed directly.
type Presenter struct {
	identities repository.IdentityRepository
}

// NewPresenter creates a presenter resolving names through identities.
func NewPresenter(identities repository.IdentityRepository) *Presenter {
	return &Presenter{identities: identities}
}

// Ticket renders a single ticket.
func (p *Presenter) Ticket(ctx context.Context, ticket domain.Ticket) (dto.TicketResponse, error) {
	out, err := p.Tickets(ctx, []domain.Ticket{ticket})
	if err != nil {
		return dto.TicketResponse{}, err
	}
	return out[0], nil
}

// Tickets renders a list, resolving each distinct identity once.
func (p *Presenter) Tickets(ctx context.Context, tickets []domain.Ticket) ([]dto.TicketResponse, error) {
	names := make(map[string]string)
	out := make([]dto.TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		requesterName, err := p.displayName(ctx, names, ticket.RequesterID)
		if err != nil {
			return nil, err
		}
		resp := dto.TicketResponse{
			ID:            ticket.ID,
			RequesterID:   ticket.RequesterID,
			RequesterName: requesterName,
			Location:      ticket.Location,
			Category:      ticket.Category,
			SubCategory:   ticket.SubCategory,
			Note:          ticket.Note,
			Status:        ticket.Status,
			CreatedAt:     ticket.CreatedAt,
			StartedAt:     ticket.StartedAt,
			ClosedAt:      ticket.ClosedAt,
		}
		if ticket.AssignedStaffID != nil {
			staffName, err := p.displayName(ctx, names, *ticket.AssignedStaffID)
			if err != nil {
				return nil, err
			}
			resp.AssignedStaffName = &staffName
		}
		out = append(out, resp)
	}
	return out, nil
}

// Page renders a page of tickets into the paginated envelope.
func (p *Presenter) Page(ctx context.Context, page TicketPage) (dto.TicketPage, error) {
	items, err := p.Tickets(ctx, page.Items)
	if err != nil {
		return dto.TicketPage{}, err
	}
	return dto.TicketPage{
		Items:      items,
		Page:       page.Page,
		Size:       page.Size,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	}, nil
}

// Summary renders a visit summary.
func (p *Presenter) Summary(summary VisitSummary) dto.VisitSummaryResponse {
	resp := dto.VisitSummaryResponse{
		RequesterID:   summary.Requester.ID,
		RequesterName: summary.Requester.DisplayName(),
		Total:         summary.Total,
		Categories:    make([]dto.CategoryCountResponse, 0, len(summary.Counts)),
	}
	for _, count := range summary.Counts {
		resp.Categories = append(resp.Categories, dto.CategoryCountResponse{
			Category: count.Category,
			Count:    count.Count,
		})
	}
	return resp
}

func (p *Presenter) displayName(ctx context.Context, cache map[string]string, id string) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	name := "DNI: " + id
	identity, err := p.identities.GetByID(ctx, id)
	switch {
	case err == nil:
		name = identity.DisplayName()
	case !apperrors.IsNotFound(err):
		return "", err
	}
	cache[id] = name
	return name, nil
}
