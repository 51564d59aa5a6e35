package pgstore

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"stall-ticket/model"
)

const appendTicketSql = `INSERT INTO tickets (ticket_id, issued_at, date, slot_start, slot_end, expires_at, method, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *Store) AppendTicket(ctx context.Context, ticket model.Ticket) error {
	_, err := s.Db.Exec(ctx, appendTicketSql,
		ticket.Id,
		pgtype.Timestamp{Time: ticket.IssuedAt, Valid: true},
		ticket.Date,
		ticket.SlotStart,
		ticket.SlotEnd,
		pgtype.Timestamp{Time: ticket.ExpiresAt, Valid: true},
		ticket.Method,
		ticket.Status,
	)
	return err
}

const findTicketSql = `SELECT ticket_id, issued_at, date, slot_start, slot_end, expires_at, method, status FROM tickets WHERE date = $1 AND ticket_id = $2`

func (s *Store) FindTicket(ctx context.Context, date, ticketId string) (model.Ticket, bool, error) {
	var (
		ticket    model.Ticket
		issuedAt  pgtype.Timestamp
		expiresAt pgtype.Timestamp
	)

	err := s.Db.QueryRow(ctx, findTicketSql, date, ticketId).
		Scan(&ticket.Id, &issuedAt, &ticket.Date, &ticket.SlotStart, &ticket.SlotEnd, &expiresAt, &ticket.Method, &ticket.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, false, nil
	}
	if err != nil {
		return model.Ticket{}, false, err
	}

	ticket.IssuedAt = issuedAt.Time
	ticket.ExpiresAt = expiresAt.Time

	return ticket, true, nil
}
