package contract

import (
	"context"
	"stall-ticket/model"
)

// SlotStore is the slot half of the tabular store. Rows are keyed by
// (date, slot_start, slot_end); the only mutable columns are issued and open.
type SlotStore interface {
	ListSlotsByDate(ctx context.Context, date string) ([]model.Slot, error)
	FindSlot(ctx context.Context, date, slotStart, slotEnd string) (model.Slot, bool, error)
	AppendSlots(ctx context.Context, slots []model.Slot) error

	// TryIncrementIssued bumps issued by one only while issued < cap and
	// returns the new issued count. ok is false when the slot was already
	// full or missing; the write and the capacity check are a single
	// conditional statement in the store.
	TryIncrementIssued(ctx context.Context, date, slotStart, slotEnd string) (issued int32, ok bool, err error)

	// ReleaseIssued undoes one increment. Used to compensate when the
	// ticket append fails after the counter was already bumped.
	ReleaseIssued(ctx context.Context, date, slotStart, slotEnd string) error

	SetSlotOpen(ctx context.Context, date, slotStart, slotEnd string, open bool) error
}

// TicketStore is append-only; tickets are never mutated or deleted.
type TicketStore interface {
	AppendTicket(ctx context.Context, ticket model.Ticket) error
	FindTicket(ctx context.Context, date, ticketId string) (model.Ticket, bool, error)
}

// StateStore is the app_state key-value tab. Get returns "" for absent keys.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	AllState(ctx context.Context) (map[string]string, error)
}
