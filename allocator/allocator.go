package allocator

import (
	"context"
	"fmt"
	"log/slog"
	"stall-ticket/common/constant"
	"stall-ticket/common/contract"
	"stall-ticket/common/errs"
	"stall-ticket/model"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Config struct {
	IssueStart   string
	IssueEnd     string
	SlotDuration time.Duration
	SlotCap      int32
	GracePeriod  time.Duration
}

func DefaultConfig() Config {
	return Config{
		IssueStart:   constant.DefaultIssueStart,
		IssueEnd:     constant.DefaultIssueEnd,
		SlotDuration: constant.DefaultSlotDuration,
		SlotCap:      constant.DefaultSlotCap,
		GracePeriod:  constant.DefaultGracePeriod,
	}
}

// Allocator owns all mutating access to slot counters. Every issuance for a
// given slot is serialized through a per-slot mutex, and the store-side
// increment is conditional on issued < cap, so the capacity invariant holds
// even with multiple callers and a second process on the same store.
type Allocator struct {
	Slots   contract.SlotStore
	Tickets contract.TicketStore
	State   contract.StateStore
	Cfg     Config

	TimeNow func() time.Time

	mu        sync.Mutex
	lockDay   string
	slotLocks map[string]*sync.Mutex
}

func New(slots contract.SlotStore, tickets contract.TicketStore, state contract.StateStore, cfg Config) *Allocator {
	return &Allocator{
		Slots:     slots,
		Tickets:   tickets,
		State:     state,
		Cfg:       cfg,
		TimeNow:   time.Now,
		slotLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor hands out the mutex for a day or slot key. Lock keys always start
// with the date, so the map is wiped on day rollover instead of growing one
// entry per slot forever. A stale lock surviving a wipe cannot over-issue:
// the store-side conditional increment still holds the capacity invariant.
func (a *Allocator) lockFor(key string) *sync.Mutex {
	day := key
	if i := strings.IndexByte(key, '|'); i >= 0 {
		day = key[:i]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if day != a.lockDay {
		a.lockDay = day
		a.slotLocks = make(map[string]*sync.Mutex)
	}

	lock, ok := a.slotLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		a.slotLocks[key] = lock
	}

	return lock
}

// Today returns the current calendar day in the stall's time zone.
func (a *Allocator) Today() string {
	return a.TimeNow().In(constant.JST).Format(constant.DateLayout)
}

// EnsureDaySlots lazily materializes the full day's slots. Idempotent: the
// existence check runs under the day lock on every call, and all rows are
// appended in a single store call so a partial day can never persist.
func (a *Allocator) EnsureDaySlots(ctx context.Context, date string) error {
	lock := a.lockFor(date)
	lock.Lock()
	defer lock.Unlock()

	existing, err := a.Slots.ListSlotsByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("list slots: %w", err)
	}

	if len(existing) > 0 {
		return nil
	}

	slots, err := a.generateSlots(date)
	if err != nil {
		return err
	}

	if err := a.Slots.AppendSlots(ctx, slots); err != nil {
		return fmt.Errorf("append slots: %w", err)
	}

	return nil
}

// generateSlots enumerates fixed-length intervals from IssueStart through
// IssueEnd inclusive, so the last slot starts exactly at IssueEnd.
func (a *Allocator) generateSlots(date string) ([]model.Slot, error) {
	start, err := clockMinutes(a.Cfg.IssueStart)
	if err != nil {
		return nil, fmt.Errorf("parse issue start: %w", err)
	}

	end, err := clockMinutes(a.Cfg.IssueEnd)
	if err != nil {
		return nil, fmt.Errorf("parse issue end: %w", err)
	}

	step := int(a.Cfg.SlotDuration.Minutes())
	if step <= 0 {
		return nil, fmt.Errorf("invalid slot duration %s", a.Cfg.SlotDuration)
	}

	var slots []model.Slot
	for i, cur := 0, start; cur <= end; i, cur = i+1, cur+step {
		slots = append(slots, model.Slot{
			Date:      date,
			SlotStart: minutesClock(cur),
			SlotEnd:   minutesClock(cur + step),
			Cap:       a.Cfg.SlotCap,
			Issued:    0,
			Open:      true,
			Code:      slotCode(i),
		})
	}

	return slots, nil
}

// Issue grants one ticket against (date, slotStart, slotEnd). Precondition
// checks run in order: slot exists, slot open, capacity remaining. The
// capacity check and increment are one conditional store write under the
// per-slot lock; a failed ticket append releases the counter again.
// The returned slot carries the post-increment issued count.
func (a *Allocator) Issue(ctx context.Context, date, slotStart, slotEnd, method string) (model.Ticket, model.Slot, error) {
	lock := a.lockFor(date + "|" + slotStart + "|" + slotEnd)
	lock.Lock()
	defer lock.Unlock()

	slot, found, err := a.Slots.FindSlot(ctx, date, slotStart, slotEnd)
	if err != nil {
		return model.Ticket{}, model.Slot{}, fmt.Errorf("find slot: %w", err)
	}
	if !found {
		return model.Ticket{}, model.Slot{}, errs.ErrSlotNotFound
	}

	if !slot.Open {
		return model.Ticket{}, model.Slot{}, errs.ErrSlotClosed
	}

	if slot.Issued >= slot.Cap {
		return model.Ticket{}, model.Slot{}, errs.ErrSlotFull
	}

	seq, ok, err := a.Slots.TryIncrementIssued(ctx, date, slotStart, slotEnd)
	if err != nil {
		return model.Ticket{}, model.Slot{}, fmt.Errorf("increment issued: %w", err)
	}
	if !ok {
		return model.Ticket{}, model.Slot{}, errs.ErrSlotFull
	}
	slot.Issued = seq

	expiresAt, err := combineClock(date, slotEnd)
	if err != nil {
		return model.Ticket{}, model.Slot{}, fmt.Errorf("parse slot end: %w", err)
	}
	expiresAt = expiresAt.Add(a.Cfg.GracePeriod)

	if method == "" {
		method = constant.TicketMethodWalkup
	}

	ticket := model.Ticket{
		Id:        fmt.Sprintf("%s-%03d", slot.Code, seq),
		IssuedAt:  a.TimeNow().In(constant.JST),
		Date:      date,
		SlotStart: slotStart,
		SlotEnd:   slotEnd,
		ExpiresAt: expiresAt,
		Method:    method,
		Status:    constant.TicketStatusValid,
	}

	if err := a.Tickets.AppendTicket(ctx, ticket); err != nil {
		if relErr := a.Slots.ReleaseIssued(ctx, date, slotStart, slotEnd); relErr != nil {
			// counter stays one ahead of the tickets tab: the slot
			// under-sells by one, it never over-sells
			slog.ErrorContext(ctx, "failed to release issued counter", slog.Any(constant.LogFieldErr, relErr))
		}
		return model.Ticket{}, model.Slot{}, fmt.Errorf("append ticket: %w", err)
	}

	return ticket, slot, nil
}

// Find looks a ticket up by id within one day. Tickets are not findable
// across days even when the literal id matches.
func (a *Allocator) Find(ctx context.Context, date, ticketId string) (model.Ticket, error) {
	ticket, found, err := a.Tickets.FindTicket(ctx, date, ticketId)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("find ticket: %w", err)
	}
	if !found {
		return model.Ticket{}, errs.ErrTicketNotFound
	}

	return ticket, nil
}

func (a *Allocator) SetSlotOpen(ctx context.Context, date, slotStart, slotEnd string, open bool) (model.Slot, error) {
	slot, found, err := a.Slots.FindSlot(ctx, date, slotStart, slotEnd)
	if err != nil {
		return model.Slot{}, fmt.Errorf("find slot: %w", err)
	}
	if !found {
		return model.Slot{}, errs.ErrSlotNotFound
	}

	if err := a.Slots.SetSlotOpen(ctx, date, slotStart, slotEnd, open); err != nil {
		return model.Slot{}, fmt.Errorf("set slot open: %w", err)
	}

	slot.Open = open
	return slot, nil
}

func (a *Allocator) Paused(ctx context.Context) (bool, error) {
	value, err := a.State.GetState(ctx, constant.StateKeyPaused)
	if err != nil {
		return false, fmt.Errorf("get paused: %w", err)
	}

	// absent or unparseable reads as not paused
	paused, _ := strconv.ParseBool(value)
	return paused, nil
}

func (a *Allocator) SetPaused(ctx context.Context, paused bool) error {
	return a.State.SetState(ctx, constant.StateKeyPaused, strconv.FormatBool(paused))
}

func (a *Allocator) SetBanner(ctx context.Context, banner string) error {
	return a.State.SetState(ctx, constant.StateKeyBanner, banner)
}

func (a *Allocator) SetCurrentSlot(ctx context.Context, code string) error {
	return a.State.SetState(ctx, constant.StateKeyCurrentSlot, code)
}

// KnownSlot reports whether (date, slotStart, slotEnd) can name a slot in
// the current day's plan: today's date, a start on the configured grid
// inside the window, and an end one slot length later. Requests failing
// this never reach the cache or the store.
func (a *Allocator) KnownSlot(date, slotStart, slotEnd string) bool {
	if date != a.Today() {
		return false
	}

	cur, err := clockMinutes(slotStart)
	if err != nil {
		return false
	}

	end, err := clockMinutes(slotEnd)
	if err != nil {
		return false
	}

	start, err := clockMinutes(a.Cfg.IssueStart)
	if err != nil {
		return false
	}

	last, err := clockMinutes(a.Cfg.IssueEnd)
	if err != nil {
		return false
	}

	step := int(a.Cfg.SlotDuration.Minutes())
	if step <= 0 {
		return false
	}

	if cur < start || cur > last || (cur-start)%step != 0 {
		return false
	}

	return end == cur+step
}

// InWindow reports whether a slot start time falls inside the issuance
// window. Slots outside the window exist on the board but never issue.
func (a *Allocator) InWindow(slotStart string) bool {
	cur, err := clockMinutes(slotStart)
	if err != nil {
		return false
	}

	start, err := clockMinutes(a.Cfg.IssueStart)
	if err != nil {
		return false
	}

	end, err := clockMinutes(a.Cfg.IssueEnd)
	if err != nil {
		return false
	}

	return cur >= start && cur <= end
}
