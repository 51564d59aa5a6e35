package allocator

import (
	"context"
	"fmt"
	"stall-ticket/common/constant"
	"stall-ticket/common/errs"
	"stall-ticket/model"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// memStore is an in-memory tabular store. TryIncrementIssued is atomic under
// the store mutex, mirroring the conditional update of the SQL store.
type memStore struct {
	mu      sync.Mutex
	slots   []model.Slot
	tickets []model.Ticket
	state   map[string]string

	failAppendTicket bool
	appendSlotCalls  int
}

func newMemStore() *memStore {
	return &memStore{state: make(map[string]string)}
}

func (m *memStore) ListSlotsByDate(_ context.Context, date string) ([]model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Slot
	for _, s := range m.slots {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) FindSlot(_ context.Context, date, slotStart, slotEnd string) (model.Slot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if s.Date == date && s.SlotStart == slotStart && s.SlotEnd == slotEnd {
			return s, true, nil
		}
	}
	return model.Slot{}, false, nil
}

func (m *memStore) AppendSlots(_ context.Context, slots []model.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendSlotCalls++
	m.slots = append(m.slots, slots...)
	return nil
}

func (m *memStore) TryIncrementIssued(_ context.Context, date, slotStart, slotEnd string) (int32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.slots {
		s := &m.slots[i]
		if s.Date == date && s.SlotStart == slotStart && s.SlotEnd == slotEnd && s.Issued < s.Cap {
			s.Issued++
			return s.Issued, true, nil
		}
	}
	return 0, false, nil
}

func (m *memStore) ReleaseIssued(_ context.Context, date, slotStart, slotEnd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.slots {
		s := &m.slots[i]
		if s.Date == date && s.SlotStart == slotStart && s.SlotEnd == slotEnd && s.Issued > 0 {
			s.Issued--
		}
	}
	return nil
}

func (m *memStore) SetSlotOpen(_ context.Context, date, slotStart, slotEnd string, open bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.slots {
		s := &m.slots[i]
		if s.Date == date && s.SlotStart == slotStart && s.SlotEnd == slotEnd {
			s.Open = open
		}
	}
	return nil
}

func (m *memStore) AppendTicket(_ context.Context, ticket model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAppendTicket {
		return fmt.Errorf("store unavailable")
	}

	m.tickets = append(m.tickets, ticket)
	return nil
}

func (m *memStore) FindTicket(_ context.Context, date, ticketId string) (model.Ticket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tickets {
		if t.Date == date && t.Id == ticketId {
			return t, true, nil
		}
	}
	return model.Ticket{}, false, nil
}

func (m *memStore) GetState(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state[key], nil
}

func (m *memStore) SetState(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state[key] = value
	return nil
}

func (m *memStore) AllState(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out, nil
}

type AllocatorTestSuite struct {
	suite.Suite

	Store *memStore
	Alloc *Allocator
}

func (s *AllocatorTestSuite) SetupTest() {
	s.Store = newMemStore()
	s.Alloc = New(s.Store, s.Store, s.Store, DefaultConfig())
	s.Alloc.TimeNow = func() time.Time {
		return time.Date(2024, 9, 28, 10, 30, 0, 0, constant.JST)
	}
}

func TestAllocatorTestSuite(t *testing.T) {
	suite.Run(t, new(AllocatorTestSuite))
}

func (s *AllocatorTestSuite) TestGenerateDeterministicSlotSet() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	slots, err := s.Store.ListSlotsByDate(ctx, "2024-09-28")
	s.Require().NoError(err)
	s.Require().Len(slots, 10)

	expected := []struct {
		start, end, code string
	}{
		{"11:00", "11:30", "A"},
		{"11:30", "12:00", "B"},
		{"12:00", "12:30", "C"},
		{"12:30", "13:00", "D"},
		{"13:00", "13:30", "E"},
		{"13:30", "14:00", "F"},
		{"14:00", "14:30", "G"},
		{"14:30", "15:00", "H"},
		{"15:00", "15:30", "I"},
		{"15:30", "16:00", "J"},
	}

	for i, want := range expected {
		s.Equal(want.start, slots[i].SlotStart)
		s.Equal(want.end, slots[i].SlotEnd)
		s.Equal(want.code, slots[i].Code)
		s.Equal(int32(20), slots[i].Cap)
		s.Equal(int32(0), slots[i].Issued)
		s.True(slots[i].Open)
	}
}

func (s *AllocatorTestSuite) TestEnsureDaySlotsIdempotent() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	_, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
	s.Require().NoError(err)

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	slots, err := s.Store.ListSlotsByDate(ctx, "2024-09-28")
	s.Require().NoError(err)
	s.Len(slots, 10)
	s.Equal(1, s.Store.appendSlotCalls)
	s.Equal(int32(1), slots[0].Issued)
}

func (s *AllocatorTestSuite) TestIssueTicketIdAndExpiry() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	ticket, slot, err := s.Alloc.Issue(ctx, "2024-09-28", "13:00", "13:30", constant.TicketMethodWeb)
	s.Require().NoError(err)

	s.Equal("E-001", ticket.Id)
	s.Equal(int32(1), slot.Issued)
	s.Equal("E", slot.Code)
	s.Equal(constant.TicketMethodWeb, ticket.Method)
	s.Equal(constant.TicketStatusValid, ticket.Status)

	// slot end 13:30 plus 30 minutes grace
	want := time.Date(2024, 9, 28, 14, 0, 0, 0, constant.JST)
	s.True(ticket.ExpiresAt.Equal(want), "expires_at = %s, want %s", ticket.ExpiresAt, want)
}

func (s *AllocatorTestSuite) TestIssueRejections() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	_, _, err := s.Alloc.Issue(ctx, "2024-09-28", "10:00", "10:30", "")
	s.ErrorIs(err, errs.ErrSlotNotFound)

	_, err = s.Alloc.SetSlotOpen(ctx, "2024-09-28", "12:00", "12:30", false)
	s.Require().NoError(err)

	_, _, err = s.Alloc.Issue(ctx, "2024-09-28", "12:00", "12:30", "")
	s.ErrorIs(err, errs.ErrSlotClosed)

	slot, found, err := s.Store.FindSlot(ctx, "2024-09-28", "12:00", "12:30")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(int32(0), slot.Issued, "closed rejection must not touch issued")
}

func (s *AllocatorTestSuite) TestIssueAppendFailureReleasesCounter() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))
	s.Store.failAppendTicket = true

	_, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
	s.Require().Error(err)

	slot, _, err := s.Store.FindSlot(ctx, "2024-09-28", "11:00", "11:30")
	s.Require().NoError(err)
	s.Equal(int32(0), slot.Issued)
}

func (s *AllocatorTestSuite) TestFindScopedToDay() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	ticket, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
	s.Require().NoError(err)

	found, err := s.Alloc.Find(ctx, "2024-09-28", ticket.Id)
	s.Require().NoError(err)
	s.Equal(ticket.Id, found.Id)

	_, err = s.Alloc.Find(ctx, "2024-09-29", ticket.Id)
	s.ErrorIs(err, errs.ErrTicketNotFound)
}

func (s *AllocatorTestSuite) TestConcurrentIssueHoldsCapacity() {
	ctx := context.Background()
	const callers = 25 // cap 20 plus 5 losers

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var succeeded, full int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case err == errs.ErrSlotFull:
			full++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}

	s.Equal(20, succeeded)
	s.Equal(5, full)

	slot, _, err := s.Store.FindSlot(ctx, "2024-09-28", "11:00", "11:30")
	s.Require().NoError(err)
	s.Equal(int32(20), slot.Issued)

	seen := make(map[string]bool)
	for _, t := range s.Store.tickets {
		s.False(seen[t.Id], "duplicate ticket id %s", t.Id)
		seen[t.Id] = true
	}
	s.Len(seen, 20)
}

func (s *AllocatorTestSuite) TestEndToEndScenario() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	var first model.Ticket
	for i := 0; i < 20; i++ {
		ticket, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
		s.Require().NoError(err)
		if i == 0 {
			first = ticket
		}
	}

	_, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
	s.ErrorIs(err, errs.ErrSlotFull)

	second, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:30", "12:00", "")
	s.Require().NoError(err)
	s.Equal("B-001", second.Id)

	slot, _, err := s.Store.FindSlot(ctx, "2024-09-28", "11:30", "12:00")
	s.Require().NoError(err)
	s.Equal(int32(1), slot.Issued)

	looked, err := s.Alloc.Find(ctx, "2024-09-28", first.Id)
	s.Require().NoError(err)
	s.Equal("11:00", looked.SlotStart)
	s.Equal("11:30", looked.SlotEnd)

	want := time.Date(2024, 9, 28, 12, 0, 0, 0, constant.JST)
	s.True(looked.ExpiresAt.Equal(want))
}

func (s *AllocatorTestSuite) TestSetSlotOpenUnknownSlot() {
	ctx := context.Background()

	_, err := s.Alloc.SetSlotOpen(ctx, "2024-09-28", "11:00", "11:30", false)
	s.ErrorIs(err, errs.ErrSlotNotFound)
}

func (s *AllocatorTestSuite) TestStateFlags() {
	ctx := context.Background()

	paused, err := s.Alloc.Paused(ctx)
	s.Require().NoError(err)
	s.False(paused)

	s.Require().NoError(s.Alloc.SetPaused(ctx, true))

	paused, err = s.Alloc.Paused(ctx)
	s.Require().NoError(err)
	s.True(paused)

	s.Require().NoError(s.Alloc.SetBanner(ctx, "now serving slot C"))
	s.Require().NoError(s.Alloc.SetCurrentSlot(ctx, "C"))

	state, err := s.Store.AllState(ctx)
	s.Require().NoError(err)
	s.Equal("now serving slot C", state[constant.StateKeyBanner])
	s.Equal("C", state[constant.StateKeyCurrentSlot])
}

func (s *AllocatorTestSuite) TestInWindow() {
	s.True(s.Alloc.InWindow("11:00"))
	s.True(s.Alloc.InWindow("15:30"))
	s.False(s.Alloc.InWindow("10:30"))
	s.False(s.Alloc.InWindow("16:00"))
	s.False(s.Alloc.InWindow("junk"))
}

func (s *AllocatorTestSuite) TestKnownSlot() {
	s.True(s.Alloc.KnownSlot("2024-09-28", "11:00", "11:30"))
	s.True(s.Alloc.KnownSlot("2024-09-28", "15:30", "16:00"))

	s.False(s.Alloc.KnownSlot("2024-09-27", "11:00", "11:30"), "past day")
	s.False(s.Alloc.KnownSlot("2024-09-30", "11:00", "11:30"), "future day")
	s.False(s.Alloc.KnownSlot("2024-09-28", "10:30", "11:00"), "before window")
	s.False(s.Alloc.KnownSlot("2024-09-28", "16:00", "16:30"), "after window")
	s.False(s.Alloc.KnownSlot("2024-09-28", "11:10", "11:40"), "off grid")
	s.False(s.Alloc.KnownSlot("2024-09-28", "11:00", "12:00"), "end not one slot later")
	s.False(s.Alloc.KnownSlot("2024-09-28", "junk", "11:30"))
}

func (s *AllocatorTestSuite) TestSlotLocksPrunedOnDayRollover() {
	ctx := context.Background()

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-28"))

	_, _, err := s.Alloc.Issue(ctx, "2024-09-28", "11:00", "11:30", "")
	s.Require().NoError(err)
	_, _, err = s.Alloc.Issue(ctx, "2024-09-28", "11:30", "12:00", "")
	s.Require().NoError(err)

	s.Len(s.Alloc.slotLocks, 3, "day lock plus one per touched slot")

	s.Alloc.TimeNow = func() time.Time {
		return time.Date(2024, 9, 29, 10, 30, 0, 0, constant.JST)
	}

	s.Require().NoError(s.Alloc.EnsureDaySlots(ctx, "2024-09-29"))
	_, _, err = s.Alloc.Issue(ctx, "2024-09-29", "11:00", "11:30", "")
	s.Require().NoError(err)

	s.Equal("2024-09-29", s.Alloc.lockDay)
	for key := range s.Alloc.slotLocks {
		s.True(strings.HasPrefix(key, "2024-09-29"), "stale lock key %s survived rollover", key)
	}
}

func TestSlotCode(t *testing.T) {
	cases := map[int]string{
		0:   "A",
		1:   "B",
		25:  "Z",
		26:  "AA",
		27:  "AB",
		51:  "AZ",
		52:  "BA",
		701: "ZZ",
		702: "AAA",
	}

	for index, want := range cases {
		if got := slotCode(index); got != want {
			t.Errorf("slotCode(%d) = %q, want %q", index, got, want)
		}
	}
}
