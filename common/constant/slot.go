package constant

import "time"

// JST is the fixed stall-local offset. No DST in the target zone.
var JST = time.FixedZone("JST", 9*60*60)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Default issuance policy. The first slot starts at DefaultIssueStart and
// the last slot starts at DefaultIssueEnd, inclusive.
const (
	DefaultIssueStart   = "11:00"
	DefaultIssueEnd     = "15:30"
	DefaultSlotDuration = 30 * time.Minute
	DefaultSlotCap      = 20
	DefaultGracePeriod  = 30 * time.Minute
)

const (
	TicketMethodWalkup = "walkup"
	TicketMethodWeb    = "web"

	TicketStatusValid = "valid"
)

const (
	StateKeyPaused      = "paused"
	StateKeyBanner      = "banner"
	StateKeyCurrentSlot = "current_slot"
	StateKeyLastTicket  = "last_ticket"
)
