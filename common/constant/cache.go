package constant

import "time"

const (
	EachSlotRemainingKey = "slot:%s:%s:remaining"
	IssueRequestLock     = "ticket:request_lock:%s"
)

const (
	IssueRequestLockDefaultTTL = 1 * time.Minute
	SlotRemainingKeyTTL        = 48 * time.Hour
)
