package errs

import (
	"errors"
	"fmt"
)

type HttpError struct {
	Code    int
	Message string
	Data    any
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("code %d: %s, data: %v", e.Code, e.Message, e.Data)
}

// Business rejections of the allocator, checked in this order by Issue.
// All are recoverable at the calling surface; none are fatal.
var (
	ErrSlotNotFound      = errors.New("slot not found")
	ErrSlotClosed        = errors.New("slot closed")
	ErrSlotFull          = errors.New("slot full")
	ErrIssuanceSuspended = errors.New("issuance suspended")
	ErrTicketNotFound    = errors.New("ticket not found")
)
