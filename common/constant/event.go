package constant

const (
	QueueStreamName = "stall_ticket_queue_stream"
)

const (
	AllWildcard    = "events.>"
	TicketWildcard = "events.ticket.>"
	SlotWildcard   = "events.slot.>"
	StateWildcard  = "events.state.>"
	NotifyWildcard = "events.notify.>"

	SubjectTicketIssued     = "events.ticket.issued"
	SubjectSlotStateChanged = "events.slot.state_changed"
	SubjectStateChanged     = "events.state.changed"
	SubjectSendNotification = "events.notify.send"
)
