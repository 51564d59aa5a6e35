package model

import "time"

// Ticket is one row of the tickets tab, immutable once appended. The slot it
// was granted against is denormalized into date/slot_start/slot_end; lookups
// join on those values, not on a stored slot id.
type Ticket struct {
	Id        string
	IssuedAt  time.Time
	Date      string
	SlotStart string
	SlotEnd   string
	ExpiresAt time.Time
	Method    string
	Status    string
}

type IssueTicketRequest struct {
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	SlotStart    string `json:"slot_start" validate:"required,datetime=15:04"`
	SlotEnd      string `json:"slot_end" validate:"required,datetime=15:04"`
	Method       string `json:"method" validate:"omitempty,oneof=walkup web"`
	RequestToken string `json:"request_token" validate:"omitempty,max=64"`
}

type IssueTicketResponse struct {
	TicketId    string `json:"ticket_id"`
	Date        string `json:"date"`
	SlotStart   string `json:"slot_start"`
	SlotEnd     string `json:"slot_end"`
	ExpiresAt   string `json:"expires_at"`
	ExpiresTime string `json:"expires_time"`
}

type TicketResponse struct {
	TicketId    string `json:"ticket_id"`
	IssuedAt    string `json:"issued_at"`
	Date        string `json:"date"`
	SlotStart   string `json:"slot_start"`
	SlotEnd     string `json:"slot_end"`
	ExpiresAt   string `json:"expires_at"`
	ExpiresTime string `json:"expires_time"`
	Status      string `json:"status"`
}

type TicketIssuedEventMessage struct {
	TicketId  string `json:"ticket_id"`
	Date      string `json:"date"`
	SlotStart string `json:"slot_start"`
	SlotEnd   string `json:"slot_end"`
	Code      string `json:"code"`
	Issued    int32  `json:"issued"`
	Cap       int32  `json:"cap"`
	ExpiresAt string `json:"expires_at"`
}

type SendNotificationEventMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
