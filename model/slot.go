package model

// Slot is one row of the slots tab. Date and the two clock strings form the
// row key; issued only ever grows, open may be toggled by an administrator.
type Slot struct {
	Date      string
	SlotStart string
	SlotEnd   string
	Cap       int32
	Issued    int32
	Open      bool
	Code      string
}

type SlotResponse struct {
	SlotStart string `json:"slot_start"`
	SlotEnd   string `json:"slot_end"`
	Code      string `json:"code"`
	Cap       int32  `json:"cap"`
	Remaining int32  `json:"remaining"`
	Available bool   `json:"available"`
}

type SlotBoardResponse struct {
	Date   string         `json:"date"`
	Paused bool           `json:"paused"`
	Slots  []SlotResponse `json:"slots"`
}

type SetSlotOpenRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	SlotStart string `json:"slot_start" validate:"required,datetime=15:04"`
	SlotEnd   string `json:"slot_end" validate:"required,datetime=15:04"`
	Open      *bool  `json:"open" validate:"required"`
}
