package model

type DisplayResponse struct {
	Paused      bool   `json:"paused"`
	Banner      string `json:"banner"`
	CurrentSlot string `json:"current_slot"`
	LastTicket  string `json:"last_ticket,omitempty"`
}

type SetPausedRequest struct {
	Paused *bool `json:"paused" validate:"required"`
}

type SetBannerRequest struct {
	Banner string `json:"banner" validate:"max=200"`
}

type SetCurrentSlotRequest struct {
	CurrentSlot string `json:"current_slot" validate:"max=16"`
}

type SlotStateChangedEventMessage struct {
	Date      string `json:"date"`
	SlotStart string `json:"slot_start"`
	SlotEnd   string `json:"slot_end"`
	Code      string `json:"code"`
	Issued    int32  `json:"issued"`
	Cap       int32  `json:"cap"`
	Open      bool   `json:"open"`
}

type StateChangedEventMessage struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
