package http

import (
	"net/http"
	"stall-ticket/common/constant"
	"stall-ticket/common/contract"
	"stall-ticket/common/vars"
	"stall-ticket/model"
	"strconv"
)

type SlotHttp struct {
	State contract.StateStore
}

func RegisterSlotHttp(mux *http.ServeMux, state contract.StateStore) *SlotHttp {
	in := &SlotHttp{State: state}

	mux.HandleFunc("GET /api/slots", in.board)
	mux.HandleFunc("GET /api/display", in.display)

	return in
}

// board serves the customer page from the in-process snapshot; the cron
// refreshes it from the store and cache.
func (in *SlotHttp) board(w http.ResponseWriter, r *http.Request) {
	board := vars.GetBoard()
	if board == nil {
		board = &model.SlotBoardResponse{Slots: []model.SlotResponse{}}
	}

	writeJSONResponse(w, http.StatusOK, board)
}

func (in *SlotHttp) display(w http.ResponseWriter, r *http.Request) {
	state, err := in.State.AllState(r.Context())
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	paused, _ := strconv.ParseBool(state[constant.StateKeyPaused])

	writeJSONResponse(w, http.StatusOK, model.DisplayResponse{
		Paused:      paused,
		Banner:      state[constant.StateKeyBanner],
		CurrentSlot: state[constant.StateKeyCurrentSlot],
		LastTicket:  state[constant.StateKeyLastTicket],
	})
}
