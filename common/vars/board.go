package vars

import (
	"stall-ticket/model"
	"sync/atomic"
	"unsafe"
)

// boardPtr holds a pointer to the current slot board snapshot.
// This approach allows for lock-free reads with atomic updates.
var boardPtr unsafe.Pointer

// GetBoard returns the current board snapshot, or nil before the first
// refresh. Safe for concurrent access.
func GetBoard() *model.SlotBoardResponse {
	ptr := atomic.LoadPointer(&boardPtr)
	if ptr == nil {
		return nil
	}
	return (*model.SlotBoardResponse)(ptr)
}

// SetBoard atomically replaces the board snapshot. It copies the slot slice
// so later mutation by the caller cannot leak into readers. Pass nil to clear.
func SetBoard(board *model.SlotBoardResponse) {
	var ptr unsafe.Pointer

	if board != nil {
		boardCopy := *board
		boardCopy.Slots = make([]model.SlotResponse, len(board.Slots))
		copy(boardCopy.Slots, board.Slots)
		ptr = unsafe.Pointer(&boardCopy)
	}

	atomic.StorePointer(&boardPtr, ptr)
}
