package pgstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"stall-ticket/model"
	"strings"
)

const listSlotsByDateSql = `SELECT date, slot_start, slot_end, cap, issued, open, code FROM slots WHERE date = $1 ORDER BY slot_start`

func (s *Store) ListSlotsByDate(ctx context.Context, date string) ([]model.Slot, error) {
	rows, err := s.Db.Query(ctx, listSlotsByDateSql, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		var slot model.Slot
		if err := rows.Scan(&slot.Date, &slot.SlotStart, &slot.SlotEnd, &slot.Cap, &slot.Issued, &slot.Open, &slot.Code); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

const findSlotSql = `SELECT date, slot_start, slot_end, cap, issued, open, code FROM slots WHERE date = $1 AND slot_start = $2 AND slot_end = $3`

func (s *Store) FindSlot(ctx context.Context, date, slotStart, slotEnd string) (model.Slot, bool, error) {
	var slot model.Slot
	err := s.Db.QueryRow(ctx, findSlotSql, date, slotStart, slotEnd).
		Scan(&slot.Date, &slot.SlotStart, &slot.SlotEnd, &slot.Cap, &slot.Issued, &slot.Open, &slot.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Slot{}, false, nil
	}
	if err != nil {
		return model.Slot{}, false, err
	}

	return slot, true, nil
}

// AppendSlots writes all rows in one statement, so a day is either fully
// generated or not generated at all.
func (s *Store) AppendSlots(ctx context.Context, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO slots (date, slot_start, slot_end, cap, issued, open, code) VALUES ")

	args := make([]interface{}, 0, len(slots)*7)
	for i, slot := range slots {
		if i > 0 {
			sb.WriteString(", ")
		}

		base := i * 7
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, slot.Date, slot.SlotStart, slot.SlotEnd, slot.Cap, slot.Issued, slot.Open, slot.Code)
	}

	_, err := s.Db.Exec(ctx, sb.String(), args...)
	return err
}

const tryIncrementIssuedSql = `UPDATE slots SET issued = issued + 1 WHERE date = $1 AND slot_start = $2 AND slot_end = $3 AND issued < cap RETURNING issued`

// TryIncrementIssued is the check-and-increment: the capacity comparison and
// the bump happen in one conditional statement on the store side.
func (s *Store) TryIncrementIssued(ctx context.Context, date, slotStart, slotEnd string) (int32, bool, error) {
	var issued int32
	err := s.Db.QueryRow(ctx, tryIncrementIssuedSql, date, slotStart, slotEnd).Scan(&issued)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return issued, true, nil
}

const releaseIssuedSql = `UPDATE slots SET issued = issued - 1 WHERE date = $1 AND slot_start = $2 AND slot_end = $3 AND issued > 0`

func (s *Store) ReleaseIssued(ctx context.Context, date, slotStart, slotEnd string) error {
	_, err := s.Db.Exec(ctx, releaseIssuedSql, date, slotStart, slotEnd)
	return err
}

const setSlotOpenSql = `UPDATE slots SET open = $4 WHERE date = $1 AND slot_start = $2 AND slot_end = $3`

func (s *Store) SetSlotOpen(ctx context.Context, date, slotStart, slotEnd string, open bool) error {
	_, err := s.Db.Exec(ctx, setSlotOpenSql, date, slotStart, slotEnd, open)
	return err
}
