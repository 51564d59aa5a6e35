package pgstore

import (
	"context"
	"fmt"
	"regexp"
	"stall-ticket/common/constant"
	"stall-ticket/model"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite

	Store   *Store
	PgxMock pgxmock.PgxPoolIface
}

func (s *StoreTestSuite) SetupTest() {
	pool, err := pgxmock.NewPool()
	if err != nil {
		s.T().Fatalf("failed to create pgxmock pool: %v", err)
	}

	s.PgxMock = pool
	s.Store = New(pool)
}

func (s *StoreTestSuite) TearDownTest() {
	s.PgxMock.Close()
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestTryIncrementIssued() {
	tests := []struct {
		name       string
		setupMock  func()
		wantIssued int32
		wantOk     bool
		wantErr    bool
	}{
		{
			name: "increments below cap",
			setupMock: func() {
				s.PgxMock.ExpectQuery(regexp.QuoteMeta(tryIncrementIssuedSql)).
					WithArgs("2024-09-28", "11:00", "11:30").
					WillReturnRows(pgxmock.NewRows([]string{"issued"}).AddRow(int32(1)))
			},
			wantIssued: 1,
			wantOk:     true,
		},
		{
			name: "full slot matches no row",
			setupMock: func() {
				s.PgxMock.ExpectQuery(regexp.QuoteMeta(tryIncrementIssuedSql)).
					WithArgs("2024-09-28", "11:00", "11:30").
					WillReturnRows(pgxmock.NewRows([]string{"issued"}))
			},
			wantOk: false,
		},
		{
			name: "store error",
			setupMock: func() {
				s.PgxMock.ExpectQuery(regexp.QuoteMeta(tryIncrementIssuedSql)).
					WithArgs("2024-09-28", "11:00", "11:30").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			tc.setupMock()

			issued, ok, err := s.Store.TryIncrementIssued(context.Background(), "2024-09-28", "11:00", "11:30")

			if tc.wantErr {
				s.Error(err)
			} else {
				s.NoError(err)
				s.Equal(tc.wantOk, ok)
				s.Equal(tc.wantIssued, issued)
			}

			s.NoError(s.PgxMock.ExpectationsWereMet())
		})
	}
}

func (s *StoreTestSuite) TestAppendSlotsSingleStatement() {
	slots := []model.Slot{
		{Date: "2024-09-28", SlotStart: "11:00", SlotEnd: "11:30", Cap: 20, Open: true, Code: "A"},
		{Date: "2024-09-28", SlotStart: "11:30", SlotEnd: "12:00", Cap: 20, Open: true, Code: "B"},
	}

	s.PgxMock.ExpectExec(`INSERT INTO slots \(date, slot_start, slot_end, cap, issued, open, code\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\), \(\$8, \$9, \$10, \$11, \$12, \$13, \$14\)`).
		WithArgs(
			"2024-09-28", "11:00", "11:30", int32(20), int32(0), true, "A",
			"2024-09-28", "11:30", "12:00", int32(20), int32(0), true, "B",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	s.NoError(s.Store.AppendSlots(context.Background(), slots))
	s.NoError(s.PgxMock.ExpectationsWereMet())
}

func (s *StoreTestSuite) TestAppendSlotsEmptyIsNoop() {
	s.NoError(s.Store.AppendSlots(context.Background(), nil))
	s.NoError(s.PgxMock.ExpectationsWereMet())
}

func (s *StoreTestSuite) TestFindSlot() {
	s.PgxMock.ExpectQuery(regexp.QuoteMeta(findSlotSql)).
		WithArgs("2024-09-28", "11:00", "11:30").
		WillReturnRows(pgxmock.NewRows([]string{"date", "slot_start", "slot_end", "cap", "issued", "open", "code"}).
			AddRow("2024-09-28", "11:00", "11:30", int32(20), int32(3), true, "A"))

	slot, found, err := s.Store.FindSlot(context.Background(), "2024-09-28", "11:00", "11:30")
	s.Require().NoError(err)
	s.True(found)
	s.Equal(int32(3), slot.Issued)
	s.Equal("A", slot.Code)

	s.PgxMock.ExpectQuery(regexp.QuoteMeta(findSlotSql)).
		WithArgs("2024-09-28", "09:00", "09:30").
		WillReturnRows(pgxmock.NewRows([]string{"date", "slot_start", "slot_end", "cap", "issued", "open", "code"}))

	_, found, err = s.Store.FindSlot(context.Background(), "2024-09-28", "09:00", "09:30")
	s.Require().NoError(err)
	s.False(found)

	s.NoError(s.PgxMock.ExpectationsWereMet())
}

func (s *StoreTestSuite) TestTicketRoundTrip() {
	issuedAt := time.Date(2024, 9, 28, 11, 5, 0, 0, constant.JST)
	expiresAt := time.Date(2024, 9, 28, 12, 0, 0, 0, constant.JST)

	ticket := model.Ticket{
		Id:        "A-001",
		IssuedAt:  issuedAt,
		Date:      "2024-09-28",
		SlotStart: "11:00",
		SlotEnd:   "11:30",
		ExpiresAt: expiresAt,
		Method:    constant.TicketMethodWalkup,
		Status:    constant.TicketStatusValid,
	}

	s.PgxMock.ExpectExec(regexp.QuoteMeta(appendTicketSql)).
		WithArgs(
			"A-001",
			pgtype.Timestamp{Time: issuedAt, Valid: true},
			"2024-09-28",
			"11:00",
			"11:30",
			pgtype.Timestamp{Time: expiresAt, Valid: true},
			constant.TicketMethodWalkup,
			constant.TicketStatusValid,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.Require().NoError(s.Store.AppendTicket(context.Background(), ticket))

	s.PgxMock.ExpectQuery(regexp.QuoteMeta(findTicketSql)).
		WithArgs("2024-09-28", "A-001").
		WillReturnRows(pgxmock.NewRows([]string{"ticket_id", "issued_at", "date", "slot_start", "slot_end", "expires_at", "method", "status"}).
			AddRow("A-001", pgtype.Timestamp{Time: issuedAt, Valid: true}, "2024-09-28", "11:00", "11:30", pgtype.Timestamp{Time: expiresAt, Valid: true}, constant.TicketMethodWalkup, constant.TicketStatusValid))

	found, ok, err := s.Store.FindTicket(context.Background(), "2024-09-28", "A-001")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("A-001", found.Id)
	s.True(found.ExpiresAt.Equal(expiresAt))

	s.NoError(s.PgxMock.ExpectationsWereMet())
}

func (s *StoreTestSuite) TestStateUpsertAndAll() {
	s.PgxMock.ExpectExec(regexp.QuoteMeta(setStateSql)).
		WithArgs(constant.StateKeyPaused, "true").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.Require().NoError(s.Store.SetState(context.Background(), constant.StateKeyPaused, "true"))

	s.PgxMock.ExpectQuery(regexp.QuoteMeta(getStateSql)).
		WithArgs(constant.StateKeyBanner).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	value, err := s.Store.GetState(context.Background(), constant.StateKeyBanner)
	s.Require().NoError(err)
	s.Equal("", value)

	s.PgxMock.ExpectQuery(regexp.QuoteMeta(allStateSql)).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow(constant.StateKeyPaused, "true").
			AddRow(constant.StateKeyBanner, "back at 13:00"))

	state, err := s.Store.AllState(context.Background())
	s.Require().NoError(err)
	s.Equal("true", state[constant.StateKeyPaused])
	s.Equal("back at 13:00", state[constant.StateKeyBanner])

	s.NoError(s.PgxMock.ExpectationsWereMet())
}

func (s *StoreTestSuite) TestMigrateCreatesAllTabs() {
	for _, stmt := range []string{createSlotsTable, createTicketsTable, createAppStateTable} {
		s.PgxMock.ExpectExec(regexp.QuoteMeta(stmt)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	s.NoError(s.Store.Migrate(context.Background()))
	s.NoError(s.PgxMock.ExpectationsWereMet())
}
