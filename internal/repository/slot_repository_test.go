package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

func TestReplaceForDate_DeletesThenInsertsInOneTx(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM slots WHERE slot_date=\?`).WithArgs(day).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`INSERT INTO slots .* VALUES \(\?, \?, \?, \?, \?, 0, 'open'\),\(\?, \?, \?, \?, \?, 0, 'open'\)`).
		WithArgs(day, "13:00", "13:10", "lunch", 5, day, "16:00", "16:30", "snack", 10).
		WillReturnResult(sqlmock.NewResult(20, 2))
	mock.ExpectQuery("SELECT .* FROM slots WHERE slot_date=").WithArgs(day).
		WillReturnRows(sqlmock.NewRows(slotCols).
			AddRow(20, day, "13:00", "13:10", "lunch", 5, 0, "open").
			AddRow(21, day, "16:00", "16:30", "snack", 10, 0, "open"))
	mock.ExpectCommit()

	slots, err := NewSlotRepo(db).ReplaceForDate(context.Background(), day, []model.SlotTemplateEntry{
		{Start: "13:00", End: "13:10", MealType: "lunch", Capacity: 5},
		{Start: "16:00", End: "16:30", MealType: "snack", Capacity: 10},
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "16:00-16:30", slots[1].Label())
	assert.Equal(t, model.SlotOpen, slots[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForDate_InsertFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM slots").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO slots").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := NewSlotRepo(db).ReplaceForDate(context.Background(), day, []model.SlotTemplateEntry{
		{Start: "13:00", End: "13:10", MealType: "lunch", Capacity: 5},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus(t *testing.T) {
	t.Run("close", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE slots SET status='closed' WHERE id=\?`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT .* FROM slots WHERE id=").WithArgs(3).
			WillReturnRows(sqlmock.NewRows(slotCols).AddRow(3, day, "13:00", "13:10", "lunch", 5, 2, "closed"))
		s, err := NewSlotRepo(db).SetStatus(context.Background(), 3, model.SlotClosed)
		require.NoError(t, err)
		assert.Equal(t, model.SlotClosed, s.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reopen re-derives from usage", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE slots SET status = CASE WHEN current_orders >= max_orders THEN 'full' ELSE 'open' END`).
			WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT .* FROM slots WHERE id=").WithArgs(3).
			WillReturnRows(sqlmock.NewRows(slotCols).AddRow(3, day, "13:00", "13:10", "lunch", 5, 5, "full"))
		s, err := NewSlotRepo(db).SetStatus(context.Background(), 3, model.SlotOpen)
		require.NoError(t, err)
		assert.Equal(t, model.SlotFull, s.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown slot", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("UPDATE slots SET status='closed'").WithArgs(99).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT .* FROM slots WHERE id=").WithArgs(99).WillReturnRows(sqlmock.NewRows(slotCols))
		_, err := NewSlotRepo(db).SetStatus(context.Background(), 99, model.SlotClosed)
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})

	t.Run("full is not settable", func(t *testing.T) {
		db, _ := newMock(t)
		_, err := NewSlotRepo(db).SetStatus(context.Background(), 3, model.SlotFull)
		assert.Error(t, err)
	})
}

func TestFindOpen_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM slots").
		WithArgs(day, "13:00", "", "").
		WillReturnRows(sqlmock.NewRows(slotCols))
	_, err := NewSlotRepo(db).FindOpen(context.Background(), day, "13:00", "")
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
