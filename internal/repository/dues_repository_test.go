package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuesClear_MarksPaidAndResetsBalance(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM users WHERE id=\? FOR UPDATE`).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("STUDENT"))
	mock.ExpectExec("UPDATE orders SET payment_status='paid'").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE users SET balance_cents = 0").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := NewDuesRepo(db).Clear(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuesClear_UnknownUser(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role FROM users").WithArgs(9).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewDuesRepo(db).Clear(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuesList(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT u.id, u.name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "roll", "phone", "balance", "unpaid", "count"}).
			AddRow(2, "Hari", "STU001", "9000000001", -4500, 4500, 1))
	dues, err := NewDuesRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.Equal(t, int64(-4500), dues[0].BalanceCents)
	assert.Equal(t, 1, dues[0].UnpaidOrders)
}
