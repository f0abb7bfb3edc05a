package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeRefresh(t *testing.T) {
	t.Run("live token", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("SELECT user_id FROM refresh_tokens").WithArgs("h").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
		mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs("h").
			WillReturnResult(sqlmock.NewResult(0, 1))
		uid, err := NewTokenRepo(db).ConsumeRefresh(context.Background(), "h")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), uid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already used or expired", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("SELECT user_id FROM refresh_tokens").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
		mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WillReturnResult(sqlmock.NewResult(0, 0))
		_, err := NewTokenRepo(db).ConsumeRefresh(context.Background(), "h")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("unknown", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("SELECT user_id FROM refresh_tokens").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		_, err := NewTokenRepo(db).ConsumeRefresh(context.Background(), "h")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
