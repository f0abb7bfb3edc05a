package handler

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/canteen-ordering/internal/config"
	"github.com/iliyamo/canteen-ordering/internal/repository"
	"github.com/iliyamo/canteen-ordering/internal/utils"
)

var userCols = []string{"id", "name", "phone", "roll", "password_hash", "role", "balance_cents", "is_active", "created_at", "updated_at"}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Config{JWTSecret: "secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	return NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), nil), mock
}

func TestLogin_RequiresIdentifierAndPassword(t *testing.T) {
	h, mock := newAuthHandler(t)
	for _, body := range []string{`{"password":"x"}`, `{"roll":"STU001"}`} {
		rec := call(h.Login, http.MethodPost, "/v1/auth/login", body, 0, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_UnknownUserNeedsName(t *testing.T) {
	h, mock := newAuthHandler(t)
	mock.ExpectQuery("SELECT .* FROM users WHERE").WillReturnError(sql.ErrNoRows)

	rec := call(h.Login, http.MethodPost, "/v1/auth/login", `{"roll":"stu009","password":"secret1"}`, 0, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name required for new user", decode(t, rec)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_RegistersNewStudent(t *testing.T) {
	h, mock := newAuthHandler(t)
	mock.ExpectQuery("SELECT .* FROM users WHERE").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("Meera", "9000000009", "STU009", sqlmock.AnyArg(), "STUDENT").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(uint64(42), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := call(h.Login, http.MethodPost, "/v1/auth/login",
		`{"phone":"9000000009","roll":"stu009","name":"Meera","password":"secret1"}`, 0, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	user := body["user"].(map[string]any)
	assert.EqualValues(t, 42, user["id"])
	assert.Equal(t, "STUDENT", user["role"])

	token := body["access"].(map[string]any)["token"].(string)
	uid, role, err := utils.ParseAccessToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "STUDENT", role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_Password(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("test123"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()

	t.Run("wrong password", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery("SELECT .* FROM users WHERE").WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Hari", "9000000001", "STU001", string(hash), "STUDENT", 0, true, now, now))
		rec := call(h.Login, http.MethodPost, "/v1/auth/login", `{"roll":"STU001","password":"nope"}`, 0, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("disabled account", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery("SELECT .* FROM users WHERE").WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Hari", "9000000001", "STU001", string(hash), "STUDENT", 0, false, now, now))
		rec := call(h.Login, http.MethodPost, "/v1/auth/login", `{"roll":"STU001","password":"test123"}`, 0, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ok", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery("SELECT .* FROM users WHERE").WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Hari", "9000000001", "STU001", string(hash), "STUDENT", -4500, true, now, now))
		mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
		rec := call(h.Login, http.MethodPost, "/v1/auth/login", `{"phone":"9000000001","password":"test123"}`, 0, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		user := decode(t, rec)["user"].(map[string]any)
		assert.EqualValues(t, -4500, user["balance_cents"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRefresh_ConsumedTokenRejected(t *testing.T) {
	h, mock := newAuthHandler(t)
	mock.ExpectQuery("SELECT user_id FROM refresh_tokens").
		WithArgs(utils.HashRefreshRaw("raw")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WillReturnResult(sqlmock.NewResult(0, 0))

	rec := call(h.Refresh, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"raw"}`, 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
