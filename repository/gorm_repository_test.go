package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T, ping bool) (*GORMRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(ping))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
		TranslateError:       true,
	})
	require.NoError(t, err)
	return NewGORMRepository(db), mock
}

func TestIsDuplicate(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"}

	assert.True(t, IsDuplicate(ErrDuplicate))
	assert.True(t, IsDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicate(pgErr))
	assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", pgErr)))
	assert.False(t, IsDuplicate(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsDuplicate(errors.New("boom")))
	assert.False(t, IsDuplicate(nil))

	assert.Equal(t, ErrDuplicate, translate(pgErr))
	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestPing(t *testing.T) {
	repo, mock := newMockRepository(t, true)
	mock.ExpectPing()
	require.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, repo.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID(t *testing.T) {
	repo, mock := newMockRepository(t, false)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "is_active"}).AddRow("u1", "sari@example.com", true))
	user, err := repo.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "sari@example.com", user.Email)
	assert.True(t, user.IsActive)

	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	user, err = repo.GetUserByID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, user)

	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("connection reset"))
	_, err = repo.GetUserByID(context.Background(), "u1")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicate(t *testing.T) {
	repo, mock := newMockRepository(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateUser(context.Background(), &models.User{Email: "sari@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction(t *testing.T) {
	repo, mock := newMockRepository(t, false)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, repo.Transaction(context.Background(), func(tx *GORMRepository) error {
		assert.NotSame(t, repo, tx)
		return nil
	}))

	failed := errors.New("rolled back")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err := repo.Transaction(context.Background(), func(*GORMRepository) error { return failed })
	assert.ErrorIs(t, err, failed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name    string
		burned  int64
		wantErr error
	}{
		{name: "unused token", burned: 1},
		{name: "token already used", burned: 0, wantErr: ErrTokenUsed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t, false)
			reset := &models.PasswordResetToken{ID: "r1", UserID: "u1"}

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "password_reset_tokens" SET "used_at"=\$1 WHERE .*used_at IS NULL`).
				WillReturnResult(sqlmock.NewResult(0, tt.burned))
			if tt.wantErr == nil {
				mock.ExpectExec(`UPDATE "users" SET "password"`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`DELETE FROM "refresh_tokens"`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := repo.ResetPassword(context.Background(), reset, "hashed")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, reset.UsedAt)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, reset.UsedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTouchSession(t *testing.T) {
	repo, mock := newMockRepository(t, false)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "practice_sessions" SET "updated_at"=\$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.TouchSession(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
