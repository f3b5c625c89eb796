package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/voicevibe/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var (
	ErrDuplicate = errors.New("duplicate record")
	ErrTokenUsed = errors.New("token already used")
)

const uniqueViolation = "23505"

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(models.All()...)
}

// Transaction runs fn against a repository bound to a single database transaction.
func (r *GORMRepository) Transaction(ctx context.Context, fn func(tx *GORMRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMRepository{db: tx})
	})
}

// Ping checks the underlying connection pool.
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsDuplicate reports whether err is a Postgres unique violation.
func IsDuplicate(err error) bool {
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func translate(err error) error {
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func forUpdate() clause.Expression {
	return clause.Locking{Strength: "UPDATE"}
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return translate(err)
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

// CreateUserWithDefaults inserts the user together with its profile, level and analytics rows.
func (r *GORMRepository) CreateUserWithDefaults(ctx context.Context, user *models.User) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := tx.db.WithContext(ctx).Create(models.NewUserProfile(user.ID)).Error; err != nil {
			slog.Error("Failed to create user profile", "error", err, "user_id", user.ID)
			return err
		}
		level := &models.UserLevel{UserID: user.ID, CurrentLevel: 1, WayangCharacter: "Semar"}
		if err := tx.db.WithContext(ctx).Create(level).Error; err != nil {
			slog.Error("Failed to create user level", "error", err, "user_id", user.ID)
			return err
		}
		return nil
	})
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by username", "error", err, "username", username)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		slog.Error("Failed to get users by IDs", "error", err, "count", len(ids))
		return nil, err
	}
	return users, nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return translate(err)
	}
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *GORMRepository) CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create password reset token", "error", err, "user_id", token.UserID)
		return err
	}
	return nil
}

// GetPasswordResetToken returns an unused, unexpired reset token by hash.
func (r *GORMRepository) GetPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var reset models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, time.Now()).
		First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get password reset token", "error", err)
		return nil, err
	}
	return &reset, nil
}

// ResetPassword burns the reset token, sets the new hash and revokes refresh tokens.
// A token already burned by a concurrent reset yields ErrTokenUsed.
func (r *GORMRepository) ResetPassword(ctx context.Context, reset *models.PasswordResetToken, passwordHash string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		now := time.Now()
		burn := tx.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", reset.ID).
			Update("used_at", now)
		if burn.Error != nil {
			slog.Error("Failed to mark reset token used", "error", burn.Error, "user_id", reset.UserID)
			return burn.Error
		}
		if burn.RowsAffected == 0 {
			return ErrTokenUsed
		}
		reset.UsedAt = &now
		if err := tx.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", reset.UserID).
			Update("password", passwordHash).Error; err != nil {
			slog.Error("Failed to update password", "error", err, "user_id", reset.UserID)
			return err
		}
		return tx.DeleteAllUserTokens(ctx, reset.UserID)
	})
}

// DeleteExpiredTokens removes refresh and reset tokens past their expiry.
func (r *GORMRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	refresh := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.RefreshToken{})
	if refresh.Error != nil {
		slog.Error("Failed to delete expired refresh tokens", "error", refresh.Error)
		return 0, refresh.Error
	}
	reset := r.db.WithContext(ctx).Where("expires_at <= ? OR used_at IS NOT NULL", now).Delete(&models.PasswordResetToken{})
	if reset.Error != nil {
		slog.Error("Failed to delete expired reset tokens", "error", reset.Error)
		return refresh.RowsAffected, reset.Error
	}
	return refresh.RowsAffected + reset.RowsAffected, nil
}

// Seed markers
func (r *GORMRepository) HasSeedMarker(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SeedMarker{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GORMRepository) CreateSeedMarker(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SeedMarker{Name: name}).Error
}

// CreateIfAbsent inserts value unless a row matching the unique conflict columns already exists.
func (r *GORMRepository) CreateIfAbsent(ctx context.Context, value any, conflictColumns ...string) error {
	cols := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		cols = append(cols, clause.Column{Name: c})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).Create(value).Error
}
