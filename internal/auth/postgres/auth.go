package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ancestrio/family-archive/internal/auth"
)

const defaultRoleName = "member"

type userRow struct {
	ID           int64     `gorm:"primaryKey"`
	FullName     string    `gorm:"column:full_name"`
	Email        string    `gorm:"uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash"`
	Status       string    `gorm:"default:active"`
	RoleID       int64     `gorm:"column:role_id"`
	SessionToken *string   `gorm:"column:session_token"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userRow) TableName() string { return "users" }

// Repository implements auth.Repository on gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCredentialsByEmail(email string) (*auth.Credentials, error) {
	var row userRow
	err := r.db.Where("lower(email) = lower(?)", email).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       row.ID,
		PasswordHash: row.PasswordHash,
		Status:       row.Status,
	}, nil
}

func (r *Repository) GetUserWithPermissions(userID int64) (*auth.User, error) {
	var result struct {
		userRow
		RoleName string `gorm:"column:role_name"`
	}

	err := r.db.Table("users").
		Select("users.*, roles.name AS role_name").
		Joins("LEFT JOIN roles ON roles.id = users.role_id").
		Where("users.id = ?", userID).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	var permissions []string
	err = r.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", result.RoleID).
		Order("permissions.name").
		Pluck("permissions.name", &permissions).Error
	if err != nil {
		return nil, err
	}

	user := &auth.User{
		ID:          result.ID,
		FullName:    result.FullName,
		Email:       result.Email,
		Status:      result.Status,
		RoleID:      result.RoleID,
		RoleName:    result.RoleName,
		Permissions: permissions,
	}
	if result.SessionToken != nil {
		user.SessionToken = *result.SessionToken
	}
	return user, nil
}

func (r *Repository) CreateUser(fullName, email, passwordHash string) (int64, error) {
	var roleID int64
	if err := r.db.Table("roles").Where("name = ?", defaultRoleName).Pluck("id", &roleID).Error; err != nil {
		return 0, err
	}

	row := userRow{
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		Status:       auth.StatusActive,
		RoleID:       roleID,
	}
	if err := r.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, auth.ErrEmailTaken
		}
		return 0, err
	}
	return row.ID, nil
}

func (r *Repository) UpdateSessionToken(userID int64, sessionToken string) error {
	return r.db.Model(&userRow{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"session_token": sessionToken,
			"updated_at":    time.Now(),
		}).Error
}

func (r *Repository) ClearSessionToken(userID int64) error {
	return r.db.Model(&userRow{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"session_token": nil,
			"updated_at":    time.Now(),
		}).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
