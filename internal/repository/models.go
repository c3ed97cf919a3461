package repository

import (
	"strings"
	"time"

	"authgate/internal/domain"

	"gorm.io/gorm"
)

type userModel struct {
	ID               int64             `gorm:"column:id;primaryKey"`
	Email            string            `gorm:"column:email;size:254;not null;index:idx_users_email_live,unique,where:deleted_at IS NULL"`
	PasswordHash     string            `gorm:"column:password_hash;not null"`
	Role             string            `gorm:"column:role;size:16;not null"`
	Nickname         *string           `gorm:"column:nickname;size:64"`
	NicknameKey      *string           `gorm:"column:nickname_key;size:64;index:idx_users_nickname_live,unique,where:deleted_at IS NULL"`
	Account          *string           `gorm:"column:account;size:12;index:idx_users_account_live,unique,where:deleted_at IS NULL"`
	AccountPublicKey *string           `gorm:"column:account_public_key"`
	Name             *string           `gorm:"column:name"`
	Lastname         *string           `gorm:"column:lastname"`
	Lang             string            `gorm:"column:lang;size:8;not null"`
	Active           bool              `gorm:"column:active;not null"`
	AuthReset        bool              `gorm:"column:auth_reset;not null"`
	AuthResetAt      *time.Time        `gorm:"column:auth_reset_at"`
	RefreshTokens    []refreshTokenRow `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at"`
	DeletedAt        gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

func (userModel) TableName() string { return "users" }

type refreshTokenRow struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	UserID    int64     `gorm:"column:user_id;index;not null"`
	IssuedAt  time.Time `gorm:"column:issued_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null"`
}

func (refreshTokenRow) TableName() string { return "refresh_token_records" }

// AutoMigrate creates or updates the users and refresh_token_records tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userModel{}, &refreshTokenRow{})
}

func toDomainUser(m userModel) *domain.User {
	u := &domain.User{
		ID:               m.ID,
		Email:            m.Email,
		PasswordHash:     m.PasswordHash,
		Role:             domain.UserRole(m.Role),
		Nickname:         deref(m.Nickname),
		Account:          deref(m.Account),
		AccountPublicKey: deref(m.AccountPublicKey),
		Name:             deref(m.Name),
		Lastname:         deref(m.Lastname),
		Lang:             m.Lang,
		Active:           m.Active,
		AuthReset:        m.AuthReset,
		AuthResetAt:      m.AuthResetAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.DeletedAt.Valid {
		at := m.DeletedAt.Time
		u.Deleted = true
		u.DeletedAt = &at
	}
	return u
}

func toUserModel(u *domain.User) userModel {
	m := userModel{
		ID:               u.ID,
		Email:            normalizeEmail(u.Email),
		PasswordHash:     u.PasswordHash,
		Role:             string(u.Role),
		Nickname:         nullable(u.Nickname),
		NicknameKey:      nullable(strings.ToLower(strings.TrimSpace(u.Nickname))),
		Account:          nullable(u.Account),
		AccountPublicKey: nullable(u.AccountPublicKey),
		Name:             nullable(u.Name),
		Lastname:         nullable(u.Lastname),
		Lang:             u.Lang,
		Active:           u.Active,
		AuthReset:        u.AuthReset,
		AuthResetAt:      u.AuthResetAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
	if m.Role == "" {
		m.Role = string(domain.RoleUser)
	}
	if u.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *u.DeletedAt, Valid: true}
	}
	return m
}

func toDomainRecord(r refreshTokenRow) domain.RefreshTokenRecord {
	return domain.RefreshTokenRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		IssuedAt:  r.IssuedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func toRecordRow(userID int64, r *domain.RefreshTokenRecord) refreshTokenRow {
	return refreshTokenRow{
		ID:        r.ID,
		UserID:    userID,
		IssuedAt:  r.IssuedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullable(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
