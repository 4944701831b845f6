package auth

import (
	"context"
	"errors"
	"time"

	"tourhive/internal/model"

	"gorm.io/gorm"
)

// ErrNotFound 表示凭证记录不存在（或已停用）。
var ErrNotFound = errors.New("user not found")

// Store 是凭证存储的契约。
//
// 多字段迁移（消费重置令牌 + 轮换密码）必须是单条原子更新，
// 崩溃不能留下“密码换了但旧重置令牌还有效”的中间态。
type Store interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)

	// ArmReset 写入重置令牌哈希与过期时间；覆盖旧值（后写者胜）。
	ArmReset(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error
	// ClearReset 清除重置令牌字段（邮件发送失败时回滚用）。
	ClearReset(ctx context.Context, id uint) error
	// FindByValidReset 按令牌哈希查找未过期的凭证。
	FindByValidReset(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	// ConsumeReset 原子地轮换密码并清除重置字段。
	// WHERE 条件重新校验哈希与过期时间，令牌已被覆盖或过期时返回 false。
	ConsumeReset(ctx context.Context, id uint, tokenHash string, newHash string, changedAt time.Time, now time.Time) (bool, error)

	// UpdatePassword 轮换密码并刷新 passwordChangedAt。
	UpdatePassword(ctx context.Context, id uint, newHash string, changedAt time.Time) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore 创建基于 GORM 的凭证存储。
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *gormStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ? AND active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) ArmReset(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": expiresAt,
		}).Error
}

func (s *gormStore) ClearReset(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		}).Error
}

func (s *gormStore) FindByValidReset(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expires_at > ? AND active = ?", tokenHash, now, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) ConsumeReset(ctx context.Context, id uint, tokenHash string, newHash string, changedAt time.Time, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND reset_token_hash = ? AND reset_token_expires_at > ?", id, tokenHash, now).
		Updates(map[string]interface{}{
			"password":               newHash,
			"password_changed_at":    changedAt,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) UpdatePassword(ctx context.Context, id uint, newHash string, changedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password":            newHash,
			"password_changed_at": changedAt,
		}).Error
}
