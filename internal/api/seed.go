package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tourhive/internal/model"

	"gorm.io/gorm"
)

// SeedAdmin 按配置播种初始管理员账号，幂等。
//
// admin_email 为空时跳过；账号已存在时只确保角色与存活状态，
// 不会覆盖已有密码。
func (s *Server) SeedAdmin(ctx context.Context) error {
	email := strings.TrimSpace(strings.ToLower(s.cfg.Security.AdminEmail))
	if email == "" {
		return nil
	}
	if s.cfg.Security.AdminPassword == "" {
		return errors.New("admin_email set but admin_password empty")
	}

	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, hashErr := s.hasher.Hash(ctx, s.cfg.Security.AdminPassword)
		if hashErr != nil {
			return hashErr
		}
		user = model.User{
			Name:              "Administrator",
			Email:             email,
			Password:          hash,
			Role:              model.RoleAdmin,
			PasswordChangedAt: time.Now().Add(-time.Second),
			Active:            true,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}
		s.logger.Info("admin account seeded", slog.String("email", email))
		return nil
	}

	updates := map[string]interface{}{
		"role":   model.RoleAdmin,
		"active": true,
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}
	return nil
}
